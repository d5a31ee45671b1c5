package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"panotrack/internal/config"
	"panotrack/internal/queue"
	"panotrack/internal/tracks"
)

// MustOpenQueue opens a queue.Store for tests and registers cleanup.
func MustOpenQueue(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenTracks opens a tracks.Store for tests and registers cleanup.
func MustOpenTracks(t testing.TB, cfg *config.Config) *tracks.Store {
	t.Helper()

	store, err := tracks.Open(cfg)
	if err != nil {
		t.Fatalf("tracks.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SampleLine is a short north-bound line used by catalog tests.
func SampleLine() orb.LineString {
	return orb.LineString{{13.4, 52.5}, {13.4, 52.501}, {13.401, 52.502}}
}

// NewTrack stores a track for path using SampleLine geometry.
func NewTrack(t testing.TB, store *tracks.Store, path, hash string) *tracks.Track {
	t.Helper()

	track, err := store.Upsert(context.Background(), tracks.TrackInput{
		Name:     filepath.Base(path),
		FilePath: path,
		FileHash: hash,
		Geometry: SampleLine(),
	})
	if err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	return track
}
