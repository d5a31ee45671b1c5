package api_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"panotrack/internal/api"
	"panotrack/internal/events"
	"panotrack/internal/services"
	"panotrack/internal/testsupport"
)

func TestDirectoryServicePublishesChanges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenTracks(t, cfg)
	bus := events.New(events.Options{})
	t.Cleanup(bus.Close)

	received := make(chan events.Event, 4)
	cancel := bus.Subscribe(events.TopicAll, "test", func(_ context.Context, evt events.Event) error {
		received <- evt
		return nil
	})
	defer cancel()

	svc := api.NewDirectoryService(store, bus, nil)
	ctx := context.Background()
	watched := t.TempDir()

	dir, err := svc.Create(ctx, watched)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, watched); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected duplicate to be rejected, got %v", err)
	}
	if _, err := svc.Create(ctx, filepath.Join(watched, "missing")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected missing directory to be rejected, got %v", err)
	}
	if _, err := svc.Delete(ctx, dir.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Delete(ctx, dir.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	var topics []string
	for len(topics) < 2 {
		select {
		case evt := <-received:
			var payload events.ImportDirectoryChanged
			if err := evt.Decode(&payload); err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if payload.Path != watched {
				t.Fatalf("unexpected payload %+v", payload)
			}
			topics = append(topics, evt.Topic)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for directory signals, got %v", topics)
		}
	}
	if topics[0] != events.TopicImportDirectoryCreated || topics[1] != events.TopicImportDirectoryDeleted {
		t.Fatalf("unexpected topics %v", topics)
	}
}

func TestTargetService(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := api.NewTargetService(testsupport.MustOpenTracks(t, cfg))
	ctx := context.Background()

	if _, err := svc.Create(ctx, "not a url"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	target, err := svc.Create(ctx, "ntfys://example/topic")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	list, err := svc.List(ctx)
	if err != nil || len(list) != 1 || list[0].AppriseURL != "ntfys://example/topic" {
		t.Fatalf("List: %+v %v", list, err)
	}
	if err := svc.Delete(ctx, target.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, target.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
