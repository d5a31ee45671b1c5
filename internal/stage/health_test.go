package stage_test

import (
	"context"
	"errors"
	"testing"

	"panotrack/internal/queue"
	"panotrack/internal/services"
	"panotrack/internal/stage"
)

func TestHealthConstructors(t *testing.T) {
	if h := stage.Healthy("track-import"); !h.Ready || h.Name != "track-import" {
		t.Fatalf("unexpected healthy record %#v", h)
	}
	if h := stage.Unhealthy("image-import", "mapillary_tools missing"); h.Ready || h.Detail == "" {
		t.Fatalf("unexpected unhealthy record %#v", h)
	}
}

func TestDecodePayload(t *testing.T) {
	job := &queue.Job{ID: 1, Payload: []byte(`{"trackId":9}`)}
	var payload queue.ImageImportPayload
	if err := stage.DecodePayload(job, &payload); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if payload.TrackID != 9 {
		t.Fatalf("unexpected payload %#v", payload)
	}

	bad := &queue.Job{ID: 2, Payload: []byte(`not json`)}
	if err := stage.DecodePayload(bad, &payload); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := stage.DecodePayload(nil, &payload); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for nil job, got %v", err)
	}
}

func TestProgressFunc(t *testing.T) {
	var got []stage.Phase
	reporter := stage.ProgressFunc(func(_ context.Context, phase stage.Phase, _ string) {
		got = append(got, phase)
	})
	reporter.Report(context.Background(), stage.PhaseCompleted, "")
	stage.NopProgress.Report(context.Background(), stage.PhaseFailed, "")
	if len(got) != 1 || got[0] != stage.PhaseCompleted {
		t.Fatalf("unexpected phases %v", got)
	}
}
