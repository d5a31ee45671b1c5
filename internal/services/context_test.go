package services_test

import (
	"context"
	"testing"

	"panotrack/internal/services"
)

func TestJobScopeMerges(t *testing.T) {
	ctx := services.WithJobScope(context.Background(), services.JobScope{JobID: 42, Lane: "track"})
	ctx = services.WithJobScope(ctx, services.JobScope{Stage: "ConvertingToGPX", RequestID: "req-123"})

	scope, ok := services.JobScopeFromContext(ctx)
	if !ok {
		t.Fatal("expected a scope")
	}
	want := services.JobScope{JobID: 42, Stage: "ConvertingToGPX", Lane: "track", RequestID: "req-123"}
	if scope != want {
		t.Fatalf("scope = %+v, want %+v", scope, want)
	}
}

func TestEmptyJobScopePreservesContext(t *testing.T) {
	base := context.Background()
	if ctx := services.WithJobScope(base, services.JobScope{}); ctx != base {
		t.Fatal("expected the original context back")
	}
	if _, ok := services.JobScopeFromContext(base); ok {
		t.Fatal("expected no scope")
	}
}
