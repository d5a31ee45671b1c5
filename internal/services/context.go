package services

import "context"

type scopeKey struct{}

// JobScope identifies the job a piece of work belongs to. Zero fields are
// omitted from log output.
type JobScope struct {
	JobID     int64
	Stage     string
	Lane      string
	RequestID string
}

// WithJobScope stores scope on ctx, merging non-zero fields over any scope
// already present.
func WithJobScope(ctx context.Context, scope JobScope) context.Context {
	current, _ := JobScopeFromContext(ctx)
	if scope.JobID != 0 {
		current.JobID = scope.JobID
	}
	if scope.Stage != "" {
		current.Stage = scope.Stage
	}
	if scope.Lane != "" {
		current.Lane = scope.Lane
	}
	if scope.RequestID != "" {
		current.RequestID = scope.RequestID
	}
	if current == (JobScope{}) {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, current)
}

// JobScopeFromContext returns the stored scope.
func JobScopeFromContext(ctx context.Context) (JobScope, bool) {
	if ctx == nil {
		return JobScope{}, false
	}
	scope, ok := ctx.Value(scopeKey{}).(JobScope)
	return scope, ok
}
