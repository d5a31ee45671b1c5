package workflow

import (
	"log/slog"

	"panotrack/internal/queue"
	"panotrack/internal/stage"
)

// HandlerSet bundles the stage handlers the manager orchestrates.
type HandlerSet struct {
	TrackImport stage.Handler
	ImageImport stage.Handler
}

type laneState struct {
	kind    queue.Kind
	name    string
	handler stage.Handler
	workers int
	logger  *slog.Logger
	wake    chan struct{}
}

func (l *laneState) signal() {
	if l == nil {
		return
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
