package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"panotrack/internal/config"
	"panotrack/internal/logging"
	"panotrack/internal/metrics"
	"panotrack/internal/queue"
)

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	metrics      *metrics.Metrics
	pollInterval time.Duration
	retryBackoff time.Duration

	heartbeat *HeartbeatMonitor
	jobLogs   *JobLogger

	lanes     map[queue.Kind]*laneState
	laneOrder []queue.Kind

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
	active  map[queue.Kind]int
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithMetrics records job outcomes on m.
func WithMetrics(m *metrics.Metrics) ManagerOption {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithJobLogs overrides the per-job log writer. A nil logger disables job logs.
func WithJobLogs(logs *JobLogger) ManagerOption {
	return func(mgr *Manager) { mgr.jobLogs = logs }
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryBackoff: time.Duration(cfg.Workflow.RetryBackoff) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		jobLogs: NewJobLogger(cfg),
		lanes:   make(map[queue.Kind]*laneState),
		active:  make(map[queue.Kind]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pollInterval <= 0 {
		m.pollInterval = time.Second
	}
	return m
}

// Wake nudges idle workers of kind to poll the queue immediately. Callers
// invoke it after enqueueing so new jobs do not wait out the poll interval.
func (m *Manager) Wake(kind queue.Kind) {
	m.mu.RLock()
	lane := m.lanes[kind]
	m.mu.RUnlock()
	lane.signal()
}
