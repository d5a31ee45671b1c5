package workflow

import (
	"context"

	"panotrack/internal/logging"
	"panotrack/internal/queue"
	"panotrack/internal/stage"
)

// LaneStatus describes one lane of the manager.
type LaneStatus struct {
	Kind    queue.Kind
	Name    string
	Workers int
	Active  int
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastJob     *queue.Job
	QueueStats  map[queue.Status]int
	Lanes       []LaneStatus
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	lanes := make([]LaneStatus, 0, len(m.laneOrder))
	handlers := make(map[string]stage.Handler, len(m.laneOrder))
	for _, kind := range m.laneOrder {
		lane := m.lanes[kind]
		if lane == nil {
			continue
		}
		lanes = append(lanes, LaneStatus{Kind: lane.kind, Name: lane.name, Workers: lane.workers, Active: m.active[kind]})
		handlers[string(kind)] = lane.handler
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(handlers))
	for name, handler := range handlers {
		if handler != nil {
			health[name] = handler.HealthCheck(ctx)
		}
	}

	summary := StatusSummary{Running: running, QueueStats: stats, Lanes: lanes, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copy := *lastJob
		summary.LastJob = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
