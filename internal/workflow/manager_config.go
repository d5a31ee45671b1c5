package workflow

import "panotrack/internal/queue"

// ConfigureStages registers the concrete stage handlers the workflow will run.
// Kinds without a handler get no lane; their jobs stay queued.
func (m *Manager) ConfigureStages(set HandlerSet) {
	lanes := make(map[queue.Kind]*laneState)
	order := make([]queue.Kind, 0, 2)

	if set.TrackImport != nil {
		lanes[queue.KindTrackImport] = &laneState{
			kind:    queue.KindTrackImport,
			name:    "track",
			handler: set.TrackImport,
			workers: max(m.cfg.Workflow.TrackWorkers, 1),
			wake:    make(chan struct{}, 1),
		}
		order = append(order, queue.KindTrackImport)
	}
	if set.ImageImport != nil {
		lanes[queue.KindImageImport] = &laneState{
			kind:    queue.KindImageImport,
			name:    "image",
			handler: set.ImageImport,
			workers: max(m.cfg.Workflow.ImageWorkers, 1),
			wake:    make(chan struct{}, 1),
		}
		order = append(order, queue.KindImageImport)
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}
