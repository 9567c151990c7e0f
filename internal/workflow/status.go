package workflow

import (
	"sort"
	"time"

	"speechtrim/internal/jobs"
)

// ActiveJob describes a job a worker is currently running.
type ActiveJob struct {
	ID      string
	Started time.Time
}

// Summary is a point-in-time view of the pool.
type Summary struct {
	Running   bool
	Workers   int
	Capacity  int
	Pending   int
	Active    []ActiveJob
	Processed int
	LastJobID string
	LastStage jobs.Stage
	LastError string
}

// Status returns the current pool summary.
func (m *Manager) Status() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := Summary{
		Running:   m.running,
		Workers:   m.workers,
		Capacity:  cap(m.backlog),
		Pending:   len(m.backlog),
		Processed: m.processed,
		LastJobID: m.lastJob,
		LastStage: m.lastStage,
	}
	for id, started := range m.active {
		summary.Active = append(summary.Active, ActiveJob{ID: id, Started: started})
	}
	sort.Slice(summary.Active, func(i, j int) bool {
		return summary.Active[i].Started.Before(summary.Active[j].Started)
	})
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	return summary
}
