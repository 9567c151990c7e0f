package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"speechtrim/internal/config"
	"speechtrim/internal/jobs"
	"speechtrim/internal/logging"
	"speechtrim/internal/pipeline"
)

const defaultBacklog = 64

var (
	// ErrQueueFull is returned when the backlog cannot take another job.
	ErrQueueFull = errors.New("job queue is full")
	// ErrNotRunning is returned by Submit before Start or after Stop.
	ErrNotRunning = errors.New("workflow is not running")
)

// JobRunner processes one job to a terminal state.
type JobRunner interface {
	Run(ctx context.Context, job *jobs.Job) pipeline.Outcome
}

// QueueSource lists jobs waiting to start.
type QueueSource interface {
	Queued(ctx context.Context) ([]*jobs.Job, error)
}

// Manager coordinates a bounded pool of pipeline workers.
type Manager struct {
	source  QueueSource
	runner  JobRunner
	logger  *slog.Logger
	workers int

	backlog chan *jobs.Job

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	runCtx    context.Context
	wg        sync.WaitGroup
	tracked   map[string]struct{}
	active    map[string]time.Time
	lastErr   error
	lastJob   string
	lastStage jobs.Stage
	processed int
}

// NewManager constructs a manager sized from cfg.Workflow.
func NewManager(cfg *config.Config, source QueueSource, runner JobRunner, logger *slog.Logger) *Manager {
	workers := cfg.Workflow.MaxConcurrentJobs
	if workers <= 0 {
		workers = 1
	}
	backlog := cfg.Workflow.MaxPending
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	return &Manager{
		source:  source,
		runner:  runner,
		logger:  logging.NewComponentLogger(logger, "workflow"),
		workers: workers,
		backlog: make(chan *jobs.Job, backlog),
		tracked: make(map[string]struct{}),
		active:  make(map[string]time.Time),
	}
}

// Start launches the workers and dispatches jobs still queued in the store.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.runCtx = runCtx
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	m.mu.Unlock()

	for i := 0; i < m.workers; i++ {
		go m.work(runCtx, i+1)
	}

	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.Int("workers", m.workers),
		logging.Int("backlog", cap(m.backlog)),
	)
	m.refill(runCtx)
	return nil
}

// Stop cancels in-flight runs and waits for all workers to exit. Jobs left in
// the backlog stay queued in the store for the next Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	m.mu.Lock()
drain:
	for {
		select {
		case job := <-m.backlog:
			delete(m.tracked, job.ID)
		default:
			break drain
		}
	}
	m.mu.Unlock()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

// Submit hands job to the pool without waiting for it to run.
func (m *Manager) Submit(job *jobs.Job) error {
	if job == nil {
		return errors.New("submit: nil job")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return ErrNotRunning
	}
	return m.enqueueLocked(job)
}

func (m *Manager) enqueueLocked(job *jobs.Job) error {
	if _, ok := m.tracked[job.ID]; ok {
		return nil
	}
	select {
	case m.backlog <- job:
		m.tracked[job.ID] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

// refill dispatches store-queued jobs that are not yet tracked, as far as the
// backlog allows.
func (m *Manager) refill(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	queued, err := m.source.Queued(ctx)
	if err != nil {
		m.setLastError(err)
		logging.WarnWithContext(m.logger, "failed to load queued jobs", "queue_load_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "queued jobs wait until the next worker frees up"),
		)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	for _, job := range queued {
		if err := m.enqueueLocked(job); errors.Is(err, ErrQueueFull) {
			return
		}
	}
}

func (m *Manager) work(ctx context.Context, worker int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", worker))
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.backlog:
			// A job handed out after shutdown stays queued for the next start.
			if ctx.Err() != nil {
				m.untrack(job.ID)
				return
			}
			m.runJob(ctx, logger, job)
			m.refill(ctx)
		}
	}
}

func (m *Manager) runJob(ctx context.Context, logger *slog.Logger, job *jobs.Job) {
	m.mu.Lock()
	m.active[job.ID] = time.Now()
	m.mu.Unlock()

	logger.Debug("worker picked job", logging.String(logging.FieldJobID, job.ID))
	outcome := m.runner.Run(ctx, job)

	m.mu.Lock()
	delete(m.active, job.ID)
	delete(m.tracked, job.ID)
	m.lastJob = job.ID
	m.lastStage = outcome.Stage
	m.processed++
	if outcome.Err != nil {
		m.lastErr = outcome.Err
	}
	m.mu.Unlock()
}

func (m *Manager) untrack(id string) {
	m.mu.Lock()
	delete(m.tracked, id)
	m.mu.Unlock()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
