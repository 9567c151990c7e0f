package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"speechtrim/internal/api"
	"speechtrim/internal/config"
	"speechtrim/internal/intake"
	"speechtrim/internal/jobs"
	"speechtrim/internal/logging"
	"speechtrim/internal/pipeline"
	"speechtrim/internal/preflight"
	"speechtrim/internal/staging"
	"speechtrim/internal/workflow"
)

const janitorInterval = time.Hour

// Daemon coordinates background processing and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *jobs.Store
	workflow *workflow.Manager
	intake   *intake.Service
	api      *api.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	bg      sync.WaitGroup
	// drained closes once the workers of the last Stop have exited and the
	// lock is released.
	drained chan struct{}
}

// New constructs a daemon around store. runner processes each dispatched job,
// normally a *pipeline.Orchestrator.
func New(cfg *config.Config, store *jobs.Store, runner workflow.JobRunner, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || runner == nil {
		return nil, errors.New("daemon requires config, store and job runner")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.workflow = workflow.NewManager(cfg, store, runner, logger)
	d.intake = intake.NewService(cfg, store, d.workflow, logger)
	d.api = api.NewServer(cfg, store, d.intake, d.Status, logger)
	return d, nil
}

// Start acquires the lock, recovers state left by a previous process and
// begins serving.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if d.drained != nil {
		select {
		case <-d.drained:
		default:
			return errors.New("workers from the previous run are still shutting down")
		}
	}
	if err := os.MkdirAll(d.cfg.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another speechtrim daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.recover(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.reportPreflight()

	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.Start(runCtx); err != nil {
		d.workflow.Stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}

	d.cancel = cancel
	d.bg.Add(1)
	go d.janitor(runCtx)

	d.running.Store(true)
	d.logger.Info("speechtrim daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.Addr()),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// recover fails jobs a crashed or stopped process left mid-pipeline and
// removes every workspace, since nothing is running yet.
func (d *Daemon) recover(ctx context.Context) error {
	count, err := d.store.FailInterrupted(ctx, pipeline.StoppedReason)
	if err != nil {
		return fmt.Errorf("fail interrupted jobs: %w", err)
	}
	if count > 0 {
		logging.WarnWithContext(d.logger, "failed jobs interrupted by previous shutdown", "jobs_interrupted",
			logging.Int64("count", count),
			logging.String(logging.FieldImpact, "those uploads must be submitted again"),
		)
	}
	result := staging.CleanOrphaned(ctx, d.cfg.Paths.StagingDir, nil, d.logger)
	for _, cleanupErr := range result.Errors {
		d.logger.Warn("workspace cleanup error", logging.String("path", cleanupErr.Path), logging.Error(cleanupErr.Error))
	}
	return nil
}

func (d *Daemon) reportPreflight() {
	for _, result := range preflight.Failed(preflight.RunAll(d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run speechtrim check for details"),
			logging.String(logging.FieldImpact, "jobs may fail until this is fixed"),
		)
	}
}

func (d *Daemon) janitor(ctx context.Context) {
	defer d.bg.Done()
	maxAge := time.Duration(d.cfg.Workflow.StaleWorkspaceHours) * time.Hour
	if maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active := make(map[string]struct{})
			for _, job := range d.workflow.Status().Active {
				active[job.ID] = struct{}{}
			}
			staging.CleanStale(ctx, d.cfg.Paths.StagingDir, maxAge, active, d.logger)
		}
	}
}

// Stop stops serving, cancels in-flight jobs and releases the lock. Workers
// get workflow.shutdown_timeout seconds to record their final state; workers
// still running after that keep the lock held until they exit, so no other
// instance can fail their jobs as interrupted underneath them.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}

	workersDone := make(chan struct{})
	drained := make(chan struct{})
	d.drained = drained
	go func() {
		d.workflow.Stop()
		close(workersDone)
	}()
	finish := func() {
		d.releaseLock()
		close(drained)
	}
	timeout := time.Duration(d.cfg.Workflow.ShutdownTimeout) * time.Second
	var timer <-chan time.Time
	if timeout > 0 {
		timer = time.After(timeout)
	}
	select {
	case <-workersDone:
		d.bg.Wait()
		finish()
	case <-timer:
		stuck := make([]string, 0)
		for _, job := range d.workflow.Status().Active {
			stuck = append(stuck, job.ID)
		}
		logging.WarnWithContext(d.logger, "workers did not stop in time", "shutdown_timeout",
			logging.Duration("timeout", timeout),
			logging.Any("job_ids", stuck),
			logging.String(logging.FieldImpact, "these jobs are failed as interrupted on next start; the lock is held until they exit"),
		)
		d.bg.Wait()
		go func() {
			<-workersDone
			finish()
		}()
	}
	d.running.Store(false)
	d.logger.Info("speechtrim daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close stops the daemon and closes the store once every worker has exited.
func (d *Daemon) Close() error {
	d.Stop()
	if d.drained != nil {
		<-d.drained
	}
	return d.store.Close()
}

// Addr returns the bound API address while running.
func (d *Daemon) Addr() string {
	return d.api.Addr()
}

// Submit runs an upload through intake, for in-process callers.
func (d *Daemon) Submit(ctx context.Context, up intake.Upload) (*jobs.Job, error) {
	return d.intake.Submit(ctx, up)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Workflow:     api.FromSummary(d.workflow.Status()),
		Dependencies: api.FromDependencies(preflight.CheckSystemDeps(d.cfg)),
	}
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("job stats unavailable", logging.Error(err))
	}
	status.Stats = api.FromStats(stats)
	return status
}
