package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"speechtrim/internal/config"
	"speechtrim/internal/jobs"
	"speechtrim/internal/logging"
	"speechtrim/internal/media/ffmpeg"
	"speechtrim/internal/segments"
	"speechtrim/internal/services"
)

// StoppedReason is recorded on jobs interrupted by daemon shutdown.
const StoppedReason = "Daemon stopped"

// JobStore is the persistence the orchestrator writes transitions to.
type JobStore interface {
	Checkpoint(ctx context.Context, id string, stage jobs.Stage, progress int) error
	Complete(ctx context.Context, id, outputPath string) error
	Fail(ctx context.Context, id string, failedStage jobs.Stage, detail string) error
}

// MediaRunner runs ffmpeg operations.
type MediaRunner interface {
	Run(ctx context.Context, op ffmpeg.Operation) (string, error)
}

// SpeechDetector turns an audio file into timed speech segments.
type SpeechDetector interface {
	Transcribe(ctx context.Context, audioPath, workDir string) ([]segments.Segment, error)
}

// Transition is a persisted state change reported to observers.
type Transition struct {
	JobID    string
	Stage    jobs.Stage
	Progress int
	Status   jobs.Status
	Detail   string
}

// Observer receives every persisted transition, in order, from the job's goroutine.
type Observer func(Transition)

// Outcome summarises a finished run.
type Outcome struct {
	JobID       string
	Stage       jobs.Stage
	FailedStage jobs.Stage
	OutputPath  string
	Err         error
	Duration    time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers fn to receive persisted transitions.
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// Orchestrator runs jobs through the fixed stage table.
type Orchestrator struct {
	cfg      *config.Config
	store    JobStore
	media    MediaRunner
	detector SpeechDetector
	fillers  segments.FillerSet
	logger   *slog.Logger
	observer Observer
}

// New builds an orchestrator. The filler vocabulary comes from cfg.
func New(cfg *config.Config, store JobStore, media MediaRunner, detector SpeechDetector, logger *slog.Logger, opts ...Option) *Orchestrator {
	words := cfg.Filter.FillerWords
	if len(words) == 0 {
		words = segments.DefaultFillers()
	}
	o := &Orchestrator{
		cfg:      cfg,
		store:    store,
		media:    media,
		detector: detector,
		fillers:  segments.NewFillerSet(words),
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OutputPath returns where a completed job's video is published.
func (o *Orchestrator) OutputPath(jobID string) string {
	return filepath.Join(o.cfg.Paths.OutputDir, "processed_"+jobID+"."+o.cfg.FFmpeg.OutputFormat)
}

// WorkspacePath returns the per-job scratch directory.
func (o *Orchestrator) WorkspacePath(jobID string) string {
	return filepath.Join(o.cfg.Paths.StagingDir, jobID)
}

// Run processes job to a terminal state. It never returns an error or panics;
// the outcome mirrors what was persisted.
func (o *Orchestrator) Run(ctx context.Context, job *jobs.Job) (outcome Outcome) {
	started := time.Now()
	if job == nil {
		return Outcome{Err: errors.New("pipeline: nil job")}
	}
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, o.logger)

	run := &runState{
		job:       job,
		workspace: o.WorkspacePath(job.ID),
		output:    o.OutputPath(job.ID),
		logger:    logger,
		current:   jobs.StageQueued,
	}

	defer func() {
		if err := os.RemoveAll(run.workspace); err != nil {
			logging.WarnWithContext(logger, "workspace cleanup failed", "workspace_cleanup_failed",
				logging.String("workspace", run.workspace),
				logging.Error(err),
				logging.String(logging.FieldImpact, "temporary files remain until the stale sweep"),
			)
		}
		outcome.Duration = time.Since(started)
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panic recovered",
				logging.String(logging.FieldEventType, "pipeline_panic"),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			err := services.NewError(services.KindIOFailure, string(run.current), "pipeline",
				fmt.Sprintf("internal error: %v", r), nil)
			outcome = o.fail(ctx, run, err)
		}
	}()

	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("source_file", job.SourcePath),
		logging.String("source_name", job.DisplayName()),
	)

	for _, st := range o.steps() {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, run, services.NewError(services.KindInterrupted, string(run.current), "pipeline", StoppedReason, err))
		}
		if err := o.store.Checkpoint(ctx, job.ID, st.stage, st.progress); err != nil {
			if errors.Is(err, jobs.ErrTerminal) || errors.Is(err, jobs.ErrNotFound) {
				logger.Warn("job no longer runnable; abandoning run",
					logging.String(logging.FieldEventType, "job_abandoned"),
					logging.Error(err),
				)
				return Outcome{JobID: job.ID, Stage: run.current, Err: err}
			}
			return o.fail(ctx, run, services.NewError(services.KindIOFailure, string(st.stage), "checkpoint", "persist stage", err))
		}
		run.current = st.stage
		o.notify(Transition{JobID: job.ID, Stage: st.stage, Progress: st.progress, Status: st.stage.Status()})

		stageCtx := services.WithStage(ctx, string(st.stage))
		stageLogger := logging.WithContext(stageCtx, o.logger)
		stageStart := time.Now()
		stageLogger.Debug("stage started", logging.Int(logging.FieldProgress, st.progress))
		if err := st.run(stageCtx, run); err != nil {
			return o.fail(ctx, run, err)
		}
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("stage_duration", time.Since(stageStart)),
		)
	}

	return o.complete(ctx, run)
}

func (o *Orchestrator) complete(ctx context.Context, run *runState) Outcome {
	persistCtx := context.WithoutCancel(ctx)
	if err := o.store.Complete(persistCtx, run.job.ID, run.output); err != nil {
		// The published file must not outlive a job that is not completed.
		_ = os.Remove(run.output)
		return o.fail(ctx, run, services.NewError(services.KindIOFailure, string(run.current), "complete", "record output", err))
	}
	o.notify(Transition{JobID: run.job.ID, Stage: jobs.StageCompleted, Progress: 100, Status: jobs.StatusCompleted})
	run.logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("output_file", run.output),
		logging.Int("segments_kept", len(run.kept)),
		logging.Int("segments_detected", len(run.detected)),
		logging.Float64("kept_seconds", run.keptSeconds),
	)
	return Outcome{JobID: run.job.ID, Stage: jobs.StageCompleted, OutputPath: run.output}
}

func (o *Orchestrator) fail(ctx context.Context, run *runState, stageErr error) Outcome {
	failedStage := run.current
	detail := FailureDetail(stageErr)
	if ctx.Err() != nil {
		if kind, _ := services.KindOf(stageErr); kind == services.KindInterrupted || kind == "" {
			detail = StoppedReason
		}
	}
	if run.published {
		_ = os.Remove(run.output)
	}

	details := services.Details(stageErr)
	logging.ErrorWithContext(run.logger, "job failed", "job_failed",
		logging.String(logging.FieldStage, string(failedStage)),
		logging.String("error_kind", string(details.Kind)),
		logging.String("error_operation", details.Operation),
		logging.String("error_detail", detail),
		logging.String(logging.FieldErrorHint, hintFor(details.Kind)),
	)

	if err := o.store.Fail(context.WithoutCancel(ctx), run.job.ID, failedStage, detail); err != nil {
		run.logger.Error("failed to persist job failure",
			logging.String(logging.FieldEventType, "job_failure_persist_failed"),
			logging.Error(err),
		)
		return Outcome{JobID: run.job.ID, Stage: failedStage, Err: errors.Join(stageErr, err)}
	}
	o.notify(Transition{JobID: run.job.ID, Stage: jobs.StageFailed, Status: jobs.StatusFailed, Detail: detail})
	return Outcome{JobID: run.job.ID, Stage: jobs.StageFailed, FailedStage: failedStage, Err: stageErr}
}

func (o *Orchestrator) notify(t Transition) {
	if o.observer != nil {
		o.observer(t)
	}
}

// FailureDetail renders the persisted error detail for err: the failure kind
// followed by its message, e.g. "empty_segments_failure: no valid segments".
func FailureDetail(err error) string {
	if err == nil {
		return ""
	}
	details := services.Details(err)
	message := strings.TrimSpace(details.Message)
	if message == "" && details.Cause != nil {
		message = strings.TrimSpace(details.Cause.Error())
	}
	if message == "" {
		message = "failed"
	}
	if details.Kind == "" {
		return message
	}
	return string(details.Kind) + ": " + message
}

func hintFor(kind services.Kind) string {
	switch kind {
	case services.KindToolFailure:
		return "inspect the ffmpeg output in error_detail; the source may be corrupt or unsupported"
	case services.KindDetectionFailure:
		return "check the whisper binary and model with `speechtrim check`"
	case services.KindEmptySegmentsFailure:
		return "the video contains no speech beyond filler words"
	case services.KindInterrupted:
		return "resubmit the video once the daemon is running"
	default:
		return "check disk space and permissions for the staging and output directories"
	}
}
