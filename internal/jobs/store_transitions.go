package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Checkpoint records entry into a working stage together with its progress.
// Terminal jobs and backwards moves are rejected.
func (s *Store) Checkpoint(ctx context.Context, id string, stage Stage, progress int) error {
	if stage.Rank() < 0 || stage.IsTerminal() {
		return fmt.Errorf("checkpoint: invalid stage %q", stage)
	}
	if progress < 0 || progress > 100 {
		return fmt.Errorf("checkpoint: progress %d out of range", progress)
	}

	ts := s.timestamp()
	var started any
	if stage != StageQueued {
		started = ts
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET stage = ?, stage_rank = ?, progress = ?, status = ?, updated_at = ?,
             started_at = COALESCE(started_at, ?)
         WHERE id = ? AND stage NOT IN (?, ?) AND stage_rank <= ? AND progress <= ?`,
		stage,
		stage.Rank(),
		progress,
		stage.Status(),
		ts,
		started,
		id,
		StageCompleted,
		StageFailed,
		stage.Rank(),
		progress,
	)
	if err != nil {
		return fmt.Errorf("checkpoint job: %w", err)
	}
	return s.explainRejection(ctx, res, id, func(job *Job) error {
		return fmt.Errorf("%w: %s@%d -> %s@%d", ErrStageRegression, job.Stage, job.Progress, stage, progress)
	})
}

// Complete marks a job completed and records its output. It is the only write
// that sets the output path, and only a job in trimming_video may complete.
func (s *Store) Complete(ctx context.Context, id, outputPath string) error {
	if strings.TrimSpace(outputPath) == "" {
		return errors.New("complete: output path is required")
	}
	ts := s.timestamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET stage = ?, stage_rank = ?, progress = 100, status = ?, output_path = ?,
             failed_stage = NULL, error_detail = NULL, updated_at = ?, finished_at = ?
         WHERE id = ? AND stage = ?`,
		StageCompleted,
		StageCompleted.Rank(),
		StatusCompleted,
		outputPath,
		ts,
		ts,
		id,
		StageTrimmingVideo,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return s.explainRejection(ctx, res, id, func(job *Job) error {
		return fmt.Errorf("%w: %s is %s", ErrNotTrimmed, id, job.Stage)
	})
}

// Fail marks a job failed. Progress keeps its last value and any output path is
// cleared. An empty failedStage records the stage persisted at the time.
func (s *Store) Fail(ctx context.Context, id string, failedStage Stage, detail string) error {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = "unknown error"
	}
	ts := s.timestamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET failed_stage = COALESCE(?, stage), stage = ?, stage_rank = ?, status = ?,
             error_detail = ?, output_path = NULL, updated_at = ?, finished_at = ?
         WHERE id = ? AND stage NOT IN (?, ?)`,
		nullableString(string(failedStage)),
		StageFailed,
		StageFailed.Rank(),
		StatusFailed,
		detail,
		ts,
		ts,
		id,
		StageCompleted,
		StageFailed,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return s.explainRejection(ctx, res, id, nil)
}

// FailInterrupted fails every job left in a working stage, typically after a
// crash removed the artifacts a run depended on.
func (s *Store) FailInterrupted(ctx context.Context, reason string) (int64, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "interrupted"
	}
	working := WorkingStages()
	ts := s.timestamp()
	args := []any{StageFailed, StageFailed.Rank(), StatusFailed, reason, ts, ts}
	args = append(args, stageArgs(working)...)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET failed_stage = stage, stage = ?, stage_rank = ?, status = ?, error_detail = ?,
             output_path = NULL, updated_at = ?, finished_at = ?
         WHERE stage IN (`+makePlaceholders(len(working))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

// explainRejection maps a zero-row update onto the reason it was refused.
func (s *Store) explainRejection(ctx context.Context, res rowsAffected, id string, regression func(*Job) error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case job == nil:
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	case job.IsTerminal():
		return fmt.Errorf("%w: %s is %s", ErrTerminal, id, job.Stage)
	case regression != nil:
		return regression(job)
	default:
		return fmt.Errorf("job %s was not updated", id)
	}
}
