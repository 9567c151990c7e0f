package jobs

import (
	"errors"
	"fmt"

	"speechtrim/internal/services"
)

var (
	// ErrTerminal rejects writes to a job that already completed or failed.
	ErrTerminal = errors.New("job is in a terminal stage")
	// ErrStageRegression rejects checkpoints that move a job backwards.
	ErrStageRegression = errors.New("stage or progress regression")
	// ErrNotTrimmed rejects completing a job that has not reached trimming_video.
	ErrNotTrimmed = errors.New("job has not reached the trimming stage")
	// ErrNotFound reports an unknown job id.
	ErrNotFound = fmt.Errorf("job %w", services.ErrNotFound)
	// ErrJobActive rejects removal of a job that is still being processed.
	ErrJobActive = errors.New("job is still processing")
)
