package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"speechtrim/internal/config"
	"speechtrim/internal/jobs"
	"speechtrim/internal/logging"
	"speechtrim/internal/services"
	"speechtrim/internal/workflow"
)

// BusyReason is recorded on jobs that could not be dispatched.
const BusyReason = "server busy"

// sniffBytes is how much of an upload content detection looks at.
const sniffBytes = 262

// Upload is a single incoming file.
type Upload struct {
	Filename string
	// Size is the declared size; <= 0 means unknown.
	Size   int64
	Reader io.Reader
}

// JobStore is the subset of the job store intake writes to.
type JobStore interface {
	Create(ctx context.Context, params jobs.NewJob) (*jobs.Job, error)
	Fail(ctx context.Context, id string, failedStage jobs.Stage, detail string) error
}

// Dispatcher hands a created job to the workers.
type Dispatcher interface {
	Submit(job *jobs.Job) error
}

// Service validates uploads and creates jobs.
type Service struct {
	uploadDir  string
	maxBytes   int64
	extensions map[string]struct{}
	store      JobStore
	dispatch   Dispatcher
	logger     *slog.Logger
}

// NewService builds an intake service from cfg.
func NewService(cfg *config.Config, store JobStore, dispatch Dispatcher, logger *slog.Logger) *Service {
	exts := make(map[string]struct{}, len(cfg.Upload.AllowedExtensions))
	for _, ext := range cfg.Upload.AllowedExtensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &Service{
		uploadDir:  cfg.Paths.UploadDir,
		maxBytes:   cfg.Upload.MaxBytes,
		extensions: exts,
		store:      store,
		dispatch:   dispatch,
		logger:     logging.NewComponentLogger(logger, "intake"),
	}
}

// Submit stores the upload, creates its job and dispatches it without waiting
// for processing. A job that cannot be dispatched is returned failed together
// with workflow.ErrQueueFull.
func (s *Service) Submit(ctx context.Context, up Upload) (*jobs.Job, error) {
	name := filepath.Base(strings.TrimSpace(up.Filename))
	ext := strings.ToLower(filepath.Ext(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return nil, invalid("missing file name")
	}
	if _, ok := s.extensions[ext]; !ok {
		return nil, invalid(fmt.Sprintf("unsupported file type %q", ext))
	}
	if up.Reader == nil {
		return nil, invalid("no file provided")
	}
	if s.maxBytes > 0 && up.Size > s.maxBytes {
		return nil, invalid(fmt.Sprintf("file exceeds %s limit", humanize.IBytes(uint64(s.maxBytes))))
	}

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(up.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, services.Wrap(services.ErrTransient, "intake", "read upload", "failed to read upload", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, invalid("file is empty")
	}
	if !filetype.IsVideo(head) {
		return nil, invalid("file content is not a recognised video")
	}

	id := uuid.NewString()
	dest := filepath.Join(s.uploadDir, id+ext)
	written, err := s.save(dest, io.MultiReader(bytes.NewReader(head), up.Reader))
	if err != nil {
		return nil, err
	}

	job, err := s.store.Create(ctx, jobs.NewJob{
		ID:          id,
		SourcePath:  dest,
		SourceName:  name,
		SourceBytes: written,
	})
	if err != nil {
		_ = os.Remove(dest)
		return nil, fmt.Errorf("create job: %w", err)
	}

	logger := s.logger.With(logging.String(logging.FieldJobID, job.ID))
	logger.Info("upload accepted",
		logging.String(logging.FieldEventType, "upload_accepted"),
		logging.String("file", name),
		logging.String("size", humanize.IBytes(uint64(written))),
	)

	if err := s.dispatch.Submit(job); err != nil {
		failCtx := context.WithoutCancel(ctx)
		if failErr := s.store.Fail(failCtx, job.ID, jobs.StageQueued, BusyReason); failErr != nil {
			logger.Error("failed to record dispatch failure", logging.Error(failErr))
		}
		logging.WarnWithContext(logger, "job not dispatched", "dispatch_rejected",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "raise workflow.max_pending or retry later"),
			logging.String(logging.FieldImpact, "job marked failed"),
		)
		job.Stage = jobs.StageFailed
		job.FailedStage = jobs.StageQueued
		job.Status = jobs.StatusFailed
		job.ErrorDetail = BusyReason
		if errors.Is(err, workflow.ErrQueueFull) {
			return job, err
		}
		return job, fmt.Errorf("dispatch job: %w", err)
	}
	return job, nil
}

// save streams r into dest, enforcing the size limit. The partial file is
// removed on any failure.
func (s *Service) save(dest string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return 0, services.Wrap(services.ErrConfiguration, "intake", "prepare upload dir", "upload directory unavailable", err)
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "intake", "create upload", "failed to store upload", err)
	}
	limit := s.maxBytes
	if limit <= 0 {
		limit = 1<<63 - 2
	}
	written, copyErr := io.Copy(f, io.LimitReader(r, limit+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		err = services.Wrap(services.ErrTransient, "intake", "write upload", "failed to store upload", copyErr)
	case written > limit:
		err = invalid(fmt.Sprintf("file exceeds %s limit", humanize.IBytes(uint64(s.maxBytes))))
	case closeErr != nil:
		err = services.Wrap(services.ErrTransient, "intake", "write upload", "failed to store upload", closeErr)
	}
	if err != nil {
		_ = os.Remove(dest)
		return 0, err
	}
	return written, nil
}

// Rejection is a validation failure whose Reason is safe to show to clients.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

// Is reports Rejection as services.ErrValidation.
func (r *Rejection) Is(target error) bool { return target == services.ErrValidation }

func invalid(reason string) error {
	return &Rejection{Reason: reason}
}
