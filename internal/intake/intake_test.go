package intake_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"speechtrim/internal/intake"
	"speechtrim/internal/jobs"
	"speechtrim/internal/logging"
	"speechtrim/internal/services"
	"speechtrim/internal/testsupport"
	"speechtrim/internal/workflow"
)

type recordingDispatcher struct {
	err       error
	submitted []*jobs.Job
}

func (d *recordingDispatcher) Submit(job *jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.submitted = append(d.submitted, job)
	return nil
}

func TestSubmitStoresUploadAndDispatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	dispatch := &recordingDispatcher{}
	svc := intake.NewService(cfg, store, dispatch, logging.NewNop())

	payload := testsupport.MP4Bytes(4096)
	job, err := svc.Submit(context.Background(), intake.Upload{
		Filename: "Talk.MP4",
		Size:     int64(len(payload)),
		Reader:   bytes.NewReader(payload),
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if job.Status != jobs.StatusPending || job.Stage != jobs.StageQueued {
		t.Fatalf("unexpected job state: %s/%s", job.Status, job.Stage)
	}
	if job.SourceName != "Talk.MP4" || job.SourceBytes != int64(len(payload)) {
		t.Fatalf("unexpected source metadata: %+v", job)
	}
	want := filepath.Join(cfg.Paths.UploadDir, job.ID+".mp4")
	if job.SourcePath != want {
		t.Fatalf("expected source path %s, got %s", want, job.SourcePath)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read stored upload: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatal("stored upload differs from payload")
	}
	if len(dispatch.submitted) != 1 || dispatch.submitted[0].ID != job.ID {
		t.Fatalf("expected job to be dispatched, got %v", dispatch.submitted)
	}
}

func TestSubmitRejectsInvalidUploads(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		payload  []byte
		size     int64
		reason   string
	}{
		{name: "extension", filename: "notes.txt", payload: testsupport.MP4Bytes(64), reason: "unsupported file type"},
		{name: "no name", filename: "", payload: testsupport.MP4Bytes(64), reason: "missing file name"},
		{name: "empty", filename: "clip.mp4", payload: nil, reason: "file is empty"},
		{name: "not video", filename: "clip.mp4", payload: []byte(strings.Repeat("plain text ", 40)), reason: "not a recognised video"},
		{name: "declared too large", filename: "clip.mp4", payload: testsupport.MP4Bytes(64), size: 1 << 20, reason: "exceeds"},
		{name: "streamed too large", filename: "clip.mp4", payload: testsupport.MP4Bytes(2048), reason: "exceeds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			cfg.Upload.MaxBytes = 1024
			store := testsupport.MustOpenStore(t, cfg)
			dispatch := &recordingDispatcher{}
			svc := intake.NewService(cfg, store, dispatch, logging.NewNop())

			_, err := svc.Submit(context.Background(), intake.Upload{
				Filename: tc.filename,
				Size:     tc.size,
				Reader:   bytes.NewReader(tc.payload),
			})
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var rejection *intake.Rejection
			if !errors.As(err, &rejection) || !strings.Contains(rejection.Reason, tc.reason) {
				t.Fatalf("expected reason containing %q, got %v", tc.reason, err)
			}
			entries, _ := os.ReadDir(cfg.Paths.UploadDir)
			if len(entries) != 0 {
				t.Fatalf("expected no stored uploads, found %d", len(entries))
			}
			all, err := store.List(context.Background())
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(all) != 0 || len(dispatch.submitted) != 0 {
				t.Fatal("rejected upload must not create or dispatch a job")
			}
		})
	}
}

func TestSubmitMarksJobFailedWhenQueueFull(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := intake.NewService(cfg, store, &recordingDispatcher{err: workflow.ErrQueueFull}, logging.NewNop())

	job, err := svc.Submit(context.Background(), intake.Upload{
		Filename: "clip.mkv",
		Reader:   bytes.NewReader(testsupport.MP4Bytes(512)),
	})
	if !errors.Is(err, workflow.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if job == nil {
		t.Fatal("expected the failed job to be returned")
	}
	stored, err := store.Get(context.Background(), job.ID)
	if err != nil || stored == nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != jobs.StatusFailed || stored.ErrorDetail != intake.BusyReason || stored.FailedStage != jobs.StageQueued {
		t.Fatalf("unexpected stored job: %+v", stored)
	}
	if stored.OutputPath != "" {
		t.Fatalf("failed job must not carry an output path: %q", stored.OutputPath)
	}
}
