package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"speechtrim/internal/config"
	"speechtrim/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// CompleteJob walks a job to trimming_video and completes it with output.
func CompleteJob(ctx context.Context, store *jobs.Store, id, output string) error {
	if err := store.Checkpoint(ctx, id, jobs.StageTrimmingVideo, 90); err != nil {
		return err
	}
	return store.Complete(ctx, id, output)
}

// NewJob writes a small video into the upload dir and creates a queued job for it.
func NewJob(t testing.TB, cfg *config.Config, store *jobs.Store) *jobs.Job {
	t.Helper()

	ctx := context.Background()
	source := filepath.Join(cfg.Paths.UploadDir, "upload-"+filepath.Base(t.TempDir())+".mp4")
	WriteVideo(t, source, 4096)
	job, err := store.Create(ctx, jobs.NewJob{SourcePath: source, SourceName: "talk.mp4", SourceBytes: 4096})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}
