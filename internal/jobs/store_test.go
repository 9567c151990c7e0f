package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"speechtrim/internal/jobs"
	"speechtrim/internal/services"
	"speechtrim/internal/testsupport"
)

func TestCreateStartsQueued(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.Create(ctx, jobs.NewJob{SourcePath: "/tmp/in.mp4", SourceName: "in.mp4", SourceBytes: 10})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected generated id")
	}
	if job.Stage != jobs.StageQueued || job.Status != jobs.StatusPending || job.Progress != 0 {
		t.Fatalf("unexpected initial state: %+v", job)
	}
	if job.OutputPath != "" || job.StartedAt != nil {
		t.Fatalf("unexpected output or start time: %+v", job)
	}
	if job.DisplayName() != "in.mp4" {
		t.Fatalf("unexpected display name %q", job.DisplayName())
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := store.Create(ctx, jobs.NewJob{}); err == nil {
		t.Fatal("expected error for missing source path")
	}
	if _, err := store.Create(ctx, jobs.NewJob{ID: "not-a-uuid", SourcePath: "/x"}); err == nil {
		t.Fatal("expected error for malformed id")
	}
}

func TestGetUnknownReturnsNil(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	job, err := store.Get(context.Background(), "2b0c5a3e-0000-4000-8000-000000000000")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %+v", job)
	}
}

func TestCheckpointWalkAndComplete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, cfg, store)

	walk := []struct {
		stage    jobs.Stage
		progress int
	}{
		{jobs.StageExtractingAudio, 10},
		{jobs.StageEnhancingAudio, 25},
		{jobs.StageDetectingSpeech, 50},
		{jobs.StageFilteringSegments, 75},
		{jobs.StageTrimmingVideo, 90},
	}
	for _, step := range walk {
		if err := store.Checkpoint(ctx, job.ID, step.stage, step.progress); err != nil {
			t.Fatalf("Checkpoint(%s) failed: %v", step.stage, err)
		}
		got, err := store.Get(ctx, job.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Stage != step.stage || got.Progress != step.progress || got.Status != jobs.StatusInProgress {
			t.Fatalf("unexpected triple after %s: %+v", step.stage, got)
		}
		if got.OutputPath != "" {
			t.Fatalf("output path must stay empty while in progress: %q", got.OutputPath)
		}
		if got.StartedAt == nil {
			t.Fatal("expected started_at once work began")
		}
	}

	if err := store.Complete(ctx, job.ID, "/out/processed.mp4"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	got, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Stage != jobs.StageCompleted || got.Status != jobs.StatusCompleted || got.Progress != 100 {
		t.Fatalf("unexpected completed state: %+v", got)
	}
	if got.OutputPath != "/out/processed.mp4" || got.FinishedAt == nil {
		t.Fatalf("unexpected completion fields: %+v", got)
	}
}

func TestCheckpointRejectsRegression(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, cfg, store)

	if err := store.Checkpoint(ctx, job.ID, jobs.StageDetectingSpeech, 50); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	err := store.Checkpoint(ctx, job.ID, jobs.StageEnhancingAudio, 25)
	if !errors.Is(err, jobs.ErrStageRegression) {
		t.Fatalf("expected ErrStageRegression, got %v", err)
	}
	err = store.Checkpoint(ctx, job.ID, jobs.StageDetectingSpeech, 40)
	if !errors.Is(err, jobs.ErrStageRegression) {
		t.Fatalf("expected ErrStageRegression for lower progress, got %v", err)
	}
	if err := store.Checkpoint(ctx, job.ID, jobs.StageDetectingSpeech, 50); err != nil {
		t.Fatalf("repeating a checkpoint should be accepted: %v", err)
	}
	if err := store.Checkpoint(ctx, job.ID, jobs.StageCompleted, 100); err == nil {
		t.Fatal("checkpoint must not reach a terminal stage")
	}
}

func TestTerminalStagesAbsorb(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	failed := testsupport.NewJob(t, cfg, store)
	if err := store.Checkpoint(ctx, failed.ID, jobs.StageExtractingAudio, 10); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if err := store.Fail(ctx, failed.ID, jobs.StageExtractingAudio, "tool_failure: ffmpeg exited 1"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if err := store.Checkpoint(ctx, failed.ID, jobs.StageEnhancingAudio, 25); !errors.Is(err, jobs.ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if err := store.Complete(ctx, failed.ID, "/out.mp4"); !errors.Is(err, jobs.ErrTerminal) {
		t.Fatalf("expected ErrTerminal on complete, got %v", err)
	}

	done := testsupport.NewJob(t, cfg, store)
	if err := testsupport.CompleteJob(ctx, store, done.ID, "/out.mp4"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if err := store.Fail(ctx, done.ID, "", "late"); !errors.Is(err, jobs.ErrTerminal) {
		t.Fatalf("expected ErrTerminal on fail, got %v", err)
	}
	got, _ := store.Get(ctx, done.ID)
	if got.OutputPath != "/out.mp4" || got.Status != jobs.StatusCompleted {
		t.Fatalf("completed job changed: %+v", got)
	}
}

func TestFailKeepsProgressAndRecordsStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, cfg, store)

	if err := store.Checkpoint(ctx, job.ID, jobs.StageFilteringSegments, 75); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if err := store.Fail(ctx, job.ID, "", "no valid segments"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	got, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Stage != jobs.StageFailed || got.Status != jobs.StatusFailed {
		t.Fatalf("unexpected failure state: %+v", got)
	}
	if got.FailedStage != jobs.StageFilteringSegments {
		t.Fatalf("expected failed stage to default to persisted stage, got %q", got.FailedStage)
	}
	if got.Progress != 75 {
		t.Fatalf("expected progress to stay at 75, got %d", got.Progress)
	}
	if got.ErrorDetail != "no valid segments" || got.OutputPath != "" {
		t.Fatalf("unexpected failure fields: %+v", got)
	}
}

func TestUnknownJobTransitions(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	id := "2b0c5a3e-0000-4000-8000-000000000000"

	if err := store.Checkpoint(ctx, id, jobs.StageExtractingAudio, 10); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Fail(ctx, id, "", "x"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCompleteRequiresTrimmingStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	queued := testsupport.NewJob(t, cfg, store)
	filtering := testsupport.NewJob(t, cfg, store)
	if err := store.Checkpoint(ctx, filtering.ID, jobs.StageFilteringSegments, 75); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}

	for _, job := range []*jobs.Job{queued, filtering} {
		before, _ := store.Get(ctx, job.ID)
		if err := store.Complete(ctx, job.ID, "/out.mp4"); !errors.Is(err, jobs.ErrNotTrimmed) {
			t.Fatalf("expected ErrNotTrimmed for %s job, got %v", before.Stage, err)
		}
		after, _ := store.Get(ctx, job.ID)
		if after.Stage != before.Stage || after.Progress != before.Progress || after.OutputPath != "" {
			t.Fatalf("rejected complete changed the job: %+v", after)
		}
	}
}

func TestFailInterruptedAndQueued(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	queued := testsupport.NewJob(t, cfg, store)
	working := testsupport.NewJob(t, cfg, store)
	done := testsupport.NewJob(t, cfg, store)
	if err := store.Checkpoint(ctx, working.ID, jobs.StageDetectingSpeech, 50); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if err := testsupport.CompleteJob(ctx, store, done.ID, "/out.mp4"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	count, err := store.FailInterrupted(ctx, "Daemon stopped")
	if err != nil {
		t.Fatalf("FailInterrupted failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 interrupted job, got %d", count)
	}
	got, _ := store.Get(ctx, working.ID)
	if got.Status != jobs.StatusFailed || got.FailedStage != jobs.StageDetectingSpeech || got.ErrorDetail != "Daemon stopped" {
		t.Fatalf("unexpected interrupted job: %+v", got)
	}

	pending, err := store.Queued(ctx)
	if err != nil {
		t.Fatalf("Queued failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != queued.ID {
		t.Fatalf("unexpected queued jobs: %+v", pending)
	}
}

func TestListStatsRemoveAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, cfg, store)
	second := testsupport.NewJob(t, cfg, store)
	third := testsupport.NewJob(t, cfg, store)
	if err := store.Checkpoint(ctx, second.ID, jobs.StageExtractingAudio, 10); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if err := store.Fail(ctx, third.ID, jobs.StageQueued, "server busy"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != third.ID || all[2].ID != first.ID {
		t.Fatalf("expected newest first, got %v", ids(all))
	}

	failed, err := store.List(ctx, jobs.StatusFailed)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != third.ID {
		t.Fatalf("unexpected failed list: %v", ids(failed))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[jobs.StatusPending] != 1 || stats[jobs.StatusInProgress] != 1 || stats[jobs.StatusFailed] != 1 || stats[jobs.StatusCompleted] != 0 {
		t.Fatalf("unexpected stats: %v", stats)
	}

	if _, err := store.Remove(ctx, second.ID); !errors.Is(err, jobs.ErrJobActive) {
		t.Fatalf("expected ErrJobActive, got %v", err)
	}
	removed, err := store.Remove(ctx, first.ID)
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	cleared, err := store.ClearTerminal(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("ClearTerminal = %d, %v", cleared, err)
	}
}

func TestConcurrentCheckpointsStayConsistent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created := make([]*jobs.Job, 4)
	for i := range created {
		created[i] = testsupport.NewJob(t, cfg, store)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(created))
	for _, job := range created {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for _, stage := range jobs.WorkingStages() {
				if err := store.Checkpoint(ctx, id, stage, stage.Rank()*10); err != nil {
					errs <- err
					return
				}
			}
			errs <- store.Complete(ctx, id, "/out/"+id+".mp4")
		}(job.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent transition failed: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[jobs.StatusCompleted] != len(created) {
		t.Fatalf("expected all completed, got %v", stats)
	}
}

func ids(list []*jobs.Job) []string {
	out := make([]string, len(list))
	for i, job := range list {
		out[i] = job.ID
	}
	return out
}
