package api

import (
	"testing"
	"time"

	"speechtrim/internal/config"
	"speechtrim/internal/jobs"
	"speechtrim/internal/workflow"
)

func TestFromJobVideoURL(t *testing.T) {
	job := &jobs.Job{
		ID:         "abc",
		Status:     jobs.StatusCompleted,
		Stage:      jobs.StageCompleted,
		Progress:   100,
		OutputPath: "/srv/out/processed_abc.mp4",
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	got := FromJob(job, "https://videos.example.com/")
	if got.VideoURL == nil || *got.VideoURL != "https://videos.example.com/media/processed_videos/processed_abc.mp4" {
		t.Fatalf("unexpected video url: %v", got.VideoURL)
	}
	if got.CurrentStage != "Completed" || got.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected conversion: %+v", got)
	}

	job.Status = jobs.StatusFailed
	job.Stage = jobs.StageFailed
	if FromJob(job, "").VideoURL != nil {
		t.Fatal("only completed jobs expose a video url")
	}
}

func TestFromSummary(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	got := FromSummary(workflow.Summary{
		Running:   true,
		Workers:   2,
		Active:    []workflow.ActiveJob{{ID: "a", Started: started}},
		LastStage: jobs.StageCompleted,
	})
	if !got.Running || len(got.Active) != 1 || got.Active[0].Started != "2026-03-01T12:00:00.000Z" || got.LastStage != "completed" {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestBaseURL(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:8000": "http://127.0.0.1:8000",
		"0.0.0.0:9000":   "http://127.0.0.1:9000",
		":7000":          "http://127.0.0.1:7000",
		"[::]:7000":      "http://127.0.0.1:7000",
	}
	for bind, want := range cases {
		cfg := config.Default()
		cfg.Paths.APIBind = bind
		if got := BaseURL(&cfg); got != want {
			t.Fatalf("BaseURL(%q) = %q, want %q", bind, got, want)
		}
	}
}
