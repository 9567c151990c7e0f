package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"speechtrim/internal/api"
	"speechtrim/internal/config"
	"speechtrim/internal/intake"
	"speechtrim/internal/jobs"
	"speechtrim/internal/logging"
	"speechtrim/internal/testsupport"
	"speechtrim/internal/workflow"
)

type stubDispatcher struct {
	err error
}

func (d stubDispatcher) Submit(*jobs.Job) error { return d.err }

type harness struct {
	cfg    *config.Config
	store  *jobs.Store
	client *api.Client
	url    string
}

func newHarness(t *testing.T, dispatchErr error) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := intake.NewService(cfg, store, stubDispatcher{err: dispatchErr}, logging.NewNop())
	status := func(ctx context.Context) api.DaemonStatus {
		stats, _ := store.Stats(ctx)
		return api.DaemonStatus{Running: true, Stats: api.FromStats(stats)}
	}
	srv := api.NewServer(cfg, store, svc, status, logging.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{cfg: cfg, store: store, client: api.NewClient(ts.URL), url: ts.URL}
}

func (h *harness) upload(t *testing.T, name string) (api.UploadResponse, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	testsupport.WriteVideo(t, path, 8192)
	return h.client.Upload(context.Background(), path)
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode, body
}

func TestUploadCreatesQueuedJob(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := h.upload(t, "talk.mp4")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if resp.Message != api.UploadMessage || resp.ID == "" {
		t.Fatalf("unexpected upload response: %+v", resp)
	}

	code, body := getJSON(t, h.url+"/api/videos/status/"+resp.ID+"/")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "pending" || body["current_stage"] != "Queued" || body["progress"] != float64(0) {
		t.Fatalf("unexpected status body: %v", body)
	}
	if v, ok := body["video_url"]; !ok || v != nil {
		t.Fatalf("video_url must be present and null before completion, got %v", body["video_url"])
	}
}

func TestUploadRejectsUnsupportedFile(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.upload(t, "notes.txt")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	list, err := h.client.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("rejected upload created jobs: %+v", list)
	}
}

func TestUploadWithoutFileField(t *testing.T) {
	h := newHarness(t, nil)
	resp, err := http.Post(h.url+"/api/videos/upload/", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadReportsBusyQueue(t *testing.T) {
	h := newHarness(t, workflow.ErrQueueFull)

	_, err := h.upload(t, "talk.mp4")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", err)
	}
	failed, err := h.client.List(context.Background(), jobs.StatusFailed)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ErrorDetail != intake.BusyReason {
		t.Fatalf("expected one busy failure, got %+v", failed)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	h := newHarness(t, nil)

	for _, id := range []string{"6f1c2a8e-2b7c-4f57-9d35-1c8f0b6a9e21", "42"} {
		code, body := getJSON(t, h.url+"/api/videos/status/"+id+"/")
		if code != http.StatusNotFound || body["error"] != api.NotFoundMessage {
			t.Fatalf("id %s: expected 404 not found, got %d %v", id, code, body)
		}
	}
	if _, err := h.client.Status(context.Background(), "6f1c2a8e-2b7c-4f57-9d35-1c8f0b6a9e21"); !errors.Is(err, api.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestCompletedJobServesVideo(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	job := testsupport.NewJob(t, h.cfg, h.store)

	output := filepath.Join(h.cfg.Paths.OutputDir, "processed_"+job.ID+".mp4")
	testsupport.WriteVideo(t, output, 1024)
	if err := h.store.Checkpoint(ctx, job.ID, jobs.StageTrimmingVideo, 90); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if err := h.store.Complete(ctx, job.ID, output); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	status, err := h.client.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	want := "/media/processed_videos/processed_" + job.ID + ".mp4"
	if status.Status != "completed" || status.Progress != 100 || status.VideoURL == nil || *status.VideoURL != want {
		t.Fatalf("unexpected completed status: %+v", status)
	}

	resp, err := http.Get(h.url + *status.VideoURL)
	if err != nil {
		t.Fatalf("GET video: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || len(data) != 1024 {
		t.Fatalf("expected 1024 byte video, got %d (%d bytes)", resp.StatusCode, len(data))
	}
}

func TestFailedJobReportsDetail(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	job := testsupport.NewJob(t, h.cfg, h.store)
	if err := h.store.Checkpoint(ctx, job.ID, jobs.StageExtractingAudio, 10); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if err := h.store.Fail(ctx, job.ID, "", "tool_failure: ffmpeg exited with status 1"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	code, body := getJSON(t, h.url+"/api/videos/status/"+job.ID)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "failed" || body["failed_stage"] != "extracting_audio" || body["progress"] != float64(10) {
		t.Fatalf("unexpected failure body: %v", body)
	}
	if body["error_detail"] != "tool_failure: ffmpeg exited with status 1" || body["video_url"] != nil {
		t.Fatalf("unexpected failure detail: %v", body)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	done := testsupport.NewJob(t, h.cfg, h.store)
	testsupport.NewJob(t, h.cfg, h.store)
	if err := testsupport.CompleteJob(ctx, h.store, done.ID, filepath.Join(h.cfg.Paths.OutputDir, "x.mp4")); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	all, err := h.client.List(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 jobs, got %d (%v)", len(all), err)
	}
	completed, err := h.client.List(ctx, jobs.StatusCompleted)
	if err != nil || len(completed) != 1 || completed[0].ID != done.ID {
		t.Fatalf("unexpected completed list: %+v (%v)", completed, err)
	}

	code, body := getJSON(t, h.url+"/api/videos/?status=bogus")
	if code != http.StatusBadRequest || body["error"] == nil {
		t.Fatalf("expected 400 for unknown status, got %d %v", code, body)
	}
}

func TestMediaRejectsTraversal(t *testing.T) {
	h := newHarness(t, nil)
	if err := os.MkdirAll(h.cfg.Paths.OutputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, path := range []string{"/media/processed_videos/..%2Fsecret", "/media/processed_videos/missing.mp4"} {
		resp, err := http.Get(h.url + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

func TestDaemonStatusEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	testsupport.NewJob(t, h.cfg, h.store)

	status, err := h.client.DaemonStatus(context.Background())
	if err != nil {
		t.Fatalf("DaemonStatus failed: %v", err)
	}
	if !status.Running || status.Stats["pending"] != 1 || len(status.Stats) != 4 {
		t.Fatalf("unexpected daemon status: %+v", status)
	}
}
