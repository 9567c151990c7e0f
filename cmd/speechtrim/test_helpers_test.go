package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"speechtrim/internal/config"
	"speechtrim/internal/daemon"
	"speechtrim/internal/jobs"
	"speechtrim/internal/logging"
	"speechtrim/internal/pipeline"
	"speechtrim/internal/testsupport"
)

// finishingRunner completes every job by writing a small output file.
type finishingRunner struct {
	store     *jobs.Store
	outputDir string
}

func (r finishingRunner) Run(ctx context.Context, job *jobs.Job) pipeline.Outcome {
	out := filepath.Join(r.outputDir, "processed_"+job.ID+".mp4")
	if err := os.WriteFile(out, []byte("trimmed"), 0o644); err != nil {
		return pipeline.Outcome{JobID: job.ID, Err: err}
	}
	if err := testsupport.CompleteJob(ctx, r.store, job.ID, out); err != nil {
		return pipeline.Outcome{JobID: job.ID, Err: err}
	}
	return pipeline.Outcome{JobID: job.ID, Stage: jobs.StageCompleted, OutputPath: out}
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *jobs.Store
	daemon     *daemon.Daemon
	server     string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithModelFile())
	configPath := filepath.Join(testsupport.BaseDir(cfg), "speechtrim.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, finishingRunner{store: store, outputDir: cfg.Paths.OutputDir}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(d.Stop)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     "http://" + d.Addr(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, server, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if server != "" {
		flags = append(flags, "--server", server)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}
