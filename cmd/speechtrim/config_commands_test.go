package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"speechtrim/internal/testsupport"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "speechtrim.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already exists error, got %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, "", ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.MaxConcurrentJobs = 3
	configPath := filepath.Join(testsupport.BaseDir(cfg), "speechtrim.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"config", "show"}, "", configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, cfg.Paths.UploadDir)
	requireContains(t, out, "max_concurrent_jobs = 3")
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"check"}, env.server, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "0 workspace(s)")
	requireContains(t, out, "pid")

	if err := os.Remove(env.cfg.Speech.ModelPath); err != nil {
		t.Fatalf("remove model: %v", err)
	}
	out, _, err = runCLI(t, []string{"check"}, env.server, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "1 preflight check(s) failed") {
		t.Fatalf("expected one failed check, got %v\n%s", err, out)
	}
	requireContains(t, out, "does not exist")
}
