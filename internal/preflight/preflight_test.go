package preflight_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"speechtrim/internal/config"
	"speechtrim/internal/preflight"
	"speechtrim/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "missing"))
	if result.Passed {
		t.Fatal("expected failure for missing directory")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	result := preflight.CheckDirectoryAccess("test", file)
	if result.Passed || !strings.Contains(result.Detail, "not a directory") {
		t.Fatalf("expected not-a-directory failure, got %+v", result)
	}
}

func TestCheckModel(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	model := filepath.Join(dir, "ggml-base.bin")
	testsupport.WriteFile(t, model, 2048)

	cases := []struct {
		name   string
		path   string
		passed bool
		detail string
	}{
		{"unset", "", false, "not configured"},
		{"missing", filepath.Join(dir, "nope.bin"), false, "does not exist"},
		{"directory", dir, false, "is a directory"},
		{"empty", empty, false, "empty file"},
		{"present", model, true, "2.0 KiB"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := preflight.CheckModel(tc.path)
			if result.Passed != tc.passed || !strings.Contains(result.Detail, tc.detail) {
				t.Fatalf("unexpected result: %+v", result)
			}
		})
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := preflight.RunAll(nil); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAll_ReadyConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithModelFile(), testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := preflight.RunAll(cfg)
	if len(results) != 7 {
		t.Fatalf("expected 7 checks, got %d", len(results))
	}
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, failed: %+v", failed)
	}
}

func TestRunAll_ReportsMissingPieces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.FFmpeg.Binary = "speechtrim-missing-ffmpeg"
	cfg.Speech.Binary = "speechtrim-missing-whisper"

	failed := preflight.Failed(preflight.RunAll(cfg))
	names := make(map[string]bool, len(failed))
	for _, r := range failed {
		names[r.Name] = true
	}
	for _, want := range []string{"Upload directory", "Whisper model", "FFmpeg", "Whisper"} {
		if !names[want] {
			t.Fatalf("expected %q to fail, got %+v", want, failed)
		}
	}
}

func TestCheckSystemDepsUsesConfiguredBinaries(t *testing.T) {
	cfg := &config.Config{}
	*cfg = config.Default()
	cfg.FFmpeg.Binary = "/opt/custom/ffmpeg"
	statuses := preflight.CheckSystemDeps(cfg)
	if len(statuses) != 2 || statuses[0].Command != "/opt/custom/ffmpeg" {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
	if statuses[0].Available {
		t.Fatal("custom ffmpeg path should not resolve")
	}
}
