package speech

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"

	"speechtrim/internal/config"
	"speechtrim/internal/services"
)

// ErrModelClosed is returned by detectors whose model has been released.
var ErrModelClosed = errors.New("speech model closed")

// Model is the shared transcription capability: a resolved binary plus the
// weights and decoding parameters it runs with.
type Model struct {
	binary   string
	path     string
	language string
	beamSize int
	threads  int
	closed   atomic.Bool
}

// LoadModel verifies the whisper binary and model file are available.
func LoadModel(cfg *config.Config) (*Model, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "speech", "load model", "config is nil", nil)
	}
	binary, err := exec.LookPath(cfg.WhisperBinary())
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "speech", "load model",
			fmt.Sprintf("whisper binary %q not found", cfg.WhisperBinary()), err)
	}
	path := strings.TrimSpace(cfg.Speech.ModelPath)
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "speech", "load model",
			fmt.Sprintf("model file %q unavailable", path), err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrConfiguration, "speech", "load model",
			fmt.Sprintf("model path %q is a directory", path), nil)
	}
	return &Model{
		binary:   binary,
		path:     path,
		language: cfg.Speech.Language,
		beamSize: cfg.Speech.BeamSize,
		threads:  cfg.Speech.Threads,
	}, nil
}

// Path returns the model weights location.
func (m *Model) Path() string { return m.path }

// Binary returns the resolved transcriber executable.
func (m *Model) Binary() string { return m.binary }

// Close releases the model. Detectors using it fail afterwards.
func (m *Model) Close() error {
	if m != nil {
		m.closed.Store(true)
	}
	return nil
}

// Closed reports whether Close was called.
func (m *Model) Closed() bool {
	return m == nil || m.closed.Load()
}

func (m *Model) args(audioPath, outputPrefix string) []string {
	args := []string{
		"-m", m.path,
		"-f", audioPath,
		"-oj",
		"-of", outputPrefix,
		"-np",
	}
	if m.language != "" {
		args = append(args, "-l", m.language)
	}
	if m.beamSize > 0 {
		args = append(args, "-bs", fmt.Sprint(m.beamSize))
	}
	if m.threads > 0 {
		args = append(args, "-t", fmt.Sprint(m.threads))
	}
	return args
}
