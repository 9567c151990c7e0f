package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"speechtrim/internal/services"
	"speechtrim/internal/trimplan"
)

// DefaultBinary is used when no ffmpeg path is configured.
const DefaultBinary = "ffmpeg"

const (
	outputTailLines = 6
	outputTailBytes = 600
	killGrace       = 5 * time.Second
)

// Runner executes name with args and returns combined stdout/stderr.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Operation is one ffmpeg invocation.
type Operation interface {
	// Name labels the operation in errors and logs.
	Name() string
	// Args renders the argument vector, excluding the binary.
	Args() []string
	// Output is the file the operation must produce.
	Output() string
}

// ExtractAudio pulls a mono PCM WAV track out of a video.
type ExtractAudio struct {
	Source     string
	Dest       string
	SampleRate int
}

func (ExtractAudio) Name() string { return "extract_audio" }

func (op ExtractAudio) Output() string { return op.Dest }

func (op ExtractAudio) Args() []string {
	rate := op.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", op.Source,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-f", "wav",
		op.Dest,
	}
}

// EnhanceAudio applies an audio filter, by default FFT denoising.
type EnhanceAudio struct {
	Source string
	Dest   string
	Filter string
}

func (EnhanceAudio) Name() string { return "enhance_audio" }

func (op EnhanceAudio) Output() string { return op.Dest }

func (op EnhanceAudio) Args() []string {
	filter := strings.TrimSpace(op.Filter)
	if filter == "" {
		filter = "afftdn"
	}
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", op.Source,
		"-af", filter,
		op.Dest,
	}
}

// TrimConcat re-encodes the source keeping only the spans in Plan.
type TrimConcat struct {
	Source string
	Dest   string
	Plan   trimplan.Plan
}

func (TrimConcat) Name() string { return "trim_concat" }

func (op TrimConcat) Output() string { return op.Dest }

func (op TrimConcat) Args() []string {
	args := op.Plan.Args(op.Source, op.Dest)
	// keep the log quiet without disturbing the plan's own argument order
	return append([]string{"-loglevel", "error"}, args...)
}

// Invoker runs operations against a configured ffmpeg binary.
type Invoker struct {
	binary string
	runner Runner
}

// New creates an invoker for binary. An empty binary selects DefaultBinary.
func New(binary string) *Invoker {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}
	return &Invoker{binary: binary, runner: runCommand}
}

// WithCommandRunner replaces process execution (for testing).
func (i *Invoker) WithCommandRunner(runner Runner) {
	if runner == nil {
		runner = runCommand
	}
	i.runner = runner
}

// Binary returns the configured executable.
func (i *Invoker) Binary() string {
	return i.binary
}

// Run executes op and waits for it. It returns the tool output on success and
// a *services.Error otherwise. The stage recorded on the error comes from ctx.
func (i *Invoker) Run(ctx context.Context, op Operation) (string, error) {
	stage, _ := services.StageFromContext(ctx)
	if op == nil {
		return "", services.NewError(services.KindToolFailure, stage, "ffmpeg", "no operation", nil)
	}

	output, err := i.runner(ctx, i.binary, op.Args()...)
	text := string(output)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return text, services.NewError(services.KindInterrupted, stage, op.Name(), "ffmpeg cancelled", ctxErr)
		}
		message := fmt.Sprintf("ffmpeg %s", exitDescription(err))
		if tail := Tail(text); tail != "" {
			message += ": " + tail
		}
		return text, services.NewError(services.KindToolFailure, stage, op.Name(), message, err)
	}

	if dest := op.Output(); dest != "" {
		info, statErr := os.Stat(dest)
		if statErr != nil || info.Size() == 0 {
			return text, services.NewError(services.KindToolFailure, stage, op.Name(), "ffmpeg produced no output at "+dest, statErr)
		}
	}
	return text, nil
}

// Tail returns the last few non-empty lines of tool output, clipped for storage.
func Tail(output string) string {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	kept := make([]string, 0, outputTailLines)
	for idx := len(lines) - 1; idx >= 0 && len(kept) < outputTailLines; idx-- {
		if line := strings.TrimSpace(lines[idx]); line != "" {
			kept = append(kept, line)
		}
	}
	for l, r := 0, len(kept)-1; l < r; l, r = l+1, r-1 {
		kept[l], kept[r] = kept[r], kept[l]
	}
	tail := strings.Join(kept, " | ")
	if len(tail) > outputTailBytes {
		cut := len(tail) - outputTailBytes
		for cut < len(tail) && !utf8.RuneStart(tail[cut]) {
			cut++
		}
		tail = "…" + tail[cut:]
	}
	return tail
}

func exitDescription(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Sprintf("exited with status %d", exitErr.ExitCode())
	}
	if errors.Is(err, exec.ErrNotFound) {
		return "binary not found"
	}
	return "failed to run"
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.WaitDelay = killGrace
	return cmd.CombinedOutput()
}
