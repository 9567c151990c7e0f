package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"speechtrim/internal/segments"
	"speechtrim/internal/services"
)

const operation = "transcribe"

// Runner executes name with args and returns combined stdout/stderr.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Detector transcribes audio into timed segments using a shared Model.
type Detector struct {
	model  *Model
	runner Runner
}

// NewDetector creates a detector bound to model.
func NewDetector(model *Model) *Detector {
	return &Detector{model: model, runner: runCommand}
}

// WithCommandRunner replaces process execution (for testing).
func (d *Detector) WithCommandRunner(runner Runner) {
	if runner == nil {
		runner = runCommand
	}
	d.runner = runner
}

// Transcribe runs the transcriber on audioPath, writing its JSON into workDir,
// and returns non-empty segments sorted by start time with 2-decimal times.
func (d *Detector) Transcribe(ctx context.Context, audioPath, workDir string) ([]segments.Segment, error) {
	stage, _ := services.StageFromContext(ctx)
	fail := func(message string, err error) error {
		return services.NewError(services.KindDetectionFailure, stage, operation, message, err)
	}

	if d.model.Closed() {
		return nil, fail("speech model is not loaded", ErrModelClosed)
	}
	if workDir == "" {
		workDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fail("prepare work dir", err)
	}

	prefix := filepath.Join(workDir, "transcript")
	output, err := d.runner(ctx, d.model.binary, d.model.args(audioPath, prefix)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, services.NewError(services.KindInterrupted, stage, operation, "transcriber cancelled", ctxErr)
		}
		message := "transcriber failed"
		if line := lastLine(string(output)); line != "" {
			message += ": " + line
		}
		return nil, fail(message, err)
	}

	data, err := os.ReadFile(prefix + ".json")
	if err != nil {
		return nil, fail("transcriber produced no JSON output", err)
	}
	segs, err := Parse(data)
	if err != nil {
		return nil, fail("decode transcript", err)
	}
	if len(segs) == 0 {
		return nil, fail("no speech detected", nil)
	}
	return segs, nil
}

type transcriptPayload struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Parse decodes whisper.cpp JSON (transcription[].offsets in milliseconds) or
// segment-list JSON (segments[].start/end in seconds).
func Parse(data []byte) ([]segments.Segment, error) {
	var payload transcriptPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse transcript json: %w", err)
	}

	out := make([]segments.Segment, 0, len(payload.Transcription)+len(payload.Segments))
	for _, entry := range payload.Transcription {
		out = appendSegment(out,
			time.Duration(entry.Offsets.From)*time.Millisecond,
			time.Duration(entry.Offsets.To)*time.Millisecond,
			entry.Text)
	}
	for _, entry := range payload.Segments {
		out = appendSegment(out, seconds(entry.Start), seconds(entry.End), entry.Text)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func appendSegment(out []segments.Segment, start, end time.Duration, text string) []segments.Segment {
	s := round2(start.Seconds())
	e := round2(end.Seconds())
	if e <= s || s < 0 {
		return out
	}
	return append(out, segments.Segment{Start: s, End: e, Text: strings.TrimSpace(text)})
}

func seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.WaitDelay = 5 * time.Second
	return cmd.CombinedOutput()
}
