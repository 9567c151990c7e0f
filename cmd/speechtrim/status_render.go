package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"speechtrim/internal/api"
	"speechtrim/internal/jobs"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func jobStatusKind(status string) statusKind {
	switch jobs.Status(status) {
	case jobs.StatusCompleted:
		return statusOK
	case jobs.StatusFailed:
		return statusError
	case jobs.StatusInProgress:
		return statusWarn
	default:
		return statusInfo
	}
}

// renderJob writes the detail view used by status and submit --wait.
func renderJob(out io.Writer, job api.JobStatus, colorize bool) {
	for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	if job.FileName != "" {
		file := job.FileName
		if job.SourceBytes > 0 {
			file += " (" + humanize.IBytes(uint64(job.SourceBytes)) + ")"
		}
		fmt.Fprintln(out, renderStatusLine("File", statusInfo, file, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job.Status), job.Status, colorize))
	fmt.Fprintln(out, renderStatusLine("Stage", statusInfo, fmt.Sprintf("%s (%d%%)", job.CurrentStage, job.Progress), colorize))
	if job.VideoURL != nil {
		fmt.Fprintln(out, renderStatusLine("Video", statusOK, *job.VideoURL, colorize))
	}
	if job.ErrorDetail != "" {
		detail := job.ErrorDetail
		if job.FailedStage != "" {
			detail = fmt.Sprintf("%s (during %s)", detail, jobs.Stage(job.FailedStage).Label())
		}
		fmt.Fprintln(out, renderStatusLine("Error", statusError, detail, colorize))
	}
	if updated := relativeTime(job.UpdatedAt); updated != "" {
		fmt.Fprintln(out, renderStatusLine("Updated", statusInfo, updated, colorize))
	}
}

func renderProgress(out io.Writer, job api.JobStatus) {
	fmt.Fprintf(out, "%s%3d%%  %s\n", statusIndent, job.Progress, job.CurrentStage)
}

// relativeTime renders an API timestamp as "3 minutes ago".
func relativeTime(value string) string {
	if value == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return humanize.Time(parsed)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
