package api

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"speechtrim/internal/deps"
	"speechtrim/internal/jobs"
	"speechtrim/internal/workflow"
)

// MediaPrefix is the route processed videos are served under.
const MediaPrefix = "/media/processed_videos/"

// FromJob converts a stored job into its wire form. publicURL prefixes the
// video link; empty yields a host-relative link.
func FromJob(job *jobs.Job, publicURL string) JobStatus {
	if job == nil {
		return JobStatus{}
	}
	out := JobStatus{
		ID:           job.ID,
		FileName:     job.SourceName,
		Status:       string(job.Status),
		Stage:        string(job.Stage),
		CurrentStage: job.Stage.Label(),
		Progress:     job.Progress,
		ErrorDetail:  job.ErrorDetail,
		FailedStage:  string(job.FailedStage),
		SourceBytes:  job.SourceBytes,
		CreatedAt:    formatTime(job.CreatedAt),
		UpdatedAt:    formatTime(job.UpdatedAt),
	}
	if job.FinishedAt != nil {
		out.FinishedAt = formatTime(*job.FinishedAt)
	}
	if job.Status == jobs.StatusCompleted && job.OutputPath != "" {
		link := VideoURL(publicURL, job.OutputPath)
		out.VideoURL = &link
	}
	return out
}

// VideoURL builds the download link for an output file.
func VideoURL(publicURL, outputPath string) string {
	name := url.PathEscape(filepath.Base(outputPath))
	return strings.TrimRight(publicURL, "/") + MediaPrefix + name
}

// FromSummary converts the worker pool summary.
func FromSummary(s workflow.Summary) WorkflowStatus {
	out := WorkflowStatus{
		Running:   s.Running,
		Workers:   s.Workers,
		Capacity:  s.Capacity,
		Pending:   s.Pending,
		Active:    make([]ActiveJob, 0, len(s.Active)),
		Processed: s.Processed,
		LastJobID: s.LastJobID,
		LastStage: string(s.LastStage),
		LastError: s.LastError,
	}
	for _, a := range s.Active {
		out.Active = append(out.Active, ActiveJob{ID: a.ID, Started: formatTime(a.Started)})
	}
	return out
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// FromStats converts store counts, keeping every status present.
func FromStats(stats map[jobs.Status]int) map[string]int {
	out := make(map[string]int, len(jobs.AllStatuses()))
	for _, status := range jobs.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
