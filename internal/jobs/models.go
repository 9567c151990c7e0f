package jobs

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage identifies where a job is in the processing pipeline.
type Stage string

const (
	StageQueued            Stage = "queued"
	StageExtractingAudio   Stage = "extracting_audio"
	StageEnhancingAudio    Stage = "enhancing_audio"
	StageDetectingSpeech   Stage = "detecting_speech"
	StageFilteringSegments Stage = "filtering_segments"
	StageTrimmingVideo     Stage = "trimming_video"
	StageCompleted         Stage = "completed"
	StageFailed            Stage = "failed"
)

// Status is the coarse lifecycle state derived from Stage.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var stageOrder = []Stage{
	StageQueued,
	StageExtractingAudio,
	StageEnhancingAudio,
	StageDetectingSpeech,
	StageFilteringSegments,
	StageTrimmingVideo,
	StageCompleted,
}

var stageRanks = func() map[Stage]int {
	ranks := make(map[Stage]int, len(stageOrder)+1)
	for i, stage := range stageOrder {
		ranks[stage] = i
	}
	// failed is reachable from any stage and absorbs like completed.
	ranks[StageFailed] = len(stageOrder)
	return ranks
}()

var titleCaser = cases.Title(language.English)

// AllStages returns every stage in pipeline order, failed last.
func AllStages() []Stage {
	out := make([]Stage, 0, len(stageOrder)+1)
	out = append(out, stageOrder...)
	return append(out, StageFailed)
}

// WorkingStages returns the stages during which a pipeline run is active.
func WorkingStages() []Stage {
	return []Stage{
		StageExtractingAudio,
		StageEnhancingAudio,
		StageDetectingSpeech,
		StageFilteringSegments,
		StageTrimmingVideo,
	}
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	stage := Stage(strings.ToLower(strings.TrimSpace(value)))
	_, ok := stageRanks[stage]
	return stage, ok
}

// Rank orders stages along the pipeline. Unknown stages rank -1.
func (s Stage) Rank() int {
	if rank, ok := stageRanks[s]; ok {
		return rank
	}
	return -1
}

// IsTerminal reports whether the stage absorbs all further transitions.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Label renders the stage for humans, e.g. "Detecting Speech".
func (s Stage) Label() string {
	if s == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(string(s), "_", " "))
}

// Status derives the coarse status for the stage.
func (s Stage) Status() Status {
	switch s {
	case StageQueued:
		return StatusPending
	case StageCompleted:
		return StatusCompleted
	case StageFailed:
		return StatusFailed
	default:
		return StatusInProgress
	}
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return status, true
	default:
		return "", false
	}
}

// AllStatuses lists statuses in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted, StatusFailed}
}

// Job is the durable record of one submitted video.
type Job struct {
	ID          string
	SourcePath  string
	SourceName  string
	SourceBytes int64
	OutputPath  string
	Stage       Stage
	FailedStage Stage
	Progress    int
	Status      Status
	ErrorDetail string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
}

// IsTerminal reports whether the job reached completed or failed.
func (j *Job) IsTerminal() bool {
	return j != nil && j.Stage.IsTerminal()
}

// DisplayName returns the original upload name, falling back to the stored path.
func (j *Job) DisplayName() string {
	if j == nil {
		return ""
	}
	if name := strings.TrimSpace(j.SourceName); name != "" {
		return name
	}
	return j.SourcePath
}

// NewJob describes a job to create. ID is generated when empty.
type NewJob struct {
	ID          string
	SourcePath  string
	SourceName  string
	SourceBytes int64
}
