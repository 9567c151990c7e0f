package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// UploadMessage is returned when an upload is accepted.
const UploadMessage = "Video uploaded and processing started."

// NotFoundMessage is returned for unknown job ids.
const NotFoundMessage = "Video not found."

// UploadResponse acknowledges an accepted upload.
type UploadResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// JobStatus is the polling view of one job.
type JobStatus struct {
	ID           string  `json:"id"`
	FileName     string  `json:"file_name,omitempty"`
	Status       string  `json:"status"`
	Stage        string  `json:"stage"`
	CurrentStage string  `json:"current_stage"`
	Progress     int     `json:"progress"`
	VideoURL     *string `json:"video_url"`
	ErrorDetail  string  `json:"error_detail,omitempty"`
	FailedStage  string  `json:"failed_stage,omitempty"`
	SourceBytes  int64   `json:"source_bytes,omitempty"`
	CreatedAt    string  `json:"created_at,omitempty"`
	UpdatedAt    string  `json:"updated_at,omitempty"`
	FinishedAt   string  `json:"finished_at,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobStatus `json:"jobs"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ActiveJob is a job currently held by a worker.
type ActiveJob struct {
	ID      string `json:"id"`
	Started string `json:"started"`
}

// WorkflowStatus summarizes the worker pool.
type WorkflowStatus struct {
	Running   bool        `json:"running"`
	Workers   int         `json:"workers"`
	Capacity  int         `json:"capacity"`
	Pending   int         `json:"pending"`
	Active    []ActiveJob `json:"active"`
	Processed int         `json:"processed"`
	LastJobID string      `json:"last_job_id,omitempty"`
	LastStage string      `json:"last_stage,omitempty"`
	LastError string      `json:"last_error,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queue_db_path"`
	LockFilePath string             `json:"lock_file_path"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Stats        map[string]int     `json:"stats"`
	Dependencies []DependencyStatus `json:"dependencies"`
}
