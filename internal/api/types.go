package api

import (
	"songdub/internal/jobs"
	"songdub/internal/language"
	"songdub/internal/preflight"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SubmitResponse acknowledges an accepted job.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// JobSummary describes a job in listings.
type JobSummary struct {
	ID         string `json:"job_id"`
	Status     string `json:"status"`
	Stage      string `json:"stage"`
	Progress   int    `json:"progress"`
	Language   string `json:"language"`
	SourceName string `json:"source_name,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// JobListResponse wraps a listing, newest first.
type JobListResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// DependencyStatus captures availability of an external program.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// PipelineStatus reports worker usage.
type PipelineStatus struct {
	Workers   int `json:"workers"`
	Active    int `json:"active"`
	Backlog   int `json:"backlog"`
	QueueSize int `json:"queue_size"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DataDir      string             `json:"data_dir"`
	DatabasePath string             `json:"database_path"`
	LockFilePath string             `json:"lock_file_path"`
	Pipeline     PipelineStatus     `json:"pipeline"`
	Jobs         jobs.Counts        `json:"jobs"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Checks       []preflight.Result `json:"checks"`
}

// LanguagesResponse lists the supported target languages.
type LanguagesResponse struct {
	Default   string          `json:"default"`
	Languages []language.Info `json:"languages"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Hint  string `json:"hint,omitempty"`
}
