package api

import (
	"songdub/internal/deps"
	"songdub/internal/jobs"
)

// FromJob converts a job record to its listing row.
func FromJob(job *jobs.Job) JobSummary {
	if job == nil {
		return JobSummary{}
	}
	dto := JobSummary{
		ID:         job.ID,
		Status:     string(job.Status),
		Stage:      job.Stage,
		Progress:   job.Progress,
		Language:   job.Language,
		SourceName: job.SourceName,
		Error:      job.Error,
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromJobs converts records, keeping their order. A nil input yields an
// empty slice so listings encode as [].
func FromJobs(list []*jobs.Job) []JobSummary {
	out := make([]JobSummary, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

// FromDependencies converts binary checks.
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
