// -----------------------------------------------------------------------
// Analysis Job - Queue row describing one company to analyze
// -----------------------------------------------------------------------

package models

import (
	"strings"
	"time"
)

// QueueStatus is the lifecycle state of an analysis job row.
type QueueStatus string

const (
	// QueueStatusNone is a status column that was never written. It is
	// equivalent to QueueStatusPending.
	QueueStatusNone      QueueStatus = ""
	QueueStatusPending   QueueStatus = "pending"
	QueueStatusRunning   QueueStatus = "running"
	QueueStatusCompleted QueueStatus = "completed"
	QueueStatusFailed    QueueStatus = "failed"
	// QueueStatusCancelled is reserved for external producers; the worker
	// never transitions a job into it.
	QueueStatusCancelled QueueStatus = "cancelled"
)

// IsClaimable reports whether a job in this status may be claimed by a worker.
// A null status means "never claimed" and is treated like pending.
func (s QueueStatus) IsClaimable() bool {
	return s == QueueStatusNone || s == QueueStatusPending
}

// AnalysisJob is a row in the analysis_jobs queue table.
type AnalysisJob struct {
	ID          string      `json:"id"`
	Ticker      string      `json:"ticker,omitempty"`
	CompanyName string      `json:"company_name,omitempty"`
	Status      QueueStatus `json:"status"`
	Attempts    int         `json:"attempts"`
	Provider    string      `json:"provider,omitempty"` // Empty means use configured default
	Model       string      `json:"model,omitempty"`    // Empty means use configured default

	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	Error     string `json:"error,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// HasIdentifiers reports whether the job names a company by ticker or name.
func (j *AnalysisJob) HasIdentifiers() bool {
	return strings.TrimSpace(j.Ticker) != "" || strings.TrimSpace(j.CompanyName) != ""
}

// Label returns the most readable identifier for logs and error lists.
func (j *AnalysisJob) Label() string {
	if t := strings.TrimSpace(j.Ticker); t != "" {
		return t
	}
	if n := strings.TrimSpace(j.CompanyName); n != "" {
		return n
	}
	return j.ID
}

// UniverseKey returns the key of the universe row this job analyzes.
// Ticker wins; company name is used for unlisted companies.
func (j *AnalysisJob) UniverseKey() string {
	if t := strings.TrimSpace(j.Ticker); t != "" {
		return strings.ToUpper(t)
	}
	return strings.TrimSpace(j.CompanyName)
}

// JobSummary is the per-job line of a run report. It is never persisted.
type JobSummary struct {
	ID          string      `json:"id"`
	Ticker      string      `json:"ticker,omitempty"`
	CompanyName string      `json:"companyName,omitempty"`
	Status      QueueStatus `json:"status"`
	Attempts    int         `json:"attempts"`
	LastRunAt   *time.Time  `json:"lastRunAt"`
	Error       *string     `json:"error"`
}

// NewJobSummary seeds a summary from the job row as fetched.
func NewJobSummary(job *AnalysisJob) JobSummary {
	return JobSummary{
		ID:          job.ID,
		Ticker:      job.Ticker,
		CompanyName: job.CompanyName,
		Status:      job.Status,
		Attempts:    job.Attempts,
		LastRunAt:   job.LastRunAt,
	}
}

// RunSummary is returned to the caller of a queue worker invocation.
type RunSummary struct {
	RunID                   string       `json:"runId"`
	Processed               int          `json:"processed"`
	Failed                  int          `json:"failed"`
	Remaining               int64        `json:"remaining"`
	Completed               int64        `json:"completed"`
	Errors                  []string     `json:"errors"`
	Jobs                    []JobSummary `json:"jobs"`
	RunSource               string       `json:"runSource"`
	MaxJobs                 int          `json:"maxJobs"`
	SecondsPerJobEstimate   int          `json:"secondsPerJobEstimate"`
	EstimatedSecondsThisRun int          `json:"estimatedSecondsThisRun"`
	TimedOut                bool         `json:"timedOut"`
}
