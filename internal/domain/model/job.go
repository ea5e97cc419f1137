package model

import "time"

// JobStatus is the state of a bulk scan job.
type JobStatus string

// Job states. queued -> running -> {completed, failed, cancelled}.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// JobState is a point-in-time snapshot of a bulk scan job.
type JobState struct {
	ID               string         `json:"id"`
	Status           JobStatus      `json:"status"`
	Total            int            `json:"total"`
	Completed        int            `json:"completed"`
	Errors           int            `json:"errors"`
	Skipped          int            `json:"skipped"`
	LastError        string         `json:"lastError,omitempty"`
	LastScannedSpace string         `json:"lastScannedSpace,omitempty"`
	SkippedByReason  map[string]int `json:"skippedByReason"`
	ErrorsByType     map[string]int `json:"errorsByType"`
	Concurrency      int            `json:"concurrency"`
	DelayMS          int            `json:"delayMs"`
	CreatedAt        time.Time      `json:"createdAt"`
	StartedAt        *time.Time     `json:"startedAt,omitempty"`
	FinishedAt       *time.Time     `json:"finishedAt,omitempty"`
}

// ScanTask is one unit of bulk work.
type ScanTask struct {
	SpaceID string
	Name    string
}
