package models

import "time"

// Engagement is the persisted record of one customer profile and the
// directory its artifacts were written to.
type Engagement struct {
	ID           string     `json:"id"`
	Slug         string     `json:"slug"`
	CustomerName string     `json:"customer_name"`
	CreatedAt    time.Time  `json:"created_at"`
	Authorized   bool       `json:"authorized"`
	ProfileYAML  string     `json:"profile_yaml,omitempty"`
	OutputDir    string     `json:"output_dir"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

// Closed reports whether the engagement has been archived.
func (e *Engagement) Closed() bool {
	return e.ClosedAt != nil
}

// ScanRunStatus is the lifecycle state of one scanner phase execution.
type ScanRunStatus string

const (
	ScanRunRunning   ScanRunStatus = "running"
	ScanRunSucceeded ScanRunStatus = "succeeded"
	ScanRunFailed    ScanRunStatus = "failed"
	ScanRunSkipped   ScanRunStatus = "skipped"
)

// ScanRun records one phase of one plan step.
type ScanRun struct {
	ID           string        `json:"id"`
	EngagementID string        `json:"engagement_id"`
	Segment      string        `json:"segment"`
	Phase        string        `json:"phase"`
	Status       ScanRunStatus `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	Attempts     int           `json:"attempts"`
	ErrorMsg     string        `json:"error_msg,omitempty"`
}
