package model

import "time"

// SyncRun states.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// SyncRun is one source's entry in the `sync_runs` log. All entries written
// by a single orchestration share RunID. Rows are finalized once and never
// touched again.
type SyncRun struct {
	ID         uint64     `json:"id"`
	RunID      string     `json:"run_id"`
	Source     string     `json:"source"`
	Status     string     `json:"status"`
	Found      int        `json:"found"`
	Added      int        `json:"added"`
	Updated    int        `json:"updated"`
	Skipped    int        `json:"skipped"`
	Errors     []RunError `json:"errors"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunError is a single entry of a SyncRun's structured error list.
type RunError struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	SourceID string `json:"source_id,omitempty"`
	Title    string `json:"title,omitempty"`
}
