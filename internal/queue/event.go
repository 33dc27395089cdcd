// Package queue defines message payloads exchanged over the message broker
// and the consumer that archives them.
package queue

// RunCompletedQueue is the durable queue run summaries are published to.
const RunCompletedQueue = "sync.run_completed"

// RunCompletedEvent is published after every sync orchestration. It carries
// enough for downstream consumers to log or alert without querying the
// catalog database.
type RunCompletedEvent struct {
	RunID         string          `json:"run_id"`
	Success       bool            `json:"success"`
	StartedAt     string          `json:"started_at"`
	FinishedAt    string          `json:"finished_at"`
	EventsFound   int             `json:"events_found"`
	EventsAdded   int             `json:"events_added"`
	EventsUpdated int             `json:"events_updated"`
	MoviesFound   int             `json:"movies_found"`
	MoviesAdded   int             `json:"movies_added"`
	MoviesUpdated int             `json:"movies_updated"`
	Sources       []SourceOutcome `json:"sources"`
	Errors        []string        `json:"errors"`
}

// SourceOutcome is one source's line in a RunCompletedEvent.
type SourceOutcome struct {
	Source  string `json:"source"`
	Status  string `json:"status"`
	Found   int    `json:"found"`
	Added   int    `json:"added"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
}
