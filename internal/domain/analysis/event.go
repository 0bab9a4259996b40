package analysis

import "time"

// EventKind classifies an audit entry.
type EventKind string

const (
	EventFailure     EventKind = "failure"
	EventUnparseable EventKind = "unparseable"
	EventMalformed   EventKind = "malformed"
	EventRetry       EventKind = "retry"
)

// Event represents a persisted job audit entry
type Event struct {
	ID          int64     `json:"id"`
	JobID       JobID     `json:"job_id"`
	Stage       Stage     `json:"stage"`
	Kind        EventKind `json:"kind"`
	FileName    string    `json:"file_name,omitempty"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
