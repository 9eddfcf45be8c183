package model

import "time"

// RunState is the enrichment queue lifecycle state. The queue is Idle
// between runs; emptying the backlog always returns it to Idle.
type RunState string

const (
	RunStateIdle       RunState = "idle"
	RunStateProcessing RunState = "processing"
)

// ResolutionStatus classifies the outcome of one dequeued backlog entry.
type ResolutionStatus string

const (
	// ResolutionResolved: coordinates assigned and durably persisted.
	ResolutionResolved ResolutionStatus = "resolved"
	// ResolutionFailed: the entry reached the lookup step but yielded no
	// coordinates, or the remote persistence write was not confirmed.
	ResolutionFailed ResolutionStatus = "failed"
	// ResolutionSkipped: no candidate to resolve (missing item, empty
	// description, or extraction produced nothing). Not an error.
	ResolutionSkipped ResolutionStatus = "skipped"
)

// ResolutionRecord is the durable audit row for one enrichment attempt.
type ResolutionRecord struct {
	ID        string           `json:"id"`
	BoardID   string           `json:"board_id"`
	ItemID    string           `json:"item_id"`
	Candidate string           `json:"candidate,omitempty"`
	Status    ResolutionStatus `json:"status"`
	Coords    *Coordinates     `json:"coords,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
