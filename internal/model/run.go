package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusAggregating RunStatus = "aggregating"
	RunStatusScoring     RunStatus = "scoring"
	RunStatusDetecting   RunStatus = "detecting"
	RunStatusRanking     RunStatus = "ranking"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// Run represents a single analysis run over a fixed input snapshot.
type Run struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"` // description of the input snapshot
	Status    RunStatus     `json:"status"`
	Ingest    IngestSummary `json:"ingest"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
