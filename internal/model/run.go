package model

import "time"

// RunStatus is the terminal state of one (provider, dataset) ingestion run.
type RunStatus string

const (
	RunPublished     RunStatus = "published"
	RunPublishedWarn RunStatus = "published_with_warnings"
	RunLKGFallback   RunStatus = "lkg_fallback"
	RunFailed        RunStatus = "failed"
)

// RunResult is returned from the batch trigger seam for every ingestion run.
// A stale-data fallback is always flagged here, never indistinguishable from
// a fresh publish.
type RunResult struct {
	RunID       string       `json:"run_id"`
	Provider    string       `json:"provider"`
	Dataset     string       `json:"dataset"`
	AsOf        time.Time    `json:"as_of"`
	Status      RunStatus    `json:"status"`
	Findings    Findings     `json:"findings,omitempty"`
	Snapshot    *SnapshotRef `json:"snapshot,omitempty"`
	Error       string       `json:"error,omitempty"`
	RowCount    int64        `json:"row_count"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
}

// RunRecord is a run-log row in the relational store.
type RunRecord struct {
	ID          string     `json:"id"`
	Provider    string     `json:"provider"`
	Dataset     string     `json:"dataset"`
	AsOf        time.Time  `json:"as_of"`
	Status      string     `json:"status"`
	RowCount    int64      `json:"row_count"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
