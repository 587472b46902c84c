package models

import "time"

// IngestionResult summarizes one orchestrator run for a rule. It is always
// well-formed: partial per-platform failures are recorded in Errors, never
// raised.
type IngestionResult struct {
	RunID             string    `json:"run_id"`
	RuleID            string    `json:"rule_id"`
	StartedAt         time.Time `json:"started_at"`
	PostsFetched      int       `json:"posts_fetched"`
	PostsProcessed    int       `json:"posts_processed"`
	DuplicatesSkipped int       `json:"duplicates_skipped"`
	FilteredOut       int       `json:"filtered_out"`
	Errors            []string  `json:"errors"`
	CursorUpdated     bool      `json:"cursor_updated"`
	DurationSeconds   float64   `json:"duration_seconds"`
}

// AddError records a per-source failure on the result.
func (r *IngestionResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}
