package model

import "time"

// CycleResult summarises one collection cycle. It is never persisted.
type CycleResult struct {
	ID               string        `json:"id"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
	Fetched          int           `json:"fetched"`
	New              int           `json:"new"`
	Duplicate        int           `json:"duplicate"`
	EnrichmentMisses int           `json:"enrichment_misses"`
	ParseFailures    int           `json:"parse_failures"`
	Error            string        `json:"error,omitempty"`
	Err              error         `json:"-"`
	Added            []JobRecord   `json:"-"`
	Duration         time.Duration `json:"duration_ns"`
}

func (r CycleResult) Failed() bool {
	return r.Err != nil
}
