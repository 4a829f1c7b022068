// Package domain holds the wire-level types shared by the HTTP API and the CLI.
package domain

import (
	"time"
)

// RunStatus represents the status of a data run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one facade lifetime: a fresh set of unloaded sources and an empty
// diagnostics log.
type Run struct {
	ID          string          `json:"id" validate:"required,uuid"`
	Status      RunStatus       `json:"status"`
	Warmed      []string        `json:"warmed,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Sources     []SourceStatus  `json:"sources"`
	Diagnostics DiagnosticCount `json:"diagnostics"`
}

// SourceStatus reports one dataset of a run without loading it
type SourceStatus struct {
	Name       string  `json:"name"`
	State      string  `json:"state"`
	Rows       int     `json:"rows"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

// DiagnosticCount summarizes a run's diagnostics log
type DiagnosticCount struct {
	Errors   int  `json:"errors"`
	Warnings int  `json:"warnings"`
	HasError bool `json:"has_error"`
}

// Diagnostic is one diagnostics log entry
type Diagnostic struct {
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	Cause    string    `json:"cause,omitempty"`
	Time     time.Time `json:"time"`
}

// Column describes one column of a dataset
type Column struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Dataset is a materialized source as returned by the API
type Dataset struct {
	Name    string           `json:"name"`
	RunID   string           `json:"run_id"`
	Columns []Column         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Total   int              `json:"total"`
	Header  *HeaderTimes     `json:"header,omitempty"`
}

// HeaderTimes are the timestamps printed above the working sheet
type HeaderTimes struct {
	LastPublishTime string `json:"last_publish_time"`
	LastPushTime    string `json:"last_push_time"`
	CurrentTime     string `json:"current_time"`
}
