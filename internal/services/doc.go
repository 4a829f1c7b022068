// Package services sits between the HTTP handlers and the data source facade.
//
// RunService owns the runs: each run is one DataSource with its own
// diagnostics log, so starting a run resets every source to unloaded.
// Datasets are served from the most recent run and loaded on first request.
// HealthService reports liveness, readiness and version information.
package services
