// Package app wires configuration, logging, telemetry, the source loaders and
// the HTTP API into a runnable server.
//
// Initialization order:
//
//  1. Load configuration from defaults, the YAML file and the environment
//  2. Initialize the slog logger and OpenTelemetry providers
//  3. Build the loader client (spreadsheet reader plus HTTP fetcher)
//  4. Create the run and health services
//  5. Build the chi router and the HTTP server
//
// Run blocks until SIGINT or SIGTERM and then shuts down gracefully.
package app
