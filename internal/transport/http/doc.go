// Package http implements the HTTP handlers of the quality-check service.
//
// Handlers stay thin: they parse and validate the request, call the run
// service and render the result with go-chi/render. Every failure is passed
// to errors.ErrorHandler, which answers with RFC 7807 problem details:
//
//	unknown source         404
//	invalid request        400
//	source failed to load  502
//	sheet layout changed   409
//	load timed out         504
//
// Routes:
//
//	GET  /api/health, /api/health/ready, /api/health/live, /api/version
//	GET  /api/sources              state of every source in the current run
//	GET  /api/sources/{name}       load lazily and return columns and rows
//	GET  /api/diagnostics          the current run's diagnostics log
//	GET  /api/runs, /api/runs/{id}
//	POST /api/runs                 start a new run
//	GET  /metrics                  Prometheus exposition
//	GET  /ws                       websocket stream of run events and diagnostics
package http
