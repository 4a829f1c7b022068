// Package config provides configuration for the quality-check tools.
//
// # Configuration Sources
//
// Configuration is layered, later sources winning:
//
//	1. Default values
//	2. A YAML file named by QC_CONFIG_FILE, or config.yaml found in the
//	   working directory, configs/, or next to the executable
//	3. Environment variables
//
// # Environment Variables
//
// Variables follow the pattern QC_<SECTION>_<FIELD>:
//
//	QC_SERVER_PORT=8080
//	QC_LOGGING_LEVEL=debug
//	QC_SHEETS_BACKEND=excel
//	QC_SHEETS_SPREADSHEETS=dev:/data/dev.xlsx
//	QC_SOURCES_TIMEOUT=2s
//	QC_TELEMETRY_TRACE_EXPORTER=stdout
//
// # Validation
//
// Field constraints are declared with validate struct tags and checked by
// Config.Validate together with the cross-field rules.
package config
