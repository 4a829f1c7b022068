package config

import "time"

// Application constants
const (
	AppName    = "covidqc"
	AppVersion = "1.0.0"

	// Network timeouts
	DefaultFetchTimeout  = time.Second
	DefaultSheetsTimeout = 30 * time.Second
	DefaultRunTimeout    = 2 * time.Minute

	// Files relative to the executable
	DefaultCredentialsFile = "credentials-scanner.json"
	DefaultConfigFile      = "config.yaml"
	DefaultLogsDir         = "logs"
	DefaultDataDir         = "data"

	// Logging
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Current feed timestamps carry no year
	DefaultImplicitYear = 2020
)
