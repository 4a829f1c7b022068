package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "google", cfg.Sheets.Backend)
				assert.Equal(t, DefaultCredentialsFile, cfg.Sheets.CredentialsFile)
				assert.Equal(t, time.Second, cfg.Sources.Timeout)
				assert.Equal(t, 2020, cfg.Sources.ImplicitYear)
				assert.Equal(t, "prometheus", cfg.Telemetry.MetricExporter)
			},
		},
		{
			name: "file overlays defaults",
			file: `
server:
  port: 9090
sheets:
  backend: excel
  spreadsheets:
    dev: /data/dev.xlsx
sources:
  timeout: 3s
  nyt_url: http://localhost:9000/nyt.csv
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "excel", cfg.Sheets.Backend)
				assert.Equal(t, "/data/dev.xlsx", cfg.Sheets.Spreadsheets["dev"])
				assert.Equal(t, 3*time.Second, cfg.Sources.Timeout)
				assert.Equal(t, "http://localhost:9000/nyt.csv", cfg.Sources.NYTURL)
			},
		},
		{
			name: "environment wins over file",
			file: "server:\n  port: 9090\nlogging:\n  level: warn\n",
			env: map[string]string{
				"QC_SERVER_PORT":         "7070",
				"QC_SHEETS_SPREADSHEETS": "dev:sheet-id-1,prod:sheet-id-2",
				"QC_SOURCES_RATE_LIMIT":  "2.5",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "warn", cfg.Logging.Level)
				assert.Equal(t, map[string]string{"dev": "sheet-id-1", "prod": "sheet-id-2"}, cfg.Sheets.Spreadsheets)
				assert.Equal(t, 2.5, cfg.Sources.RateLimit)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"QC_SERVER_PORT": "70000"},
			wantErr: "Port",
		},
		{
			name:    "unknown backend",
			file:    "sheets:\n  backend: csv\n",
			wantErr: "Backend",
		},
		{
			name:    "bad source url",
			env:     map[string]string{"QC_SOURCES_CDS_URL": "not a url"},
			wantErr: "CDSURL",
		},
		{
			name:    "google without credentials",
			file:    "sheets:\n  credentials_file: \"\"\n",
			wantErr: "credentials file or an API key",
		},
		{
			name:    "malformed env",
			env:     map[string]string{"QC_SOURCES_TIMEOUT": "soon"},
			wantErr: "env",
		},
		{
			name:    "malformed file",
			file:    "server: [",
			wantErr: "file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}

			cfg, err := LoadFile(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadUsesConfigFileEnv(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 6060\n")
	t.Setenv(ConfigFileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestValidateLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = ""
	assert.ErrorContains(t, cfg.Validate(), "file path")

	cfg = Default()
	cfg.Logging.Level = "verbose"
	assert.ErrorContains(t, cfg.Validate(), "Level")

	assert.NoError(t, Default().Validate())
}

func TestPaths(t *testing.T) {
	dir := t.TempDir()
	p := pathsFor(dir)

	assert.Equal(t, filepath.Join(dir, "logs"), p.LogsDir)
	assert.Equal(t, filepath.Join(dir, DefaultCredentialsFile), p.CredentialsFile)

	require.NoError(t, p.EnsureDirectories())
	assert.True(t, FileExists(p.DataDir))
	assert.True(t, FileExists(p.LogsDir))

	abs := filepath.Join(dir, "x.json")
	assert.Equal(t, abs, p.Resolve(abs))
	assert.Equal(t, "", p.Resolve(""))
	assert.Equal(t, filepath.Join(dir, "missing.json"), p.Resolve("missing.json"))
}

func TestGetPaths(t *testing.T) {
	p, err := GetPaths()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(p.ExecutableDir))
	assert.Equal(t, filepath.Join(p.ExecutableDir, DefaultConfigFile), p.ConfigFile)
}
