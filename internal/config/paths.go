package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the application paths, all relative to the executable
// location and never to the working directory.
type Paths struct {
	ExecutableDir   string
	DataDir         string
	LogsDir         string
	ConfigFile      string
	CredentialsFile string
}

// GetPaths returns the application paths relative to the executable location
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	return pathsFor(filepath.Dir(exe)), nil
}

func pathsFor(exeDir string) *Paths {
	return &Paths{
		ExecutableDir:   exeDir,
		DataDir:         filepath.Join(exeDir, DefaultDataDir),
		LogsDir:         filepath.Join(exeDir, DefaultLogsDir),
		ConfigFile:      filepath.Join(exeDir, DefaultConfigFile),
		CredentialsFile: filepath.Join(exeDir, DefaultCredentialsFile),
	}
}

// EnsureDirectories creates the data and log directories
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// Resolve returns path unchanged when absolute or when it exists relative to
// the working directory; otherwise it is taken relative to the executable.
func (p *Paths) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || FileExists(path) {
		return path
	}
	return filepath.Join(p.ExecutableDir, path)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ResolvePaths makes the configured file paths absolute where they are
// relative to the executable.
func (c *Config) ResolvePaths() error {
	paths, err := GetPaths()
	if err != nil {
		return err
	}
	c.Sheets.CredentialsFile = paths.Resolve(c.Sheets.CredentialsFile)
	for name, path := range c.Sheets.Spreadsheets {
		if filepath.Ext(path) == ".xlsx" {
			c.Sheets.Spreadsheets[name] = paths.Resolve(path)
		}
	}
	return nil
}
