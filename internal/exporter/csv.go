package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"covidqc/internal/frame"
	"covidqc/internal/infrastructure"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// CSVWriter writes datasets as CSV files under one directory
type CSVWriter struct {
	dir    string
	logger *slog.Logger
}

// NewCSVWriter creates a writer rooted at dir
func NewCSVWriter(dir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{
		dir:    dir,
		logger: infrastructure.WithComponent(logger, "exporter"),
	}
}

// WriteFrame writes f to <dir>/<name>.csv, replacing any existing file, and
// returns the path written.
func (w *CSVWriter) WriteFrame(name string, f *frame.Frame, opts WriteOptions) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(w.dir, name+".csv")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if err := EncodeCSV(file, f, opts); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	w.logger.Info("Wrote CSV file",
		slog.String("dataset", name),
		slog.String("path", path),
		slog.Int("record_count", f.Len()))
	return path, nil
}

// EncodeCSV writes the header row and every record of f to out
func EncodeCSV(out io.Writer, f *frame.Frame, opts WriteOptions) error {
	if opts.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if err := writer.Write(f.Names()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	cols := f.Columns()
	record := make([]string, len(cols))
	for i := 0; i < f.Len(); i++ {
		for j, c := range cols {
			record[j] = c.Format(i)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
