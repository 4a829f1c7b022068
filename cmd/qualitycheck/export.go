package main

import (
	"context"
	"log/slog"

	"covidqc/internal/datasource"
	"covidqc/internal/exporter"
)

// export writes every selected dataset that loaded. Failed datasets are
// skipped; they are already in the diagnostics log.
func export(ctx context.Context, ds *datasource.DataSource, opts options, logger *slog.Logger) error {
	var sheets []exporter.Sheet
	for _, name := range opts.selected() {
		f, err := ds.Get(ctx, name)
		if err != nil || f == nil {
			continue
		}
		sheets = append(sheets, exporter.Sheet{Name: string(name), Frame: f})
	}
	if len(sheets) == 0 {
		logger.Warn("Nothing to export")
		return nil
	}

	if opts.exportDir != "" {
		w := exporter.NewCSVWriter(opts.exportDir, logger)
		for _, s := range sheets {
			if _, err := w.WriteFrame(s.Name, s.Frame, exporter.WriteOptions{BOMPrefix: opts.bom}); err != nil {
				return err
			}
		}
	}
	if opts.workbook != "" {
		if err := exporter.WriteWorkbook(opts.workbook, sheets); err != nil {
			return err
		}
		logger.Info("Wrote workbook", "path", opts.workbook, "sheets", len(sheets))
	}
	return nil
}
