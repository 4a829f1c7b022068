package app

import (
	"context"
	"fmt"
	"log/slog"

	"covidqc/internal/config"
	"covidqc/internal/fetch"
	"covidqc/internal/loaders"
	"covidqc/internal/sheets"
)

// NewProvider wires the spreadsheet reader and the HTTP fetcher selected by
// cfg into a loader client.
func NewProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*loaders.Client, error) {
	reader, err := NewSheetsReader(ctx, cfg.Sheets, logger)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.NewClient(
		fetch.WithTimeout(cfg.Sources.Timeout),
		fetch.WithRateLimit(cfg.Sources.RateLimit, cfg.Sources.Burst),
		fetch.WithLogger(logger),
	)

	opts := loaders.Options{
		ImplicitYear:  cfg.Sources.ImplicitYear,
		SheetsTimeout: cfg.Sheets.Timeout,
	}
	return loaders.NewClient(reader, fetcher, SourceURLs(cfg.Sources), opts, logger), nil
}

// NewSheetsReader builds the configured spreadsheet backend. Relative
// credential and workbook paths resolve against the executable directory.
func NewSheetsReader(ctx context.Context, cfg config.SheetsConfig, logger *slog.Logger) (sheets.Reader, error) {
	resolve := func(p string) string { return p }
	if paths, err := config.GetPaths(); err == nil {
		resolve = paths.Resolve
	}

	switch cfg.Backend {
	case "excel":
		workbooks := make(map[string]string, len(cfg.Spreadsheets))
		for name, p := range cfg.Spreadsheets {
			workbooks[name] = resolve(p)
		}
		return sheets.NewExcelReader(workbooks, logger), nil
	case "google", "":
		gc := sheets.GoogleConfig{
			APIKey:       cfg.APIKey,
			Spreadsheets: cfg.Spreadsheets,
		}
		if cfg.CredentialsFile != "" {
			gc.CredentialsFile = resolve(cfg.CredentialsFile)
		}
		reader, err := sheets.NewGoogleReader(ctx, gc, logger)
		if err != nil {
			return nil, err
		}
		return reader, nil
	default:
		return nil, fmt.Errorf("unsupported sheets backend: %s", cfg.Backend)
	}
}

// SourceURLs overlays the configured feed locations on loaders.DefaultURLs
func SourceURLs(cfg config.SourcesConfig) loaders.URLs {
	urls := loaders.DefaultURLs
	for _, o := range []struct {
		dst *string
		src string
	}{
		{&urls.Current, cfg.CurrentURL},
		{&urls.History, cfg.HistoryURL},
		{&urls.CDS, cfg.CDSURL},
		{&urls.CSBS, cfg.CSBSURL},
		{&urls.NYT, cfg.NYTURL},
	} {
		if o.src != "" {
			*o.dst = o.src
		}
	}
	return urls
}
