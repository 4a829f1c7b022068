// Package loaders fetches each data source and normalizes it into a frame.
// Loaders return their errors; resilience belongs to the caller.
package loaders

import (
	"context"
	"log/slog"
	"time"

	"covidqc/internal/coerce"
	"covidqc/internal/diagnostics"
	"covidqc/internal/frame"
	"covidqc/internal/sheets"
)

// Fetcher is the HTTP collaborator
type Fetcher interface {
	CSV(ctx context.Context, url string) (*frame.Frame, error)
	JSON(ctx context.Context, url string, v any) error
}

// URLs locates the remote sources
type URLs struct {
	Current string
	History string
	CDS     string
	CSBS    string
	NYT     string
}

// DefaultURLs are the production source locations
var DefaultURLs = URLs{
	Current: "https://covidtracking.com/api/states.csv",
	History: "https://covidtracking.com/api/states/daily.csv",
	CDS:     "https://coronadatascraper.com/data.csv",
	CSBS:    "http://coronavirus-tracker-api.herokuapp.com/v2/locations?source=csbs",
	NYT:     "https://raw.githubusercontent.com/nytimes/covid-19-data/master/us-counties.csv",
}

// Working sheet location
const (
	WorkingSheetName   = "dev"
	WorkingHeaderRange = "Worksheet 2!V1:AJ1"
	WorkingBodyRange   = "Worksheet 2!A2:AL60"
)

// Options tunes normalization
type Options struct {
	// ImplicitYear is added to the current feed's month/day timestamps
	ImplicitYear int
	// Now supplies the reference date for repairing working-sheet dates
	Now func() time.Time
	// SheetsTimeout bounds the working sheet read. Zero means no bound.
	SheetsTimeout time.Duration
}

// Client loads every source through its collaborators
type Client struct {
	sheets sheets.Reader
	fetch  Fetcher
	urls   URLs
	opts   Options
	logger *slog.Logger
}

// NewClient creates a loader client. Zero-valued options get defaults:
// implicit year 2020 and the wall clock.
func NewClient(reader sheets.Reader, fetcher Fetcher, urls URLs, opts Options, logger *slog.Logger) *Client {
	if opts.ImplicitYear == 0 {
		opts.ImplicitYear = 2020
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		sheets: reader,
		fetch:  fetcher,
		urls:   urls,
		opts:   opts,
		logger: logger.With(slog.String("component", "loaders")),
	}
}

// WorkingSheet is the normalized working sheet plus its header times
type WorkingSheet struct {
	Frame  *frame.Frame
	Header HeaderTimes
}

// LoadWorking reads the working sheet's header strip and body
func (c *Client) LoadWorking(ctx context.Context, log *diagnostics.Log) (*WorkingSheet, error) {
	if c.opts.SheetsTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.SheetsTimeout)
		defer cancel()
	}

	id, err := c.sheets.SheetIDByName(ctx, WorkingSheetName)
	if err != nil {
		return nil, err
	}

	cells, err := c.sheets.ReadList(ctx, id, WorkingHeaderRange, sheets.ListOptions{IgnoreBlank: true, SingleRow: true})
	if err != nil {
		return nil, err
	}
	header, err := ParseHeaderTimes(cells)
	if err != nil {
		return nil, err
	}

	raw, err := c.sheets.ReadFrame(ctx, id, WorkingBodyRange, 1)
	if err != nil {
		return nil, err
	}
	f, err := NormalizeWorking(raw, c.opts.Now().In(coerce.Eastern()), log, c.logger)
	if err != nil {
		return nil, err
	}
	return &WorkingSheet{Frame: f, Header: header}, nil
}

// LoadCurrent fetches today's values
func (c *Client) LoadCurrent(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	raw, err := c.fetch.CSV(ctx, c.urls.Current)
	if err != nil {
		return nil, err
	}
	return NormalizeCurrent(raw, c.opts.ImplicitYear)
}

// LoadHistory fetches daily values over time
func (c *Client) LoadHistory(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	raw, err := c.fetch.CSV(ctx, c.urls.History)
	if err != nil {
		return nil, err
	}
	return NormalizeHistory(raw)
}

// LoadCDSCounties fetches the scraped county feed
func (c *Client) LoadCDSCounties(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	raw, err := c.fetch.CSV(ctx, c.urls.CDS)
	if err != nil {
		return nil, err
	}
	return NormalizeCDS(raw, log)
}

// LoadCSBSCounties fetches the reporting-API county feed
func (c *Client) LoadCSBSCounties(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	var doc CSBSDocument
	if err := c.fetch.JSON(ctx, c.urls.CSBS, &doc); err != nil {
		return nil, err
	}
	return NormalizeCSBS(&doc, log)
}

// LoadNYTCounties fetches the editorial county feed
func (c *Client) LoadNYTCounties(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	raw, err := c.fetch.CSV(ctx, c.urls.NYT)
	if err != nil {
		return nil, err
	}
	return NormalizeNYT(raw, log)
}
