package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	apperrors "covidqc/internal/errors"
	"covidqc/internal/frame"
	"covidqc/internal/infrastructure"
)

// TracerName is the OpenTelemetry tracer used for spreadsheet calls
const TracerName = "covidqc/sheets"

// GoogleConfig holds what is needed to reach the Sheets API
type GoogleConfig struct {
	CredentialsFile string
	APIKey          string
	Spreadsheets    map[string]string // name -> spreadsheet id
}

// GoogleReader reads ranges through the Google Sheets API
type GoogleReader struct {
	svc    *gsheets.Service
	ids    map[string]string
	logger *slog.Logger

	mu       sync.Mutex
	verified map[string]bool
}

// NewGoogleReader creates a Sheets service from a service-account file or an
// API key, in that order of preference.
func NewGoogleReader(ctx context.Context, cfg GoogleConfig, logger *slog.Logger, opts ...option.ClientOption) (*GoogleReader, error) {
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile), option.WithScopes(gsheets.SpreadsheetsReadonlyScope))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to create sheets service", err)
	}
	return NewGoogleReaderWithService(svc, cfg.Spreadsheets, logger), nil
}

// NewGoogleReaderWithService wraps an existing service
func NewGoogleReaderWithService(svc *gsheets.Service, ids map[string]string, logger *slog.Logger) *GoogleReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleReader{
		svc:      svc,
		ids:      ids,
		logger:   logger.With(slog.String("component", "sheets"), slog.String("backend", "google")),
		verified: make(map[string]bool),
	}
}

// SheetIDByName returns the configured id for name after checking once that
// the spreadsheet is reachable.
func (g *GoogleReader) SheetIDByName(ctx context.Context, name string) (string, error) {
	id, ok := g.ids[name]
	if !ok || id == "" {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("spreadsheet %q", name))
	}

	g.mu.Lock()
	done := g.verified[id]
	g.mu.Unlock()
	if done {
		return id, nil
	}

	err := g.trace(ctx, "get", id, "", func(ctx context.Context) error {
		_, err := g.svc.Spreadsheets.Get(id).Fields("spreadsheetId").Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", classify(fmt.Sprintf("spreadsheet %q", name), err)
	}

	g.mu.Lock()
	g.verified[id] = true
	g.mu.Unlock()
	return id, nil
}

// ReadList implements Reader
func (g *GoogleReader) ReadList(ctx context.Context, id, rng string, opts ListOptions) ([]string, error) {
	rows, _, err := g.values(ctx, id, rng)
	if err != nil {
		return nil, err
	}
	return flatten(rows, opts), nil
}

// ReadFrame implements Reader
func (g *GoogleReader) ReadFrame(ctx context.Context, id, rng string, headerRows int) (*frame.Frame, error) {
	rows, r, err := g.values(ctx, id, rng)
	if err != nil {
		return nil, err
	}
	return toFrame(rows, headerRows, r.Width())
}

func (g *GoogleReader) values(ctx context.Context, id, rng string) ([][]string, Range, error) {
	r, err := ParseRange(rng)
	if err != nil {
		return nil, Range{}, apperrors.NewAppValidationError(err.Error())
	}

	var resp *gsheets.ValueRange
	err = g.trace(ctx, "values.get", id, rng, func(ctx context.Context) error {
		var err error
		resp, err = g.svc.Spreadsheets.Values.Get(id, rng).
			ValueRenderOption("FORMATTED_VALUE").
			MajorDimension("ROWS").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, Range{}, classify(rng, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				rows[i][j] = fmt.Sprint(cell)
			}
		}
	}
	g.logger.DebugContext(ctx, "range read",
		slog.String("range", rng),
		slog.Int("rows", len(rows)),
	)
	return rows, r, nil
}

func (g *GoogleReader) trace(ctx context.Context, op, id, rng string, fn func(context.Context) error) error {
	ctx, span := otel.Tracer(TracerName).Start(ctx, "sheets."+op,
		trace.WithAttributes(
			attribute.String("sheets.operation", op),
			attribute.String("sheets.spreadsheet_id", id),
			attribute.String("sheets.range", rng),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	span.SetAttributes(attribute.Float64("sheets.duration_ms", float64(time.Since(start).Milliseconds())))
	if err != nil {
		infrastructure.RecordError(ctx, err)
	}
	return err
}

func classify(what string, err error) error {
	if apperrors.IsTimeout(err) {
		return apperrors.NewTimeoutError(fmt.Sprintf("reading %s timed out", what), err)
	}
	return apperrors.NewNetworkError(fmt.Sprintf("reading %s", what), err)
}
