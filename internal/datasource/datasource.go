package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"covidqc/internal/diagnostics"
	apperrors "covidqc/internal/errors"
	"covidqc/internal/frame"
	"covidqc/internal/infrastructure"
	"covidqc/internal/loaders"
)

// TracerName is the instrumentation scope of facade spans
const TracerName = "covidqc/datasource"

// Rollup failures reported by the rollup itself
var (
	errCountiesUnavailable = errors.New("county sources unavailable")
	errCombineFailed       = errors.New("county datasets could not be combined")
)

// Status describes one dataset without loading it
type Status struct {
	Name     Name          `json:"name"`
	State    State         `json:"state"`
	Rows     int           `json:"rows"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

type entry struct {
	name     Name
	label    string
	severity diagnostics.Severity
	load     func(ctx context.Context) (*frame.Frame, error)

	mu       sync.Mutex
	state    State
	frame    *frame.Frame
	err      error // returned on every access
	cause    error
	duration time.Duration
}

// Option configures a DataSource
type Option func(*DataSource)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *DataSource) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records load outcomes and diagnostics on m
func WithMetrics(m *infrastructure.SourceMetrics) Option {
	return func(d *DataSource) {
		d.metrics = m
	}
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) Option {
	return func(d *DataSource) {
		d.tracer = t
	}
}

// WithLog shares an existing diagnostics log
func WithLog(log *diagnostics.Log) Option {
	return func(d *DataSource) {
		d.log = log
	}
}

// DataSource is the facade over every source of one run. Each dataset moves
// from unloaded to loaded or failed at most once; failed is terminal.
type DataSource struct {
	provider Provider
	log      *diagnostics.Log
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *infrastructure.SourceMetrics

	entries map[Name]*entry

	headerMu sync.Mutex
	header   loaders.HeaderTimes
}

// New creates a facade that loads through provider
func New(provider Provider, opts ...Option) *DataSource {
	d := &DataSource{
		provider: provider,
		logger:   slog.Default(),
		tracer:   otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(slog.String("component", "datasource"))
	if d.log == nil {
		d.log = diagnostics.NewLog(d.logger)
	}
	if d.metrics != nil {
		d.log.Observe(func(e diagnostics.Entry) {
			infrastructure.RecordDiagnostic(context.Background(), d.metrics, string(e.Severity))
		})
	}

	core := diagnostics.SeverityError
	county := diagnostics.SeverityWarning
	d.entries = map[Name]*entry{
		Working:  {name: Working, label: "working", severity: core, load: d.loadWorking},
		Current:  {name: Current, label: "current", severity: core, load: d.withLog(provider.LoadCurrent)},
		History:  {name: History, label: "history", severity: core, load: d.withLog(provider.LoadHistory)},
		CDS:      {name: CDS, label: "CDS counties", severity: county, load: d.withLog(provider.LoadCDSCounties)},
		CSBS:     {name: CSBS, label: "CSBS counties", severity: county, load: d.withLog(provider.LoadCSBSCounties)},
		NYT:      {name: NYT, label: "NYT counties", severity: county, load: d.withLog(provider.LoadNYTCounties)},
		Counties: {name: Counties, label: "counties", severity: county, load: d.rollup},
	}
	return d
}

func (d *DataSource) withLog(fn func(context.Context, *diagnostics.Log) (*frame.Frame, error)) func(context.Context) (*frame.Frame, error) {
	return func(ctx context.Context) (*frame.Frame, error) {
		return fn(ctx, d.log)
	}
}

func (d *DataSource) loadWorking(ctx context.Context) (*frame.Frame, error) {
	ws, err := d.provider.LoadWorking(ctx, d.log)
	if err != nil {
		return nil, err
	}
	d.headerMu.Lock()
	d.header = ws.Header
	d.headerMu.Unlock()
	return ws.Frame, nil
}

// Log returns the run's diagnostics
func (d *DataSource) Log() *diagnostics.Log {
	return d.log
}

// Working returns the working sheet. A changed sheet layout is returned as
// a schema drift error on every access; other failures yield nil, nil.
func (d *DataSource) Working(ctx context.Context) (*frame.Frame, error) {
	return d.get(ctx, d.entries[Working])
}

// Header returns the working sheet's header times. ok is false when the
// working sheet did not load.
func (d *DataSource) Header(ctx context.Context) (loaders.HeaderTimes, bool) {
	if f, _ := d.Working(ctx); f == nil {
		return loaders.HeaderTimes{}, false
	}
	d.headerMu.Lock()
	defer d.headerMu.Unlock()
	return d.header, true
}

// Current returns today's values or nil when they could not be loaded
func (d *DataSource) Current(ctx context.Context) *frame.Frame {
	f, _ := d.get(ctx, d.entries[Current])
	return f
}

// History returns the daily history or nil
func (d *DataSource) History(ctx context.Context) *frame.Frame {
	f, _ := d.get(ctx, d.entries[History])
	return f
}

// CDSCounties returns the scraped county feed or nil
func (d *DataSource) CDSCounties(ctx context.Context) *frame.Frame {
	f, _ := d.get(ctx, d.entries[CDS])
	return f
}

// CSBSCounties returns the reporting-API county feed or nil
func (d *DataSource) CSBSCounties(ctx context.Context) *frame.Frame {
	f, _ := d.get(ctx, d.entries[CSBS])
	return f
}

// NYTCounties returns the editorial county feed or nil
func (d *DataSource) NYTCounties(ctx context.Context) *frame.Frame {
	f, _ := d.get(ctx, d.entries[NYT])
	return f
}

// CountyRollup returns cases, deaths and recovered summed per state and
// source. It is nil unless all three county feeds loaded.
func (d *DataSource) CountyRollup(ctx context.Context) *frame.Frame {
	f, _ := d.get(ctx, d.entries[Counties])
	return f
}

// Get loads a dataset by name. The error is non-nil only for an unknown
// name or a working sheet whose layout changed.
func (d *DataSource) Get(ctx context.Context, name Name) (*frame.Frame, error) {
	e, ok := d.entries[name]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("dataset %q", name))
	}
	return d.get(ctx, e)
}

// State reports a dataset's state without loading it
func (d *DataSource) State(name Name) State {
	e, ok := d.entries[name]
	if !ok {
		return StateUnloaded
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Statuses reports every dataset in Names order without loading anything
func (d *DataSource) Statuses() []Status {
	out := make([]Status, 0, len(Names))
	for _, n := range Names {
		e := d.entries[n]
		e.mu.Lock()
		s := Status{Name: n, State: e.state, Duration: e.duration}
		if e.frame != nil {
			s.Rows = e.frame.Len()
		}
		if e.cause != nil {
			s.Error = e.cause.Error()
		}
		e.mu.Unlock()
		out = append(out, s)
	}
	return out
}

// get materializes e on first access. The entry lock is held for the whole
// load so concurrent callers wait for the single attempt.
func (d *DataSource) get(ctx context.Context, e *entry) (*frame.Frame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateUnloaded {
		d.materialize(ctx, e)
	}
	return e.frame, e.err
}

func (d *DataSource) materialize(ctx context.Context, e *entry) {
	ctx, span := d.tracer.Start(ctx, "datasource.load."+string(e.name),
		trace.WithAttributes(attribute.String("source", string(e.name))))
	defer span.End()

	start := time.Now()
	f, err := e.load(ctx)
	e.duration = time.Since(start)

	// the caller went away; the source itself did not fail
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		e.duration = 0
		span.SetStatus(codes.Error, "canceled")
		d.logger.DebugContext(ctx, "source load canceled",
			slog.String("source", string(e.name)))
		infrastructure.RecordSourceLoad(ctx, d.metrics, string(e.name), "canceled", time.Since(start))
		return
	}

	status := "loaded"
	if err != nil {
		e.cause = err
	}
	switch {
	case err == nil:
		e.state = StateLoaded
		e.frame = f
		span.SetAttributes(attribute.Int("rows", f.Len()))
		d.logger.InfoContext(ctx, "source loaded",
			slog.String("source", string(e.name)),
			slog.Int("rows", f.Len()),
			slog.Duration("duration", e.duration))
	case apperrors.IsSchemaDrift(err):
		status = "schema_drift"
		e.state = StateFailed
		e.err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "schema drift")
		d.logger.ErrorContext(ctx, "source layout changed",
			slog.String("source", string(e.name)),
			slog.String("error", err.Error()))
	case errors.Is(err, errCountiesUnavailable):
		status = "skipped"
		e.state = StateFailed
		span.SetStatus(codes.Error, err.Error())
	case errors.Is(err, errCombineFailed):
		status = "error"
		e.state = StateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case apperrors.IsTimeout(err):
		status = "timeout"
		e.state = StateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, "timeout")
		d.record(e.severity, "Could not fetch "+e.label, nil)
	default:
		status = "error"
		e.state = StateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.ErrorContext(ctx, "source failed",
			slog.String("source", string(e.name)),
			slog.String("error", err.Error()))
		d.record(e.severity, "Could not load "+e.label, err)
	}
	infrastructure.RecordSourceLoad(ctx, d.metrics, string(e.name), status, e.duration)
}

func (d *DataSource) record(sev diagnostics.Severity, msg string, err error) {
	if sev == diagnostics.SeverityWarning {
		d.log.Warning(msg, err)
		return
	}
	d.log.Error(msg, err)
}
