package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"covidqc/internal/datasource"
	"covidqc/internal/diagnostics"
	"covidqc/internal/exporter"
	"covidqc/internal/frame"
	"covidqc/internal/infrastructure"
	"covidqc/pkg/contracts/domain"
)

const (
	defaultHistorySize = 20
	defaultWarmLimit   = 4
)

// RunNotifier receives run lifecycle events. Implementations must not block.
type RunNotifier interface {
	RunStarted(run domain.Run)
	RunDiagnostic(runID string, e diagnostics.Entry)
	RunCompleted(run domain.Run)
}

// RunService owns the data runs. Each run is a fresh DataSource with its own
// diagnostics log; the most recent run serves dataset requests.
type RunService struct {
	provider datasource.Provider
	metrics  *infrastructure.SourceMetrics
	notifier RunNotifier
	logger   *slog.Logger
	timeout  time.Duration
	history  int
	limit    int
	now      func() time.Time

	mu      sync.RWMutex
	current *run
	runs    []*run
}

type run struct {
	id        string
	ds        *datasource.DataSource
	warm      []datasource.Name
	createdAt time.Time

	mu          sync.Mutex
	warming     bool
	completedAt *time.Time
}

// RunOption configures a RunService
type RunOption func(*RunService)

// WithRunTimeout bounds the warm phase of a run
func WithRunTimeout(d time.Duration) RunOption {
	return func(s *RunService) {
		s.timeout = d
	}
}

// WithHistorySize sets how many finished runs are kept
func WithHistorySize(n int) RunOption {
	return func(s *RunService) {
		if n > 0 {
			s.history = n
		}
	}
}

// WithWarmLimit caps the number of sources warmed concurrently
func WithWarmLimit(n int) RunOption {
	return func(s *RunService) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithSourceMetrics records load and run outcomes
func WithSourceMetrics(m *infrastructure.SourceMetrics) RunOption {
	return func(s *RunService) {
		s.metrics = m
	}
}

// WithNotifier publishes run events to n
func WithNotifier(n RunNotifier) RunOption {
	return func(s *RunService) {
		s.notifier = n
	}
}

// NewRunService creates a run service loading through provider
func NewRunService(provider datasource.Provider, logger *slog.Logger, opts ...RunOption) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RunService{
		provider: provider,
		logger:   logger.With(slog.String("component", "run_service")),
		history:  defaultHistorySize,
		limit:    defaultWarmLimit,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a new run and makes it current. The sources named in warm are
// loaded before Start returns; everything else stays lazy.
func (s *RunService) Start(ctx context.Context, warm []string) (domain.Run, error) {
	names, err := parseNames(warm)
	if err != nil {
		return domain.Run{}, err
	}

	r := s.open(names)
	s.logger.InfoContext(ctx, "run started",
		slog.String("run_id", r.id),
		slog.Int("warm", len(names)))
	s.notifyStarted(r)

	if len(names) > 0 {
		s.warmUp(ctx, r)
	}
	return s.snapshot(r), nil
}

func (s *RunService) open(names []datasource.Name) *run {
	r := s.newRun(names)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.install(r)
	return r
}

func (s *RunService) newRun(names []datasource.Name) *run {
	r := &run{
		id:        uuid.New().String(),
		warm:      names,
		createdAt: s.now(),
		warming:   len(names) > 0,
	}
	logger := s.logger.With(slog.String("run_id", r.id))
	log := diagnostics.NewLog(logger)
	if s.notifier != nil {
		log.Observe(func(e diagnostics.Entry) {
			s.notifier.RunDiagnostic(r.id, e)
		})
	}
	r.ds = datasource.New(s.provider,
		datasource.WithLogger(logger),
		datasource.WithMetrics(s.metrics),
		datasource.WithLog(log),
	)
	if !r.warming {
		t := r.createdAt
		r.completedAt = &t
	}
	return r
}

// install makes r current. Callers hold s.mu.
func (s *RunService) install(r *run) {
	s.current = r
	s.runs = append(s.runs, r)
	if len(s.runs) > s.history {
		s.runs = s.runs[len(s.runs)-s.history:]
	}
}

// warmUp loads r's warm set concurrently. Loads never cancel each other: a
// failed source is recorded by the facade and the rest keep going.
func (s *RunService) warmUp(ctx context.Context, r *run) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var g errgroup.Group
	g.SetLimit(s.limit)
	for _, name := range r.warm {
		g.Go(func() error {
			_, err := r.ds.Get(ctx, name)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "run warm-up raised",
			slog.String("run_id", r.id),
			slog.String("error", err.Error()))
	}

	done := s.now()
	r.mu.Lock()
	r.warming = false
	r.completedAt = &done
	r.mu.Unlock()

	hasError := r.ds.Log().HasError()
	infrastructure.RecordRun(ctx, s.metrics, hasError)
	s.logger.InfoContext(ctx, "run warmed",
		slog.String("run_id", r.id),
		slog.Bool("has_error", hasError),
		slog.Int("diagnostics", r.ds.Log().Len()))
	if s.notifier != nil {
		s.notifier.RunCompleted(s.snapshot(r))
	}
}

func (s *RunService) notifyStarted(r *run) {
	if s.notifier != nil {
		s.notifier.RunStarted(s.snapshot(r))
	}
}

// Current returns the current run, opening an empty one when none exists
func (s *RunService) Current() domain.Run {
	return s.snapshot(s.active())
}

func (s *RunService) active() *run {
	s.mu.RLock()
	r := s.current
	s.mu.RUnlock()
	if r != nil {
		return r
	}

	s.mu.Lock()
	opened := s.current == nil
	if opened {
		s.install(s.newRun(nil))
	}
	r = s.current
	s.mu.Unlock()

	if opened {
		s.notifyStarted(r)
	}
	return r
}

// Get returns a run by id
func (s *RunService) Get(id string) (domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.runs {
		if r.id == id {
			return s.snapshot(r), nil
		}
	}
	return domain.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
}

// List returns the kept runs, newest first
func (s *RunService) List() []domain.Run {
	s.mu.RLock()
	runs := make([]*run, len(s.runs))
	copy(runs, s.runs)
	s.mu.RUnlock()

	out := make([]domain.Run, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		out = append(out, s.snapshot(runs[i]))
	}
	return out
}

// Sources reports every dataset of the current run without loading any
func (s *RunService) Sources() []domain.SourceStatus {
	return sourceStatuses(s.active().ds)
}

// Diagnostics returns the current run's diagnostics log in append order
func (s *RunService) Diagnostics() []domain.Diagnostic {
	entries := s.active().ds.Log().Entries()
	out := make([]domain.Diagnostic, len(entries))
	for i, e := range entries {
		out[i] = domain.Diagnostic{
			Severity: string(e.Severity),
			Message:  e.Message,
			Cause:    e.Cause,
			Time:     e.Time,
		}
	}
	return out
}

// Dataset loads name in the current run if needed and returns rows
// [offset, offset+limit). A zero limit returns every remaining row.
func (s *RunService) Dataset(ctx context.Context, name string, offset, limit int) (domain.Dataset, error) {
	n, ok := datasource.ParseName(name)
	if !ok {
		return domain.Dataset{}, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}

	r := s.active()
	f, err := r.ds.Get(ctx, n)
	if err != nil {
		return domain.Dataset{}, err
	}
	if f == nil {
		return domain.Dataset{}, fmt.Errorf("%w: %s", ErrSourceFailed, n)
	}

	out := domain.Dataset{
		Name:    string(n),
		RunID:   r.id,
		Columns: columns(f),
		Rows:    rows(f, offset, limit),
		Total:   f.Len(),
	}
	if n == datasource.Working {
		if h, ok := r.ds.Header(ctx); ok {
			out.Header = &domain.HeaderTimes{
				LastPublishTime: h.LastPublishTime,
				LastPushTime:    h.LastPushTime,
				CurrentTime:     h.CurrentTime,
			}
		}
	}
	return out, nil
}

// Export loads name in the current run if needed and writes it to w as CSV
func (s *RunService) Export(ctx context.Context, name string, w io.Writer) error {
	n, ok := datasource.ParseName(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	f, err := s.active().ds.Get(ctx, n)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("%w: %s", ErrSourceFailed, n)
	}
	return exporter.EncodeCSV(w, f, exporter.WriteOptions{})
}

// Log exposes the current run's diagnostics log
func (s *RunService) Log() *diagnostics.Log {
	return s.active().ds.Log()
}

func (s *RunService) snapshot(r *run) domain.Run {
	r.mu.Lock()
	warming := r.warming
	completedAt := r.completedAt
	r.mu.Unlock()

	log := r.ds.Log()
	status := domain.RunStatusCompleted
	switch {
	case warming:
		status = domain.RunStatusRunning
	case log.HasError():
		status = domain.RunStatusFailed
	}

	warm := make([]string, len(r.warm))
	for i, n := range r.warm {
		warm[i] = string(n)
	}

	return domain.Run{
		ID:          r.id,
		Status:      status,
		Warmed:      warm,
		CreatedAt:   r.createdAt,
		CompletedAt: completedAt,
		Sources:     sourceStatuses(r.ds),
		Diagnostics: domain.DiagnosticCount{
			Errors:   log.Count(diagnostics.SeverityError),
			Warnings: log.Count(diagnostics.SeverityWarning),
			HasError: log.HasError(),
		},
	}
}

func parseNames(raw []string) ([]datasource.Name, error) {
	seen := make(map[datasource.Name]bool, len(raw))
	var out []datasource.Name
	for _, s := range raw {
		n, ok := datasource.ParseName(s)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSource, s)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out, nil
}

func sourceStatuses(ds *datasource.DataSource) []domain.SourceStatus {
	statuses := ds.Statuses()
	out := make([]domain.SourceStatus, len(statuses))
	for i, st := range statuses {
		out[i] = domain.SourceStatus{
			Name:       string(st.Name),
			State:      st.State.String(),
			Rows:       st.Rows,
			DurationMS: float64(st.Duration) / float64(time.Millisecond),
			Error:      st.Error,
		}
	}
	return out
}

func columns(f *frame.Frame) []domain.Column {
	cols := f.Columns()
	out := make([]domain.Column, len(cols))
	for i, c := range cols {
		out[i] = domain.Column{Name: c.Name, Kind: c.Kind.String()}
	}
	return out
}

func rows(f *frame.Frame, offset, limit int) []map[string]any {
	if offset < 0 {
		offset = 0
	}
	end := f.Len()
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	if offset >= end {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, end-offset)
	for i := offset; i < end; i++ {
		out = append(out, f.Row(i))
	}
	return out
}
