package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidqc/internal/diagnostics"
	apperrors "covidqc/internal/errors"
	"covidqc/internal/frame"
	"covidqc/internal/loaders"
	"covidqc/internal/shared/testutil"
	"covidqc/pkg/contracts/domain"
)

// fakeProvider serves fixed frames and counts loader invocations
type fakeProvider struct {
	mu      sync.Mutex
	calls   map[string]int
	frames  map[string]*frame.Frame
	errs    map[string]error
	working *loaders.WorkingSheet
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	states := func(s ...string) *frame.Frame {
		f, err := frame.New(
			frame.NewCategory("state", s),
			frame.NewInt("positive", make([]int64, len(s))),
		)
		require.NoError(t, err)
		return f
	}
	return &fakeProvider{
		calls: map[string]int{},
		frames: map[string]*frame.Frame{
			"current": states("CA", "NY", "WA"),
			"history": states("CA", "CA"),
			"cds":     states("CA"),
			"csbs":    states("CA"),
			"nyt":     states("CA"),
		},
		errs: map[string]error{},
		working: &loaders.WorkingSheet{
			Frame:  states("CA", "NY"),
			Header: loaders.HeaderTimes{LastPublishTime: "4/14 17:00", LastPushTime: "4/14 17:05", CurrentTime: "4/14 17:32"},
		},
	}
}

func (p *fakeProvider) load(name string) (*frame.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[name]++
	if err := p.errs[name]; err != nil {
		return nil, err
	}
	return p.frames[name], nil
}

func (p *fakeProvider) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

func (p *fakeProvider) LoadWorking(ctx context.Context, log *diagnostics.Log) (*loaders.WorkingSheet, error) {
	if _, err := p.load("working"); err != nil {
		return nil, err
	}
	return p.working, nil
}

func (p *fakeProvider) LoadCurrent(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	return p.load("current")
}

func (p *fakeProvider) LoadHistory(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	return p.load("history")
}

func (p *fakeProvider) LoadCDSCounties(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	return p.load("cds")
}

func (p *fakeProvider) LoadCSBSCounties(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	return p.load("csbs")
}

func (p *fakeProvider) LoadNYTCounties(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	return p.load("nyt")
}

func sourceState(run domain.Run, name string) string {
	for _, s := range run.Sources {
		if s.Name == name {
			return s.State
		}
	}
	return ""
}

func TestRunServiceStartWarms(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	provider := newFakeProvider(t)
	svc := NewRunService(provider, logger)

	run, err := svc.Start(context.Background(), []string{"current", "cds", "current"})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, []string{"current", "cds"}, run.Warmed)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, "loaded", sourceState(run, "current"))
	assert.Equal(t, "loaded", sourceState(run, "cds"))
	assert.Equal(t, "unloaded", sourceState(run, "history"))
	assert.Equal(t, "unloaded", sourceState(run, "working"))
	assert.Equal(t, 1, provider.count("current"))
	assert.Equal(t, 0, provider.count("history"))
}

func TestRunServiceUnknownSource(t *testing.T) {
	svc := NewRunService(newFakeProvider(t), nil)

	_, err := svc.Start(context.Background(), []string{"current", "bogus"})
	assert.ErrorIs(t, err, ErrUnknownSource)

	_, err = svc.Dataset(context.Background(), "bogus", 0, 0)
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestRunServiceNewRunResetsSources(t *testing.T) {
	provider := newFakeProvider(t)
	svc := NewRunService(provider, nil)
	ctx := context.Background()

	first, err := svc.Start(ctx, nil)
	require.NoError(t, err)
	_, err = svc.Dataset(ctx, "current", 0, 0)
	require.NoError(t, err)
	_, err = svc.Dataset(ctx, "current", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.count("current"))

	second, err := svc.Start(ctx, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "unloaded", sourceState(svc.Current(), "current"))

	ds, err := svc.Dataset(ctx, "current", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, second.ID, ds.RunID)
	assert.Equal(t, 2, provider.count("current"))

	runs := svc.List()
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)

	got, err := svc.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "loaded", sourceState(got, "current"))
}

func TestRunServiceFailedSource(t *testing.T) {
	provider := newFakeProvider(t)
	provider.errs["current"] = apperrors.NewNetworkError("status=500", nil)
	provider.errs["nyt"] = apperrors.NewTimeoutError("fetch timed out", context.DeadlineExceeded)
	svc := NewRunService(provider, nil)
	ctx := context.Background()

	run, err := svc.Start(ctx, []string{"current", "history", "nyt"})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Equal(t, "failed", sourceState(run, "current"))
	assert.Equal(t, "loaded", sourceState(run, "history"))
	assert.Equal(t, 1, run.Diagnostics.Errors)
	assert.Equal(t, 1, run.Diagnostics.Warnings)
	assert.True(t, run.Diagnostics.HasError)

	diags := svc.Diagnostics()
	require.Len(t, diags, 2)
	messages := []string{diags[0].Message, diags[1].Message}
	assert.ElementsMatch(t, []string{"Could not load current", "Could not fetch NYT counties"}, messages)

	_, err = svc.Dataset(ctx, "current", 0, 0)
	assert.ErrorIs(t, err, ErrSourceFailed)
	assert.Equal(t, 1, provider.count("current"))
}

func TestRunServiceDatasetPaging(t *testing.T) {
	svc := NewRunService(newFakeProvider(t), nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		offset int
		limit  int
		want   []string
	}{
		{name: "all rows", want: []string{"CA", "NY", "WA"}},
		{name: "window", offset: 1, limit: 1, want: []string{"NY"}},
		{name: "limit past end", offset: 2, limit: 10, want: []string{"WA"}},
		{name: "offset past end", offset: 10, want: []string{}},
		{name: "negative offset", offset: -3, limit: 1, want: []string{"CA"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := svc.Dataset(ctx, "current", tt.offset, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, 3, ds.Total)
			assert.Equal(t, []domain.Column{{Name: "state", Kind: "category"}, {Name: "positive", Kind: "int"}}, ds.Columns)

			got := make([]string, len(ds.Rows))
			for i, row := range ds.Rows {
				got[i] = row["state"].(string)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunServiceWorking(t *testing.T) {
	ctx := context.Background()

	t.Run("header times", func(t *testing.T) {
		svc := NewRunService(newFakeProvider(t), nil)
		ds, err := svc.Dataset(ctx, "working", 0, 0)
		require.NoError(t, err)
		require.NotNil(t, ds.Header)
		assert.Equal(t, "4/14 17:05", ds.Header.LastPushTime)
		assert.Equal(t, 2, ds.Total)
	})

	t.Run("schema drift is raised", func(t *testing.T) {
		provider := newFakeProvider(t)
		provider.errs["working"] = apperrors.NewSchemaDriftError("sheet layout changed", []string{"Foo"}, nil)
		svc := NewRunService(provider, nil)

		run, err := svc.Start(ctx, []string{"working"})
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatusCompleted, run.Status)
		assert.Zero(t, run.Diagnostics.Errors)

		_, err = svc.Dataset(ctx, "working", 0, 0)
		assert.True(t, apperrors.IsSchemaDrift(err))
		assert.Equal(t, 1, provider.count("working"))
	})
}

func TestRunServiceHistorySize(t *testing.T) {
	svc := NewRunService(newFakeProvider(t), nil, WithHistorySize(2))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := svc.Start(ctx, nil)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	assert.Len(t, svc.List(), 2)
	_, err := svc.Get(ids[0])
	assert.True(t, errors.Is(err, ErrRunNotFound))
	_, err = svc.Get(ids[2])
	assert.NoError(t, err)
}

func TestRunServiceCurrentOpensRun(t *testing.T) {
	svc := NewRunService(newFakeProvider(t), nil)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = svc.Current().ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, svc.List(), 1)
	assert.Empty(t, svc.Diagnostics())
	assert.Len(t, svc.Sources(), 7)
}

func TestHealthService(t *testing.T) {
	ctx := context.Background()
	logger, _ := testutil.NewTestLogger(t)

	t.Run("without runs", func(t *testing.T) {
		hs := NewHealthService("1.2.3", nil, logger)
		assert.Equal(t, "ok", hs.HealthCheck(ctx).Status)
		ready := hs.ReadinessCheck(ctx)
		assert.Equal(t, "not_ready", ready.Status)
		assert.Equal(t, "not_ready", ready.Services["runs"].Status)
	})

	t.Run("with a failing run", func(t *testing.T) {
		provider := newFakeProvider(t)
		provider.errs["current"] = errors.New("boom")
		runs := NewRunService(provider, logger)
		_, err := runs.Start(ctx, []string{"current"})
		require.NoError(t, err)

		hs := NewHealthService("1.2.3", runs, logger)
		ready := hs.ReadinessCheck(ctx)
		assert.Equal(t, "ready", ready.Status)
		assert.Equal(t, "current run has errors", ready.Services["runs"].Message)
	})

	t.Run("liveness and version", func(t *testing.T) {
		hs := NewHealthService("1.2.3", nil, logger)
		live := hs.LivenessCheck(ctx)
		assert.Equal(t, "alive", live.Status)
		require.NotNil(t, live.Runtime)
		assert.Positive(t, live.Runtime.Goroutines)
		assert.Equal(t, "1.2.3", hs.Version().Version)
	})
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(event string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) RunStarted(run domain.Run) { n.add("started") }

func (n *recordingNotifier) RunDiagnostic(runID string, e diagnostics.Entry) {
	n.add("diagnostic:" + e.Message)
}

func (n *recordingNotifier) RunCompleted(run domain.Run) { n.add("completed:" + string(run.Status)) }

func TestRunServiceNotifier(t *testing.T) {
	provider := newFakeProvider(t)
	provider.errs["history"] = errors.New("boom")
	notifier := &recordingNotifier{}
	svc := NewRunService(provider, nil, WithNotifier(notifier))

	_, err := svc.Start(context.Background(), []string{"history"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"started",
		"diagnostic:Could not load history",
		"completed:failed",
	}, notifier.events)
}

func TestRunServiceExport(t *testing.T) {
	provider := newFakeProvider(t)
	provider.errs["history"] = apperrors.NewNetworkError("status=503", nil)
	svc := NewRunService(provider, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		source  string
		want    string
		wantErr error
	}{
		{name: "current", source: "current", want: "state,positive\nCA,0\nNY,0\nWA,0\n"},
		{name: "failed source", source: "history", wantErr: ErrSourceFailed},
		{name: "unknown source", source: "bogus", wantErr: ErrUnknownSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := svc.Export(ctx, tt.source, &buf)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}
