package datasource

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"covidqc/internal/diagnostics"
	apperrors "covidqc/internal/errors"
	"covidqc/internal/frame"
	"covidqc/internal/infrastructure"
	"covidqc/internal/loaders"
	"covidqc/internal/shared/testutil"
)

// MockProvider is a mock for the Provider interface
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) LoadWorking(ctx context.Context, log *diagnostics.Log) (*loaders.WorkingSheet, error) {
	args := m.Called(ctx, log)
	ws, _ := args.Get(0).(*loaders.WorkingSheet)
	return ws, args.Error(1)
}

func (m *MockProvider) frameCall(method string, ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	args := m.MethodCalled(method, ctx, log)
	f, _ := args.Get(0).(*frame.Frame)
	return f, args.Error(1)
}

func (m *MockProvider) LoadCurrent(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	return m.frameCall("LoadCurrent", ctx, log)
}

func (m *MockProvider) LoadHistory(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	return m.frameCall("LoadHistory", ctx, log)
}

func (m *MockProvider) LoadCDSCounties(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	return m.frameCall("LoadCDSCounties", ctx, log)
}

func (m *MockProvider) LoadCSBSCounties(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	return m.frameCall("LoadCSBSCounties", ctx, log)
}

func (m *MockProvider) LoadNYTCounties(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error) {
	return m.frameCall("LoadNYTCounties", ctx, log)
}

func stateFrame(t *testing.T, states ...string) *frame.Frame {
	t.Helper()
	f, err := frame.New(
		frame.NewCategory("state", states),
		frame.NewInt("positive", make([]int64, len(states))),
	)
	require.NoError(t, err)
	return f
}

func countyFrame(t *testing.T, source string, states []string, cases []float64) *frame.Frame {
	t.Helper()
	n := len(states)
	nan := make([]float64, n)
	tags := make([]string, n)
	for i := range nan {
		nan[i] = math.NaN()
		tags[i] = source
	}
	f, err := frame.New(
		frame.NewString("county", make([]string, n)),
		frame.NewCategory("state", states),
		frame.NewFloat("cases", cases),
		frame.NewFloat("deaths", append([]float64(nil), cases...)),
		frame.NewFloat("recovered", nan),
		frame.NewCategory("source", tags),
	)
	require.NoError(t, err)
	return f
}

func newTestSource(t *testing.T, p Provider, opts ...Option) *DataSource {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return New(p, append([]Option{WithLogger(logger)}, opts...)...)
}

func TestDataSourceIsLazy(t *testing.T) {
	p := new(MockProvider)
	ds := newTestSource(t, p)

	for _, n := range Names {
		assert.Equal(t, StateUnloaded, ds.State(n), n)
	}
	p.AssertExpectations(t)
	assert.Zero(t, ds.Log().Len())
}

func TestDataSourceLoadsOnce(t *testing.T) {
	p := new(MockProvider)
	current := stateFrame(t, "CA", "NY")
	p.On("LoadCurrent", mock.Anything, mock.Anything).Return(current, nil).Once()
	ds := newTestSource(t, p)

	assert.Same(t, current, ds.Current(context.Background()))
	assert.Same(t, current, ds.Current(context.Background()))

	p.AssertNumberOfCalls(t, "LoadCurrent", 1)
	assert.Equal(t, StateLoaded, ds.State(Current))
	assert.Equal(t, StateUnloaded, ds.State(History))
	assert.False(t, ds.Log().HasError())
}

func TestDataSourceFailures(t *testing.T) {
	network := apperrors.NewNetworkError("Could not get http://x, status=500", nil)
	timeout := apperrors.NewTimeoutError("request timed out", context.DeadlineExceeded)

	tests := []struct {
		name     string
		method   string
		access   func(*DataSource, context.Context) *frame.Frame
		err      error
		severity diagnostics.Severity
		message  string
		cause    bool
	}{
		{
			name:     "current timeout",
			method:   "LoadCurrent",
			access:   (*DataSource).Current,
			err:      timeout,
			severity: diagnostics.SeverityError,
			message:  "Could not fetch current",
		},
		{
			name:     "history error",
			method:   "LoadHistory",
			access:   (*DataSource).History,
			err:      network,
			severity: diagnostics.SeverityError,
			message:  "Could not load history",
			cause:    true,
		},
		{
			name:     "cds timeout",
			method:   "LoadCDSCounties",
			access:   (*DataSource).CDSCounties,
			err:      timeout,
			severity: diagnostics.SeverityWarning,
			message:  "Could not fetch CDS counties",
		},
		{
			name:     "csbs error",
			method:   "LoadCSBSCounties",
			access:   (*DataSource).CSBSCounties,
			err:      network,
			severity: diagnostics.SeverityWarning,
			message:  "Could not load CSBS counties",
			cause:    true,
		},
		{
			name:     "nyt parse error",
			method:   "LoadNYTCounties",
			access:   (*DataSource).NYTCounties,
			err:      errors.New("bad csv"),
			severity: diagnostics.SeverityWarning,
			message:  "Could not load NYT counties",
			cause:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockProvider)
			p.On(tt.method, mock.Anything, mock.Anything).Return(nil, tt.err)
			ds := newTestSource(t, p)
			ctx := context.Background()

			assert.Nil(t, tt.access(ds, ctx))
			assert.Nil(t, tt.access(ds, ctx))
			p.AssertNumberOfCalls(t, tt.method, 1)

			entries := ds.Log().Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.severity, entries[0].Severity)
			assert.Equal(t, tt.message, entries[0].Message)
			if tt.cause {
				assert.ErrorIs(t, entries[0].Err(), tt.err)
			} else {
				assert.NoError(t, entries[0].Err())
			}
		})
	}
}

func TestDataSourceWorking(t *testing.T) {
	t.Run("loaded", func(t *testing.T) {
		p := new(MockProvider)
		ws := &loaders.WorkingSheet{
			Frame:  stateFrame(t, "CA"),
			Header: loaders.HeaderTimes{LastPublishTime: "3/1/2020 10:00", CurrentTime: "3/1/2020 10:10"},
		}
		p.On("LoadWorking", mock.Anything, mock.Anything).Return(ws, nil).Once()
		ds := newTestSource(t, p)

		header, ok := ds.Header(context.Background())
		require.True(t, ok)
		assert.Equal(t, "3/1/2020 10:10", header.CurrentTime)

		f, err := ds.Working(context.Background())
		require.NoError(t, err)
		assert.Same(t, ws.Frame, f)
		p.AssertNumberOfCalls(t, "LoadWorking", 1)
	})

	t.Run("schema drift", func(t *testing.T) {
		p := new(MockProvider)
		drift := apperrors.NewSchemaDriftError("columns in working sheet have changed", []string{"Positives"}, []string{"Positive"})
		p.On("LoadWorking", mock.Anything, mock.Anything).Return(nil, drift)
		ds := newTestSource(t, p)

		for i := 0; i < 2; i++ {
			f, err := ds.Working(context.Background())
			assert.Nil(t, f)
			require.Error(t, err)
			assert.True(t, apperrors.IsSchemaDrift(err))
		}
		_, ok := ds.Header(context.Background())
		assert.False(t, ok)

		p.AssertNumberOfCalls(t, "LoadWorking", 1)
		assert.Equal(t, StateFailed, ds.State(Working))
		assert.Zero(t, ds.Log().Len())
	})

	t.Run("timeout", func(t *testing.T) {
		p := new(MockProvider)
		p.On("LoadWorking", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)
		ds := newTestSource(t, p)

		f, err := ds.Working(context.Background())
		assert.Nil(t, f)
		assert.NoError(t, err)
		assert.True(t, ds.Log().HasError())
		assert.Equal(t, "Could not fetch working", ds.Log().Entries()[0].Message)
	})
}

func TestCountyRollup(t *testing.T) {
	p := new(MockProvider)
	p.On("LoadCDSCounties", mock.Anything, mock.Anything).
		Return(countyFrame(t, "cds", []string{"CA"}, []float64{10}), nil).Once()
	p.On("LoadCSBSCounties", mock.Anything, mock.Anything).
		Return(countyFrame(t, "csbs", []string{"CA"}, []float64{20}), nil).Once()
	p.On("LoadNYTCounties", mock.Anything, mock.Anything).
		Return(countyFrame(t, "nyt", []string{"CA"}, []float64{30}), nil).Once()
	ds := newTestSource(t, p)

	rollup := ds.CountyRollup(context.Background())
	require.NotNil(t, rollup)
	assert.Same(t, rollup, ds.CountyRollup(context.Background()))

	assert.Equal(t, 3, rollup.Len())
	states, _ := rollup.Strings("state")
	sources, _ := rollup.Strings("source")
	cases, err := rollup.Ints("cases")
	require.NoError(t, err)
	recovered, err := rollup.Ints("recovered")
	require.NoError(t, err)

	assert.Equal(t, []string{"CA", "CA", "CA"}, states)
	assert.Equal(t, []string{"cds", "csbs", "nyt"}, sources)
	assert.Equal(t, []int64{10, 20, 30}, cases)
	assert.Equal(t, []int64{0, 0, 0}, recovered)

	p.AssertExpectations(t)
	assert.Zero(t, ds.Log().Len())
}

func TestCountyRollupSums(t *testing.T) {
	p := new(MockProvider)
	p.On("LoadCDSCounties", mock.Anything, mock.Anything).
		Return(countyFrame(t, "cds", []string{"CA", "NY", "CA"}, []float64{1, 2, math.NaN()}), nil)
	p.On("LoadCSBSCounties", mock.Anything, mock.Anything).
		Return(countyFrame(t, "csbs", []string{"CA", "CA"}, []float64{4, 5}), nil)
	p.On("LoadNYTCounties", mock.Anything, mock.Anything).
		Return(countyFrame(t, "nyt", []string{"NY"}, []float64{7}), nil)
	ds := newTestSource(t, p)

	rollup := ds.CountyRollup(context.Background())
	require.NotNil(t, rollup)

	states, _ := rollup.Strings("state")
	sources, _ := rollup.Strings("source")
	cases, _ := rollup.Ints("cases")
	assert.Equal(t, []string{"CA", "CA", "NY", "NY"}, states)
	assert.Equal(t, []string{"cds", "csbs", "cds", "nyt"}, sources)
	assert.Equal(t, []int64{1, 9, 2, 7}, cases)
}

func TestCountyRollupUnavailable(t *testing.T) {
	tests := []struct {
		name    Name
		method  string
		label   string
		message string
	}{
		{name: CDS, method: "LoadCDSCounties", label: "CDS counties", message: "Could not load datasets for cds"},
		{name: CSBS, method: "LoadCSBSCounties", label: "CSBS counties", message: "Could not load datasets for csbs"},
		{name: NYT, method: "LoadNYTCounties", label: "NYT counties", message: "Could not load datasets for nyt"},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			p := new(MockProvider)
			good := map[string]*frame.Frame{
				"LoadCDSCounties":  countyFrame(t, "cds", []string{"CA"}, []float64{10}),
				"LoadCSBSCounties": countyFrame(t, "csbs", []string{"CA"}, []float64{20}),
				"LoadNYTCounties":  countyFrame(t, "nyt", []string{"CA"}, []float64{30}),
			}
			for method, f := range good {
				if method == tt.method {
					p.On(method, mock.Anything, mock.Anything).
						Return(nil, apperrors.NewTimeoutError("request timed out", nil))
					continue
				}
				p.On(method, mock.Anything, mock.Anything).Return(f, nil)
			}
			logger, handler := testutil.NewTestLogger(t)
			ds := New(p, WithLogger(logger))

			assert.Nil(t, ds.CountyRollup(context.Background()))
			assert.Nil(t, ds.CountyRollup(context.Background()))

			p.AssertNumberOfCalls(t, tt.method, 1)
			assert.Equal(t, StateFailed, ds.State(Counties))
			assert.Equal(t, StateFailed, ds.State(tt.name))

			entries := ds.Log().Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, "Could not fetch "+tt.label, entries[0].Message)
			assert.False(t, ds.Log().HasError())
			assert.True(t, handler.ContainsMessage(tt.message))
		})
	}
}

func TestDataSourceCanceledCaller(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	t.Run("source stays unloaded", func(t *testing.T) {
		p := new(MockProvider)
		current := stateFrame(t, "CA")
		p.On("LoadCurrent", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewNetworkError("GET current", context.Canceled)).Once()
		p.On("LoadCurrent", mock.Anything, mock.Anything).Return(current, nil).Once()
		ds := newTestSource(t, p)

		assert.Nil(t, ds.Current(canceled))
		assert.Equal(t, StateUnloaded, ds.State(Current))
		assert.Zero(t, ds.Log().Len())

		assert.Same(t, current, ds.Current(context.Background()))
		assert.Equal(t, StateLoaded, ds.State(Current))
		p.AssertNumberOfCalls(t, "LoadCurrent", 2)
		assert.False(t, ds.Log().HasError())
	})

	t.Run("rollup stays unloaded", func(t *testing.T) {
		p := new(MockProvider)
		p.On("LoadCDSCounties", mock.Anything, mock.Anything).Return(nil, context.Canceled).Once()
		p.On("LoadCDSCounties", mock.Anything, mock.Anything).
			Return(countyFrame(t, "cds", []string{"CA"}, []float64{10}), nil)
		p.On("LoadCSBSCounties", mock.Anything, mock.Anything).
			Return(countyFrame(t, "csbs", []string{"CA"}, []float64{20}), nil)
		p.On("LoadNYTCounties", mock.Anything, mock.Anything).
			Return(countyFrame(t, "nyt", []string{"CA"}, []float64{30}), nil)
		ds := newTestSource(t, p)

		assert.Nil(t, ds.CountyRollup(canceled))
		assert.Equal(t, StateUnloaded, ds.State(Counties))
		assert.Equal(t, StateUnloaded, ds.State(CDS))

		rollup := ds.CountyRollup(context.Background())
		require.NotNil(t, rollup)
		assert.Equal(t, 3, rollup.Len())
		assert.Zero(t, ds.Log().Len())
	})
}

func TestDataSourceConcurrentAccess(t *testing.T) {
	p := new(MockProvider)
	p.On("LoadHistory", mock.Anything, mock.Anything).
		After(20*time.Millisecond).
		Return(stateFrame(t, "CA"), nil)
	ds := newTestSource(t, p)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := ds.Get(context.Background(), History)
			assert.NoError(t, err)
			assert.NotNil(t, f)
		}()
	}
	wg.Wait()

	p.AssertNumberOfCalls(t, "LoadHistory", 1)
}

func TestDataSourceGet(t *testing.T) {
	p := new(MockProvider)
	p.On("LoadCurrent", mock.Anything, mock.Anything).Return(stateFrame(t, "CA", "NY"), nil)
	ds := newTestSource(t, p)

	_, err := ds.Get(context.Background(), Name("bogus"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	f, err := ds.Get(context.Background(), Current)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())

	statuses := ds.Statuses()
	require.Len(t, statuses, len(Names))
	assert.Equal(t, Working, statuses[0].Name)
	assert.Equal(t, StateUnloaded, statuses[0].State)
	assert.Equal(t, StateLoaded, statuses[1].State)
	assert.Equal(t, 2, statuses[1].Rows)
}

func TestParseName(t *testing.T) {
	n, ok := ParseName("csbs")
	assert.True(t, ok)
	assert.Equal(t, CSBS, n)

	_, ok = ParseName("CSBS")
	assert.False(t, ok)
}

func TestDataSourceMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := infrastructure.CreateSourceMetrics(mp.Meter("test"))
	require.NoError(t, err)

	p := new(MockProvider)
	p.On("LoadCurrent", mock.Anything, mock.Anything).Return(stateFrame(t, "CA"), nil)
	p.On("LoadHistory", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
	ds := newTestSource(t, p, WithMetrics(metrics))

	ds.Current(context.Background())
	ds.History(context.Background())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				counts[m.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), counts["source_loads_total"])
	assert.Equal(t, int64(1), counts["diagnostics_total"])
}
