package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"covidqc/internal/diagnostics"
	apierrors "covidqc/internal/errors"
	"covidqc/internal/services"
	"covidqc/internal/shared/testutil"
	"covidqc/pkg/contracts/domain"
)

// MockRunService is a mock implementation of RunServiceInterface
type MockRunService struct {
	mock.Mock
}

func (m *MockRunService) Start(ctx context.Context, warm []string) (domain.Run, error) {
	args := m.Called(warm)
	return args.Get(0).(domain.Run), args.Error(1)
}

func (m *MockRunService) Current() domain.Run {
	return m.Called().Get(0).(domain.Run)
}

func (m *MockRunService) Get(id string) (domain.Run, error) {
	args := m.Called(id)
	return args.Get(0).(domain.Run), args.Error(1)
}

func (m *MockRunService) List() []domain.Run {
	return m.Called().Get(0).([]domain.Run)
}

func (m *MockRunService) Sources() []domain.SourceStatus {
	return m.Called().Get(0).([]domain.SourceStatus)
}

func (m *MockRunService) Diagnostics() []domain.Diagnostic {
	return m.Called().Get(0).([]domain.Diagnostic)
}

func (m *MockRunService) Dataset(ctx context.Context, name string, offset, limit int) (domain.Dataset, error) {
	args := m.Called(name, offset, limit)
	return args.Get(0).(domain.Dataset), args.Error(1)
}

func (m *MockRunService) Export(ctx context.Context, name string, w io.Writer) error {
	args := m.Called(name)
	if err := args.Error(0); err != nil {
		return err
	}
	_, err := io.WriteString(w, args.String(1))
	return err
}

func (m *MockRunService) Log() *diagnostics.Log {
	return m.Called().Get(0).(*diagnostics.Log)
}

func newTestRouter(t *testing.T, svc RunServiceInterface) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	errorHandler := apierrors.NewErrorHandler(logger, false)

	r := chi.NewRouter()
	r.Mount("/api/runs", NewRunHandler(svc, logger, errorHandler).Routes())
	r.Mount("/api", NewSourceHandler(svc, logger, errorHandler).Routes())
	return r
}

func TestSourceHandler_GetSource(t *testing.T) {
	dataset := domain.Dataset{
		Name:    "current",
		RunID:   "run-1",
		Columns: []domain.Column{{Name: "state", Kind: "category"}},
		Rows:    []map[string]any{{"state": "CA"}},
		Total:   56,
	}

	tests := []struct {
		name           string
		url            string
		setupMock      func(*MockRunService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "default page",
			url:  "/api/sources/current",
			setupMock: func(m *MockRunService) {
				m.On("Dataset", "current", 0, defaultPageSize).Return(dataset, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"total":56`,
		},
		{
			name: "explicit window",
			url:  "/api/sources/current?offset=10&limit=5",
			setupMock: func(m *MockRunService) {
				m.On("Dataset", "current", 10, 5).Return(dataset, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"run_id":"run-1"`,
		},
		{
			name:           "invalid limit",
			url:            "/api/sources/current?limit=0",
			setupMock:      func(m *MockRunService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "limit must be between",
		},
		{
			name: "unknown source",
			url:  "/api/sources/bogus",
			setupMock: func(m *MockRunService) {
				m.On("Dataset", "bogus", 0, defaultPageSize).
					Return(domain.Dataset{}, fmt.Errorf("%w: %q", services.ErrUnknownSource, "bogus"))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   "source bogus not found",
		},
		{
			name: "failed source",
			url:  "/api/sources/history",
			setupMock: func(m *MockRunService) {
				m.On("Dataset", "history", 0, defaultPageSize).
					Return(domain.Dataset{}, fmt.Errorf("%w: history", services.ErrSourceFailed))
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   "history could not be loaded",
		},
		{
			name: "schema drift",
			url:  "/api/sources/working",
			setupMock: func(m *MockRunService) {
				m.On("Dataset", "working", 0, defaultPageSize).
					Return(domain.Dataset{}, apierrors.NewSchemaDriftError("sheet layout changed", []string{"Foo"}, nil))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"unexpected":["Foo"]`,
		},
		{
			name: "internal error",
			url:  "/api/sources/cds",
			setupMock: func(m *MockRunService) {
				m.On("Dataset", "cds", 0, defaultPageSize).Return(domain.Dataset{}, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockRunService)
			tt.setupMock(mockService)

			rec := httptest.NewRecorder()
			newTestRouter(t, mockService).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestSourceHandler_ExportSource(t *testing.T) {
	tests := []struct {
		name           string
		source         string
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{name: "csv attachment", source: "current", expectedStatus: http.StatusOK, expectedBody: "state,positive\nCA,1\n"},
		{name: "failed source", source: "history", err: fmt.Errorf("%w: history", services.ErrSourceFailed), expectedStatus: http.StatusBadGateway, expectedBody: "history could not be loaded"},
		{name: "unknown source", source: "bogus", err: services.ErrUnknownSource, expectedStatus: http.StatusNotFound, expectedBody: "source bogus not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockRunService)
			if tt.err != nil {
				mockService.On("Export", tt.source).Return(tt.err)
			} else {
				mockService.On("Export", tt.source).Return(nil, "state,positive\nCA,1\n")
			}

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/sources/"+tt.source+"?format=csv", nil)
			newTestRouter(t, mockService).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			if tt.err == nil {
				assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
				assert.Equal(t, `attachment; filename="current.csv"`, rec.Header().Get("Content-Disposition"))
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestSourceHandler_ListSources(t *testing.T) {
	mockService := new(MockRunService)
	mockService.On("Current").Return(domain.Run{ID: "run-1"})
	mockService.On("Sources").Return([]domain.SourceStatus{
		{Name: "current", State: "loaded", Rows: 56},
		{Name: "history", State: "unloaded"},
	})

	rec := httptest.NewRecorder()
	newTestRouter(t, mockService).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sources", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"run_id":"run-1"`)
	assert.Contains(t, rec.Body.String(), `"state":"unloaded"`)
	mockService.AssertExpectations(t)
}

func TestSourceHandler_GetDiagnostics(t *testing.T) {
	log := diagnostics.NewLog(nil)
	log.Error("Could not load current", errors.New("status=500"))
	log.Warning("Could not fetch NYT counties", nil)

	t.Run("json", func(t *testing.T) {
		mockService := new(MockRunService)
		mockService.On("Log").Return(log)
		mockService.On("Diagnostics").Return([]domain.Diagnostic{
			{Severity: "error", Message: "Could not load current", Cause: "status=500", Time: time.Now()},
		})

		rec := httptest.NewRecorder()
		newTestRouter(t, mockService).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/diagnostics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"has_error":true`)
		assert.Contains(t, rec.Body.String(), "Could not load current")
	})

	t.Run("text", func(t *testing.T) {
		mockService := new(MockRunService)
		mockService.On("Log").Return(log)

		rec := httptest.NewRecorder()
		newTestRouter(t, mockService).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/diagnostics?format=text", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, "ERROR: Could not load current: status=500\nWARNING: Could not fetch NYT counties\n", rec.Body.String())
	})
}

func TestRunHandler_StartRun(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockRunService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "warm sources",
			body: `{"warm":["current","nyt"]}`,
			setupMock: func(m *MockRunService) {
				m.On("Start", []string{"current", "nyt"}).
					Return(domain.Run{ID: "run-2", Status: domain.RunStatusCompleted}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"id":"run-2"`,
		},
		{
			name: "empty body",
			body: "",
			setupMock: func(m *MockRunService) {
				m.On("Start", []string(nil)).Return(domain.Run{ID: "run-3", Status: domain.RunStatusCompleted}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"id":"run-3"`,
		},
		{
			name:           "unknown source",
			body:           `{"warm":["bogus"]}`,
			setupMock:      func(m *MockRunService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "must be one of",
		},
		{
			name:           "malformed body",
			body:           `{"warm":`,
			setupMock:      func(m *MockRunService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "invalid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockRunService)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			newTestRouter(t, mockService).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestRunHandler_GetRun(t *testing.T) {
	mockService := new(MockRunService)
	mockService.On("Get", "run-1").Return(domain.Run{ID: "run-1", Status: domain.RunStatusFailed}, nil)
	mockService.On("Get", "missing").Return(domain.Run{}, fmt.Errorf("%w: missing", services.ErrRunNotFound))
	mockService.On("Current").Return(domain.Run{ID: "run-1"})
	mockService.On("List").Return([]domain.Run{{ID: "run-1"}, {ID: "run-0"}})
	router := newTestRouter(t, mockService)

	tests := []struct {
		url            string
		expectedStatus int
		expectedBody   string
	}{
		{url: "/api/runs/run-1", expectedStatus: http.StatusOK, expectedBody: `"status":"failed"`},
		{url: "/api/runs/missing", expectedStatus: http.StatusNotFound, expectedBody: "run missing not found"},
		{url: "/api/runs/current", expectedStatus: http.StatusOK, expectedBody: `"id":"run-1"`},
		{url: "/api/runs", expectedStatus: http.StatusOK, expectedBody: `"total":2`},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	tests := []struct {
		name           string
		runs           *services.RunService
		handlerFunc    func(*HealthHandler) http.HandlerFunc
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "health",
			handlerFunc:    func(h *HealthHandler) http.HandlerFunc { return h.HealthCheck },
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"ok"`,
		},
		{
			name:           "not ready without runs",
			handlerFunc:    func(h *HealthHandler) http.HandlerFunc { return h.ReadinessCheck },
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `"status":"not_ready"`,
		},
		{
			name:           "liveness",
			handlerFunc:    func(h *HealthHandler) http.HandlerFunc { return h.LivenessCheck },
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"alive"`,
		},
		{
			name:           "version",
			handlerFunc:    func(h *HealthHandler) http.HandlerFunc { return h.Version },
			expectedStatus: http.StatusOK,
			expectedBody:   `"version":"9.9.9"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(services.NewHealthService("9.9.9", tt.runs, logger), logger)
			rec := httptest.NewRecorder()
			tt.handlerFunc(h)(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	t.Run("prometheus", func(t *testing.T) {
		prom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, "source_loads_total 3")
		})
		rec := httptest.NewRecorder()
		NewMetricsHandler(prom).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Contains(t, rec.Body.String(), "source_loads_total 3")
	})

	t.Run("runtime fallback", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewMetricsHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "goroutines")
	})
}
