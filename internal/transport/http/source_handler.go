package http

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "covidqc/internal/errors"
	"covidqc/internal/middleware"
	"covidqc/internal/services"
)

const (
	defaultPageSize = 500
	maxPageSize     = 50000
)

// SourceHandler serves the datasets of the current run
type SourceHandler struct {
	service      RunServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewSourceHandler creates a new source handler
func NewSourceHandler(service RunServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SourceHandler {
	return &SourceHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "source")),
		errorHandler: errorHandler,
	}
}

// Routes returns the source routes, mounted at /api
func (h *SourceHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/sources", h.ListSources)
	r.Get("/sources/{name}", h.GetSource)
	r.Get("/diagnostics", h.GetDiagnostics)

	return r
}

// ListSources handles GET /api/sources
func (h *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"run_id":  h.service.Current().ID,
		"sources": h.service.Sources(),
	})
}

// GetSource handles GET /api/sources/{name}?offset=&limit=. format=csv
// returns the whole dataset as a CSV attachment.
func (h *SourceHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if r.URL.Query().Get("format") == "csv" {
		h.exportSource(w, r, name)
		return
	}

	offset, err := middleware.QueryInt(r, "offset", 0, maxInt, 0)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	limit, err := middleware.QueryInt(r, "limit", 1, maxPageSize, defaultPageSize)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ds, err := h.service.Dataset(r.Context(), name, offset, limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err, name))
		return
	}

	h.logger.DebugContext(r.Context(), "dataset served",
		slog.String("source", name),
		slog.Int("rows", len(ds.Rows)),
		slog.Int("total", ds.Total))
	render.JSON(w, r, ds)
}

func (h *SourceHandler) exportSource(w http.ResponseWriter, r *http.Request, name string) {
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), name, &buf); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err, name))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.csv"`)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write export", slog.String("error", err.Error()))
	}
}

// GetDiagnostics handles GET /api/diagnostics. format=text returns the log
// as printed by the command line tool.
func (h *SourceHandler) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := h.service.Log().Print(w); err != nil {
			h.logger.WarnContext(r.Context(), "failed to write diagnostics", slog.String("error", err.Error()))
		}
		return
	}

	log := h.service.Log()
	render.JSON(w, r, map[string]interface{}{
		"has_error":   log.HasError(),
		"diagnostics": h.service.Diagnostics(),
	})
}

const maxInt = int(^uint(0) >> 1)

// mapServiceError turns run service sentinels into API errors. Anything else
// passes through for the error handler to classify.
func mapServiceError(err error, resource string) error {
	switch {
	case errors.Is(err, services.ErrUnknownSource):
		return apierrors.NotFoundError("source " + resource)
	case errors.Is(err, services.ErrRunNotFound):
		return apierrors.NotFoundError("run " + resource)
	case errors.Is(err, services.ErrSourceFailed):
		return apierrors.SourceUnavailableError(resource)
	}
	return err
}
