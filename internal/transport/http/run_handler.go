package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "covidqc/internal/errors"
	"covidqc/internal/middleware"
	api "covidqc/pkg/contracts/api/v1"
)

// RunHandler starts and reports data runs
type RunHandler struct {
	service      RunServiceInterface
	validator    *middleware.RequestValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewRunHandler creates a new run handler
func NewRunHandler(service RunServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *RunHandler {
	return &RunHandler{
		service:      service,
		validator:    middleware.NewRequestValidator(logger),
		logger:       logger.With(slog.String("handler", "run")),
		errorHandler: errorHandler,
	}
}

// Routes returns the run routes, mounted at /api/runs
func (h *RunHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.ListRuns)
	r.Post("/", h.StartRun)
	r.Get("/current", h.CurrentRun)
	r.Get("/{id}", h.GetRun)

	return r
}

// StartRun handles POST /api/runs
func (h *RunHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req api.StartRunRequest
	if err := h.validator.Decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	run, err := h.service.Start(r.Context(), req.Warm)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err, "run"))
		return
	}

	h.logger.InfoContext(r.Context(), "run started via API",
		slog.String("run_id", run.ID),
		slog.String("status", string(run.Status)))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, run)
}

// ListRuns handles GET /api/runs
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.service.List()
	render.JSON(w, r, map[string]interface{}{
		"runs":  runs,
		"total": len(runs),
	})
}

// CurrentRun handles GET /api/runs/current
func (h *RunHandler) CurrentRun(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Current())
}

// GetRun handles GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.service.Get(id)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err, id))
		return
	}
	render.JSON(w, r, run)
}
