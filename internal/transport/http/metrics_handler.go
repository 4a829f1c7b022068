package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"covidqc/internal/infrastructure"
)

// MetricsHandler serves the Prometheus exposition, or a JSON runtime snapshot
// when no exporter is configured.
type MetricsHandler struct {
	prometheus http.Handler
	startTime  time.Time
}

// NewMetricsHandler creates a metrics handler. prometheus may be nil.
func NewMetricsHandler(prometheus http.Handler) *MetricsHandler {
	return &MetricsHandler{
		prometheus: prometheus,
		startTime:  time.Now(),
	}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.prometheus != nil {
		h.prometheus.ServeHTTP(w, r)
		return
	}
	render.JSON(w, r, infrastructure.CollectRuntimeStats(h.startTime))
}
