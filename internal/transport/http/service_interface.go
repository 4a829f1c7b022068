package http

import (
	"context"
	"io"

	"covidqc/internal/diagnostics"
	"covidqc/pkg/contracts/domain"
)

// RunServiceInterface defines the run operations the handlers need
type RunServiceInterface interface {
	Start(ctx context.Context, warm []string) (domain.Run, error)
	Current() domain.Run
	Get(id string) (domain.Run, error)
	List() []domain.Run
	Sources() []domain.SourceStatus
	Diagnostics() []domain.Diagnostic
	Dataset(ctx context.Context, name string, offset, limit int) (domain.Dataset, error)
	Export(ctx context.Context, name string, w io.Writer) error
	Log() *diagnostics.Log
}
