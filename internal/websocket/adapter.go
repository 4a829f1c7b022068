package websocket

import (
	"covidqc/internal/diagnostics"
	"covidqc/pkg/contracts/domain"
)

// RunAdapter publishes run lifecycle events on a hub
type RunAdapter struct {
	hub *Hub
}

// NewRunAdapter creates an adapter broadcasting on hub
func NewRunAdapter(hub *Hub) *RunAdapter {
	return &RunAdapter{hub: hub}
}

// RunStarted announces a new current run
func (a *RunAdapter) RunStarted(run domain.Run) {
	a.hub.Broadcast(Message{Type: TypeRunStarted, RunID: run.ID, Data: run})
}

// RunDiagnostic forwards one diagnostics log entry
func (a *RunAdapter) RunDiagnostic(runID string, e diagnostics.Entry) {
	a.hub.Broadcast(Message{
		Type:      TypeDiagnostic,
		RunID:     runID,
		Data:      e,
		Timestamp: e.Time,
	})
}

// RunCompleted announces the end of a run's warm phase
func (a *RunAdapter) RunCompleted(run domain.Run) {
	a.hub.Broadcast(Message{Type: TypeRunCompleted, RunID: run.ID, Data: run})
}
