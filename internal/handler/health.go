package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is the slice of the repository the health probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`   // Healthy | Degraded
	Database  string    `json:"database"` // Connected | Disconnected
	Timestamp time.Time `json:"timestamp"`
}

// HealthHandler reports liveness and store readiness.
type HealthHandler struct {
	store  Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		logger: logger,
	}
}

// HandleHealth pings the store and reports the result.
//
// HTTP: GET /health (public)
//
// The transport status is ALWAYS 200 — a reachable process is alive even
// when its database is not. Monitors must inspect the body's status field,
// not the status code, to detect degradation. Readiness and liveness are
// deliberately decoupled here.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "Healthy",
		Database:  "Connected",
		Timestamp: time.Now().UTC(),
	}

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("health probe: store unreachable", slog.String("error", err.Error()))
		resp.Status = "Degraded"
		resp.Database = "Disconnected"
	}

	writeJSON(w, http.StatusOK, resp)
}
