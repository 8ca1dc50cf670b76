package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/rs/zerolog"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports service liveness and the ML service status.
type HealthHandler struct {
	ml  HealthChecker
	log zerolog.Logger
}

// NewHealthHandler creates a health handler. ml may be nil.
func NewHealthHandler(ml HealthChecker, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{ml: ml, log: log}
}

// Health handles GET /health. Dependency failures degrade the report, not the status code.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	}
	if h.ml != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ml.Health(ctx); err != nil {
			h.log.Warn().Err(err).Msg("ML service health check failed")
			resp["ml_service"] = "unavailable"
		} else {
			resp["ml_service"] = "ok"
		}
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}
