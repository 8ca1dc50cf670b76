package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/insights"
	"github.com/rs/zerolog"
)

// InsightsService serves generated insights.
type InsightsService interface {
	GetInsights(ctx context.Context, userID string, forceRefresh bool) (*insights.Result, error)
}

// InsightsHandler handles insight endpoints.
type InsightsHandler struct {
	svc InsightsService
	log zerolog.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(svc InsightsService, log zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{svc: svc, log: log}
}

// GetInsights handles GET /api/insights
func (h *InsightsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	result, err := h.svc.GetInsights(r.Context(), userID, boolParam(r, "force_refresh"))
	if err != nil {
		writeFailure(w, h.log, err, userID, "Failed to load insights")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}
