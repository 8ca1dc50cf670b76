package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/rs/zerolog"
)

// MLAnalysisService forwards analyses to the ML service.
type MLAnalysisService interface {
	Cluster(ctx context.Context, userID string, nClusters int) (json.RawMessage, error)
	DetectAnomalies(ctx context.Context, userID string, contamination float64) (json.RawMessage, error)
	Forecast(ctx context.Context, userID string, forecastDays int) (json.RawMessage, error)
}

// MLHandler handles ML passthrough endpoints.
type MLHandler struct {
	svc MLAnalysisService
	log zerolog.Logger
}

// NewMLHandler creates a new ML passthrough handler.
func NewMLHandler(svc MLAnalysisService, log zerolog.Logger) *MLHandler {
	return &MLHandler{svc: svc, log: log}
}

type mlRequest struct {
	UserID        string  `json:"user_id"`
	NClusters     int     `json:"n_clusters"`
	Contamination float64 `json:"contamination"`
	ForecastDays  int     `json:"forecast_days"`
}

// Analyze handles POST /api/ml/{analysis}
func (h *MLHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req mlRequest
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteServiceError(w, err, "")
		return
	}
	if req.UserID == "" {
		req.UserID = middleware.UserID(r)
	}

	var (
		out json.RawMessage
		err error
	)
	switch analysis := r.PathValue("analysis"); analysis {
	case "cluster":
		out, err = h.svc.Cluster(r.Context(), req.UserID, req.NClusters)
	case "anomalies":
		out, err = h.svc.DetectAnomalies(r.Context(), req.UserID, req.Contamination)
	case "forecast":
		out, err = h.svc.Forecast(r.Context(), req.UserID, req.ForecastDays)
	default:
		middleware.WriteError(w, http.StatusNotFound, "Unknown analysis "+analysis)
		return
	}
	if err != nil {
		writeFailure(w, h.log, err, req.UserID, "ML analysis failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}
