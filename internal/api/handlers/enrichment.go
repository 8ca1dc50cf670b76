package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/enrichment"
	"github.com/rs/zerolog"
)

// MaxSyncBackfillIDs is the largest explicit id batch enriched inside the
// request. Larger batches, and requests without ids, are queued as jobs.
const MaxSyncBackfillIDs = 10

// Backfiller enriches existing transactions in bulk.
type Backfiller interface {
	Backfill(ctx context.Context, userID string, ids []string) (*enrichment.BackfillResult, error)
	ScheduleBackfill(ctx context.Context, userID string, ids []string) (*enrichment.ScheduleResult, error)
}

// EnrichmentHandler handles enrichment endpoints.
type EnrichmentHandler struct {
	svc Backfiller
	log zerolog.Logger
}

// NewEnrichmentHandler creates a new enrichment handler.
func NewEnrichmentHandler(svc Backfiller, log zerolog.Logger) *EnrichmentHandler {
	return &EnrichmentHandler{svc: svc, log: log}
}

// Backfill handles POST /api/enrichment/backfill. Small id batches answer 200
// with the pass counts; everything else answers 202 with the queued jobs.
func (h *EnrichmentHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID         string   `json:"user_id"`
		TransactionIDs []string `json:"transaction_ids"`
		Async          bool     `json:"async"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteServiceError(w, err, "")
		return
	}
	if req.UserID == "" {
		req.UserID = middleware.UserID(r)
	}
	if err := requireUser(req.UserID); err != nil {
		middleware.WriteServiceError(w, err, "")
		return
	}

	if req.Async || boolParam(r, "async") || len(req.TransactionIDs) == 0 || len(req.TransactionIDs) > MaxSyncBackfillIDs {
		scheduled, err := h.svc.ScheduleBackfill(r.Context(), req.UserID, req.TransactionIDs)
		if err != nil {
			writeFailure(w, h.log, err, req.UserID, "Failed to schedule backfill")
			return
		}
		middleware.WriteJSON(w, http.StatusAccepted, scheduled)
		return
	}

	result, err := h.svc.Backfill(r.Context(), req.UserID, req.TransactionIDs)
	if err != nil {
		writeFailure(w, h.log, err, req.UserID, "Failed to backfill enrichment")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}
