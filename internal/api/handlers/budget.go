package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/mlclient"
	"github.com/rs/zerolog"
)

// BudgetService produces budget allocation plans.
type BudgetService interface {
	Optimize(ctx context.Context, userID string, goals []domain.SavingsGoal, minimumExpenseRatio *float64) (*mlclient.OptimizeResponse, error)
}

// BudgetHandler handles budget endpoints.
type BudgetHandler struct {
	svc BudgetService
	log zerolog.Logger
}

// NewBudgetHandler creates a new budget handler.
func NewBudgetHandler(svc BudgetService, log zerolog.Logger) *BudgetHandler {
	return &BudgetHandler{svc: svc, log: log}
}

// Optimize handles POST /api/budget/optimize
func (h *BudgetHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID              string               `json:"user_id"`
		Goals               []domain.SavingsGoal `json:"goals"`
		MinimumExpenseRatio *float64             `json:"minimum_expense_ratio"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteServiceError(w, err, "")
		return
	}
	if req.UserID == "" {
		req.UserID = middleware.UserID(r)
	}

	plan, err := h.svc.Optimize(r.Context(), req.UserID, req.Goals, req.MinimumExpenseRatio)
	if err != nil {
		writeFailure(w, h.log, err, req.UserID, "Budget optimization failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, plan)
}
