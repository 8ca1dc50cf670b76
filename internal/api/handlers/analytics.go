package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dvloznov/finance-analytics/internal/analytics"
	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/rs/zerolog"
)

const maxTopMerchants = 50

// AnalyticsService is the read-only analytics surface.
type AnalyticsService interface {
	MonthlySpending(ctx context.Context, userID string, year int) ([]analytics.MonthlyTotals, error)
	CategoryBreakdown(ctx context.Context, userID string, start, end *time.Time) (*analytics.CategoryBreakdown, error)
	IncomeVsExpense(ctx context.Context, userID string, start, end *time.Time) (*analytics.IncomeExpenseSummary, error)
	TopMerchants(ctx context.Context, userID string, limit int, start, end *time.Time) ([]analytics.MerchantSpend, error)
	SpendingTrend(ctx context.Context, userID string, start, end *time.Time, granularity analytics.Granularity) ([]analytics.TrendPoint, error)
}

// AnalyticsHandler handles analytics endpoints.
type AnalyticsHandler struct {
	svc AnalyticsService
	log zerolog.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(svc AnalyticsService, log zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, log: log}
}

// MonthlySpending handles GET /api/analytics/monthly
func (h *AnalyticsHandler) MonthlySpending(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if err := requireUser(userID); err != nil {
		middleware.WriteServiceError(w, err, "")
		return
	}
	year, err := intParam(r, "year", time.Now().Year())
	if err != nil {
		middleware.WriteServiceError(w, err, "")
		return
	}

	months, err := h.svc.MonthlySpending(r.Context(), userID, year)
	if err != nil {
		writeFailure(w, h.log, err, userID, "Failed to compute monthly spending")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"userId": userID,
		"year":   year,
		"months": months,
	})
}

// CategoryBreakdown handles GET /api/analytics/categories
func (h *AnalyticsHandler) CategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	userID, start, end, ok := h.windowParams(w, r)
	if !ok {
		return
	}

	breakdown, err := h.svc.CategoryBreakdown(r.Context(), userID, start, end)
	if err != nil {
		writeFailure(w, h.log, err, userID, "Failed to compute category breakdown")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, breakdown)
}

type incomeExpenseResponse struct {
	*analytics.IncomeExpenseSummary
	Health string `json:"health"`
}

// IncomeVsExpense handles GET /api/analytics/income-expense
func (h *AnalyticsHandler) IncomeVsExpense(w http.ResponseWriter, r *http.Request) {
	userID, start, end, ok := h.windowParams(w, r)
	if !ok {
		return
	}

	summary, err := h.svc.IncomeVsExpense(r.Context(), userID, start, end)
	if err != nil {
		writeFailure(w, h.log, err, userID, "Failed to compute income vs expense")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, incomeExpenseResponse{
		IncomeExpenseSummary: summary,
		Health:               analytics.FinancialHealth(summary.SavingsRate),
	})
}

// TopMerchants handles GET /api/analytics/top-merchants
func (h *AnalyticsHandler) TopMerchants(w http.ResponseWriter, r *http.Request) {
	userID, start, end, ok := h.windowParams(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r, "limit", analytics.DefaultTopMerchantsLimit)
	if err == nil && (limit < 1 || limit > maxTopMerchants) {
		err = domain.NewValidationError("limit", "must be between 1 and 50")
	}
	if err != nil {
		middleware.WriteServiceError(w, err, "")
		return
	}

	merchants, err := h.svc.TopMerchants(r.Context(), userID, limit, start, end)
	if err != nil {
		writeFailure(w, h.log, err, userID, "Failed to compute top merchants")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"merchants": merchants,
		"count":     len(merchants),
	})
}

// SpendingTrend handles GET /api/analytics/trend
func (h *AnalyticsHandler) SpendingTrend(w http.ResponseWriter, r *http.Request) {
	userID, start, end, ok := h.windowParams(w, r)
	if !ok {
		return
	}
	granularity, err := analytics.ParseGranularity(r.URL.Query().Get("group_by"))
	if err != nil {
		middleware.WriteServiceError(w, err, "")
		return
	}

	trend, err := h.svc.SpendingTrend(r.Context(), userID, start, end, granularity)
	if err != nil {
		writeFailure(w, h.log, err, userID, "Failed to compute spending trend")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"groupBy": granularity,
		"trend":   trend,
	})
}

func (h *AnalyticsHandler) windowParams(w http.ResponseWriter, r *http.Request) (string, *time.Time, *time.Time, bool) {
	userID := middleware.UserID(r)
	if err := requireUser(userID); err != nil {
		middleware.WriteServiceError(w, err, "")
		return "", nil, nil, false
	}
	start, end, err := dateRange(r)
	if err != nil {
		middleware.WriteServiceError(w, err, "")
		return "", nil, nil, false
	}
	return userID, start, end, true
}
