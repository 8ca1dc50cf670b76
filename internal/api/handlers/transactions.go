package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/transactions"
	"github.com/rs/zerolog"
)

// TransactionService is the transaction write and read path.
type TransactionService interface {
	Create(ctx context.Context, userID string, in transactions.CreateInput) (*domain.Transaction, error)
	List(ctx context.Context, userID string, start, end *time.Time, limit int) ([]*domain.Transaction, error)
	Delete(ctx context.Context, userID, transactionID string) error
}

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	svc TransactionService
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc TransactionService, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{svc: svc, log: log}
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string  `json:"user_id"`
		Date         string  `json:"date"`
		Amount       float64 `json:"amount"`
		Type         string  `json:"type"`
		Category     string  `json:"category"`
		MerchantName string  `json:"merchant_name"`
		Description  string  `json:"description"`
		PaymentMode  string  `json:"payment_mode"`
		Recurring    bool    `json:"recurring"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteServiceError(w, err, "")
		return
	}
	if req.UserID == "" {
		req.UserID = middleware.UserID(r)
	}

	date, err := parseTransactionDate(req.Date)
	if err != nil {
		middleware.WriteServiceError(w, err, "")
		return
	}

	tx, err := h.svc.Create(r.Context(), req.UserID, transactions.CreateInput{
		Date:         date,
		Amount:       req.Amount,
		Type:         domain.TransactionType(req.Type),
		Category:     req.Category,
		MerchantName: req.MerchantName,
		Description:  req.Description,
		PaymentMode:  domain.PaymentMode(req.PaymentMode),
		Recurring:    req.Recurring,
	})
	if err != nil {
		writeFailure(w, h.log, err, req.UserID, "Failed to create transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	start, end, err := dateRange(r)
	if err != nil {
		middleware.WriteServiceError(w, err, "")
		return
	}
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		middleware.WriteServiceError(w, err, "")
		return
	}

	txs, err := h.svc.List(r.Context(), userID, start, end, limit)
	if err != nil {
		writeFailure(w, h.log, err, userID, "Failed to query transactions")
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if err := h.svc.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeFailure(w, h.log, err, userID, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseTransactionDate accepts YYYY-MM-DD or RFC3339.
func parseTransactionDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, domain.NewValidationError("date", "is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, domain.NewValidationError("date", "must be YYYY-MM-DD or RFC3339")
	}
	return t, nil
}
