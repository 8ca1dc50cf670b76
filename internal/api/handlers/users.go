package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/rs/zerolog"
)

// UserService maintains user profiles.
type UserService interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error)
}

// UsersHandler handles user profile endpoints.
type UsersHandler struct {
	svc UserService
	log zerolog.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(svc UserService, log zerolog.Logger) *UsersHandler {
	return &UsersHandler{svc: svc, log: log}
}

// GetUser handles GET /api/users/{id}
func (h *UsersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	user, err := h.svc.GetUser(r.Context(), userID)
	if err != nil {
		writeFailure(w, h.log, err, userID, "Failed to load user")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, user)
}

// PutUser handles PUT /api/users/{id}
func (h *UsersHandler) PutUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string  `json:"name"`
		Email         string  `json:"email"`
		MonthlyIncome float64 `json:"monthly_income"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteServiceError(w, err, "")
		return
	}

	userID := r.PathValue("id")
	user, err := h.svc.UpsertUser(r.Context(), &domain.User{
		UserID:        userID,
		Name:          req.Name,
		Email:         req.Email,
		MonthlyIncome: req.MonthlyIncome,
	})
	if err != nil {
		writeFailure(w, h.log, err, userID, "Failed to save user")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, user)
}
