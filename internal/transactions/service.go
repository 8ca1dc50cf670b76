// Package transactions is the write path for transactions and user profiles.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Enricher is notified after a transaction has been stored.
type Enricher interface {
	OnCreate(ctx context.Context, tx *domain.Transaction)
}

// Store is the ledger surface the service writes through.
type Store interface {
	ledger.TransactionReader
	ledger.TransactionWriter
	ledger.UserStore
}

// CreateInput carries the caller-provided fields of a new transaction.
type CreateInput struct {
	Date         time.Time
	Amount       float64
	Type         domain.TransactionType
	Category     string
	MerchantName string
	Description  string
	PaymentMode  domain.PaymentMode
	Recurring    bool
}

// Service creates, lists and deletes transactions and maintains user profiles.
type Service struct {
	store    Store
	enricher Enricher
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// NewService creates a Service. enricher may be nil.
func NewService(store Store, enricher Enricher, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		enricher: enricher,
		log:      log.With().Str("component", "transactions").Logger(),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Create validates and stores a transaction, then hands it to enrichment.
// The stored transaction is returned before enrichment has happened.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		TransactionID: s.newID(),
		UserID:        strings.TrimSpace(userID),
		Date:          in.Date,
		Amount:        in.Amount,
		Type:          in.Type,
		Category:      strings.TrimSpace(in.Category),
		MerchantName:  strings.TrimSpace(in.MerchantName),
		Description:   strings.TrimSpace(in.Description),
		PaymentMode:   in.PaymentMode,
		Recurring:     in.Recurring,
		CreatedAt:     s.now().UTC(),
	}
	if tx.PaymentMode == "" {
		tx.PaymentMode = domain.PaymentModeOther
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("Create: insert: %w", err)
	}

	s.log.Info().
		Str("user_id", tx.UserID).
		Str("transaction_id", tx.TransactionID).
		Str("type", string(tx.Type)).
		Msg("transaction created")

	if s.enricher != nil {
		s.enricher.OnCreate(ctx, tx)
	}
	return tx, nil
}

// List returns the user's transactions newest first.
func (s *Service) List(ctx context.Context, userID string, start, end *time.Time, limit int) ([]*domain.Transaction, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "is required")
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, domain.NewValidationError("start_date", "must not be after end_date")
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	txs, err := s.store.ListTransactions(ctx, ledger.Filter{UserID: userID, Start: start, End: end}, limit)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return txs, nil
}

// Delete removes one of the user's transactions.
func (s *Service) Delete(ctx context.Context, userID, transactionID string) error {
	if userID == "" {
		return domain.NewValidationError("user_id", "is required")
	}
	if transactionID == "" {
		return domain.NewValidationError("transaction_id", "is required")
	}
	if err := s.store.DeleteTransaction(ctx, userID, transactionID); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	s.log.Info().Str("user_id", userID).Str("transaction_id", transactionID).Msg("transaction deleted")
	return nil
}

// GetUser returns a stored user profile.
func (s *Service) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}
	return u, nil
}

// UpsertUser creates or replaces a user profile, keeping the original creation time.
func (s *Service) UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	stored := *user
	stored.CreatedAt = now
	stored.UpdatedAt = now

	existing, err := s.store.GetUser(ctx, user.UserID)
	switch {
	case err == nil:
		stored.CreatedAt = existing.CreatedAt
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("UpsertUser: load: %w", err)
	}

	if err := s.store.UpsertUser(ctx, &stored); err != nil {
		return nil, fmt.Errorf("UpsertUser: %w", err)
	}
	return &stored, nil
}
