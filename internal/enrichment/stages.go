package enrichment

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"github.com/dvloznov/finance-analytics/internal/mlclient"
)

const (
	// MinHistoryForScoring is the number of other transactions a user needs
	// before anomaly scoring is attempted.
	MinHistoryForScoring = 5
	// HistoryWindow is how many recent transactions are sent as scoring history.
	HistoryWindow = 100
)

// stage computes one independent enrichment field group for a transaction.
// A stage that has nothing to do returns a nil apply func and a nil error.
type stage interface {
	Name() string
	Run(ctx context.Context, tx *domain.Transaction) (apply func(*domain.Transaction), err error)
}

type categorizeStage struct {
	categorizer Categorizer
	timeout     time.Duration
}

func (s *categorizeStage) Name() string { return "categorize" }

func (s *categorizeStage) Run(ctx context.Context, tx *domain.Transaction) (func(*domain.Transaction), error) {
	if tx.IsCategorized() || strings.TrimSpace(tx.Description) == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.categorizer.Categorize(ctx, mlclient.CategorizeRequest{
		Description:  tx.Description,
		Amount:       tx.Amount,
		MerchantName: tx.MerchantName,
		Type:         string(tx.Type),
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.PredictedCategory) == "" {
		return nil, fmt.Errorf("empty predicted category")
	}

	suggestion := &domain.CategorySuggestion{
		Category:   resp.PredictedCategory,
		Confidence: clamp01(resp.Confidence),
	}
	return func(t *domain.Transaction) { t.Categorization = suggestion }, nil
}

type scoreStage struct {
	store   ledger.TransactionReader
	scorer  Scorer
	timeout time.Duration
}

func (s *scoreStage) Name() string { return "score" }

func (s *scoreStage) Run(ctx context.Context, tx *domain.Transaction) (func(*domain.Transaction), error) {
	if tx.IsScored() {
		return nil, nil
	}

	history, err := s.history(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(history) < MinHistoryForScoring {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.scorer.ScoreTransaction(ctx, mlclient.ScoreRequest{
		UserID:                 tx.UserID,
		NewTransaction:         mlclient.FromDomain(tx),
		HistoricalTransactions: mlclient.FromDomainList(history),
	})
	if err != nil {
		return nil, err
	}

	assessment := &domain.AnomalyAssessment{
		Score:     clamp01(resp.AnomalyScore),
		IsAnomaly: resp.IsAnomaly,
		Reason:    resp.Reason,
	}
	return func(t *domain.Transaction) { t.Anomaly = assessment }, nil
}

// history returns the user's most recent transactions other than tx.
func (s *scoreStage) history(ctx context.Context, tx *domain.Transaction) ([]*domain.Transaction, error) {
	recent, err := s.store.ListTransactions(ctx, ledger.Filter{UserID: tx.UserID}, HistoryWindow+1)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	history := make([]*domain.Transaction, 0, len(recent))
	for _, h := range recent {
		if h.TransactionID != tx.TransactionID {
			history = append(history, h)
		}
	}
	if len(history) > HistoryWindow {
		history = history[:HistoryWindow]
	}
	return history, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
