// Package mlanalysis forwards a user's recent history to the ML service's
// clustering, anomaly and forecast analyses and returns their output as-is.
package mlanalysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"github.com/dvloznov/finance-analytics/internal/mlclient"
)

const (
	// HistoryLimit is the number of most recent transactions forwarded.
	HistoryLimit = 1000

	DefaultClusters      = 5
	DefaultContamination = 0.1
	DefaultForecastDays  = 30
)

// ErrUnavailable wraps every failure of the ML service.
var ErrUnavailable = errors.New("ml analysis unavailable")

// Analyzer is the analysis half of the ML service.
type Analyzer interface {
	Cluster(ctx context.Context, req mlclient.ClusterRequest) (json.RawMessage, error)
	DetectAnomalies(ctx context.Context, req mlclient.AnomaliesRequest) (json.RawMessage, error)
	Forecast(ctx context.Context, req mlclient.ForecastRequest) (json.RawMessage, error)
}

type Service struct {
	reader   ledger.TransactionReader
	analyzer Analyzer
}

func NewService(reader ledger.TransactionReader, analyzer Analyzer) *Service {
	return &Service{reader: reader, analyzer: analyzer}
}

// Cluster groups the user's transactions into nClusters spending patterns.
func (s *Service) Cluster(ctx context.Context, userID string, nClusters int) (json.RawMessage, error) {
	if nClusters == 0 {
		nClusters = DefaultClusters
	}
	if nClusters < 2 {
		return nil, domain.NewValidationError("n_clusters", "must be at least 2")
	}
	txs, err := s.history(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Cluster: %w", err)
	}
	out, err := s.analyzer.Cluster(ctx, mlclient.ClusterRequest{UserID: userID, Transactions: txs, NClusters: nClusters})
	if err != nil {
		return nil, fmt.Errorf("Cluster: %w: %w", ErrUnavailable, err)
	}
	return out, nil
}

// DetectAnomalies flags outliers in the user's history.
func (s *Service) DetectAnomalies(ctx context.Context, userID string, contamination float64) (json.RawMessage, error) {
	if contamination == 0 {
		contamination = DefaultContamination
	}
	if contamination < 0 || contamination > 0.5 {
		return nil, domain.NewValidationError("contamination", "must be between 0 and 0.5")
	}
	txs, err := s.history(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("DetectAnomalies: %w", err)
	}
	out, err := s.analyzer.DetectAnomalies(ctx, mlclient.AnomaliesRequest{UserID: userID, Transactions: txs, Contamination: contamination})
	if err != nil {
		return nil, fmt.Errorf("DetectAnomalies: %w: %w", ErrUnavailable, err)
	}
	return out, nil
}

// Forecast projects the user's spending forecastDays ahead.
func (s *Service) Forecast(ctx context.Context, userID string, forecastDays int) (json.RawMessage, error) {
	if forecastDays == 0 {
		forecastDays = DefaultForecastDays
	}
	if forecastDays < 1 || forecastDays > 365 {
		return nil, domain.NewValidationError("forecast_days", "must be between 1 and 365")
	}
	txs, err := s.history(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Forecast: %w", err)
	}
	out, err := s.analyzer.Forecast(ctx, mlclient.ForecastRequest{UserID: userID, Transactions: txs, ForecastDays: forecastDays})
	if err != nil {
		return nil, fmt.Errorf("Forecast: %w: %w", ErrUnavailable, err)
	}
	return out, nil
}

func (s *Service) history(ctx context.Context, userID string) ([]mlclient.Transaction, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "is required")
	}
	txs, err := s.reader.ListTransactions(ctx, ledger.Filter{UserID: userID}, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return mlclient.FromDomainList(txs), nil
}
