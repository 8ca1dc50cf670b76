package enrichment

import (
	"context"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"github.com/dvloznov/finance-analytics/internal/mlclient"
)

// Categorizer is the categorization half of the ML service.
type Categorizer interface {
	Categorize(ctx context.Context, req mlclient.CategorizeRequest) (*mlclient.CategorizeResponse, error)
}

// Scorer is the anomaly-scoring half of the ML service.
type Scorer interface {
	ScoreTransaction(ctx context.Context, req mlclient.ScoreRequest) (*mlclient.ScoreResponse, error)
}

// Store is the ledger surface enrichment needs.
type Store interface {
	ledger.TransactionReader
	UpdateEnrichment(ctx context.Context, tx *domain.Transaction) error
}
