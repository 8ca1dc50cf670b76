// Package ledger defines the document-store contract the analytics and enrichment
// layers run against: point lookups, range filters over (user, date, type, category),
// grouped summation and single-document writes.
package ledger

import (
	"context"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
)

// Filter restricts a query to a user's transactions. Zero-valued fields do not filter.
type Filter struct {
	UserID string
	// IDs restricts the query to the given transaction ids.
	IDs []string
	// Start and End are inclusive bounds on the transaction date.
	Start *time.Time
	End   *time.Time
	Type  domain.TransactionType
	// Category matches exactly.
	Category string
	// KnownMerchantsOnly drops transactions with an empty or "Unknown" merchant.
	KnownMerchantsOnly bool
}

// Contains reports whether tx satisfies the filter.
func (f Filter) Contains(tx *domain.Transaction) bool {
	if f.UserID != "" && tx.UserID != f.UserID {
		return false
	}
	if len(f.IDs) > 0 && !containsString(f.IDs, tx.TransactionID) {
		return false
	}
	if f.Start != nil && tx.Date.Before(*f.Start) {
		return false
	}
	if f.End != nil && tx.Date.After(*f.End) {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	if f.KnownMerchantsOnly && !tx.HasMerchant() {
		return false
	}
	return true
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// GroupField is a dimension transactions can be grouped by.
type GroupField string

const (
	GroupByYear     GroupField = "year"
	GroupByMonth    GroupField = "month"
	GroupByDay      GroupField = "day"
	GroupByISOWeek  GroupField = "iso_week"
	GroupByType     GroupField = "type"
	GroupByCategory GroupField = "category"
	GroupByMerchant GroupField = "merchant"
)

// AggregateQuery sums amounts per group.
type AggregateQuery struct {
	Filter  Filter
	GroupBy []GroupField
	// OrderByTotalDesc sorts groups by Total descending; otherwise groups come back
	// ordered by their key fields ascending.
	OrderByTotalDesc bool
	// Limit caps the number of groups when positive.
	Limit int
}

// Group is one aggregation bucket. Only the fields named in GroupBy are populated.
type Group struct {
	Year     int
	Month    int
	Day      string // YYYY-MM-DD
	ISOWeek  string // YYYY-Www
	Type     domain.TransactionType
	Category string
	Merchant string

	Total float64
	Count int64
}

// TransactionReader reads stored transactions.
type TransactionReader interface {
	// GetTransaction returns domain.ErrNotFound when the id is unknown.
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
	// ListTransactions returns matching transactions newest first, at most limit when positive.
	ListTransactions(ctx context.Context, filter Filter, limit int) ([]*domain.Transaction, error)
	CountTransactions(ctx context.Context, filter Filter) (int64, error)
}

// Aggregator runs grouping aggregations.
type Aggregator interface {
	Aggregate(ctx context.Context, q AggregateQuery) ([]Group, error)
}

// TransactionWriter mutates stored transactions.
type TransactionWriter interface {
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
	// UpdateEnrichment persists the enrichment fields of tx and nothing else.
	// Each field group is write-once: a nil group is ignored and a group that
	// is already stored is never replaced.
	UpdateEnrichment(ctx context.Context, tx *domain.Transaction) error
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
}

// UserStore holds user profiles.
type UserStore interface {
	// GetUser returns domain.ErrNotFound when the user is unknown.
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpsertUser(ctx context.Context, user *domain.User) error
}

// InsightCacheStore holds at most one insight entry per user.
type InsightCacheStore interface {
	// GetInsightCache returns nil, nil when the user has no entry.
	GetInsightCache(ctx context.Context, userID string) (*domain.InsightCacheEntry, error)
	// UpsertInsightCache replaces the user's entry as a whole.
	UpsertInsightCache(ctx context.Context, entry *domain.InsightCacheEntry) error
}

// Store is the full ledger contract.
type Store interface {
	TransactionReader
	TransactionWriter
	Aggregator
	UserStore
	InsightCacheStore
	Close() error
}
