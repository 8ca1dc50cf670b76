package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
)

// Store is an in-memory ledger.Store.
// It is safe for concurrent use; records are copied on the way in and out.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
	users        map[string]*domain.User
	insights     map[string]*domain.InsightCacheEntry
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		transactions: make(map[string]*domain.Transaction),
		users:        make(map[string]*domain.User),
		insights:     make(map[string]*domain.InsightCacheEntry),
	}
}

// InsertTransaction implements ledger.TransactionWriter.
func (s *Store) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.TransactionID == "" {
		return fmt.Errorf("InsertTransaction: transaction ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.TransactionID]; exists {
		return fmt.Errorf("InsertTransaction: transaction %s already exists", tx.TransactionID)
	}
	s.transactions[tx.TransactionID] = cloneTransaction(tx)
	return nil
}

// UpdateEnrichment implements ledger.TransactionWriter.
func (s *Store) UpdateEnrichment(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.transactions[tx.TransactionID]
	if !ok {
		return fmt.Errorf("UpdateEnrichment: transaction %s: %w", tx.TransactionID, domain.ErrNotFound)
	}
	enriched := cloneTransaction(tx)
	if stored.Categorization == nil {
		stored.Categorization = enriched.Categorization
	}
	if stored.Anomaly == nil {
		stored.Anomaly = enriched.Anomaly
	}
	return nil
}

// DeleteTransaction implements ledger.TransactionWriter.
func (s *Store) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.transactions[transactionID]
	if !ok || stored.UserID != userID {
		return fmt.Errorf("DeleteTransaction: transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	delete(s.transactions, transactionID)
	return nil
}

// GetTransaction implements ledger.TransactionReader.
func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[transactionID]
	if !ok {
		return nil, fmt.Errorf("GetTransaction: transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	return cloneTransaction(tx), nil
}

// ListTransactions implements ledger.TransactionReader.
func (s *Store) ListTransactions(ctx context.Context, filter ledger.Filter, limit int) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.matching(filter)
	sortNewestFirst(matched)
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	result := make([]*domain.Transaction, 0, len(matched))
	for _, tx := range matched {
		result = append(result, cloneTransaction(tx))
	}
	return result, nil
}

// CountTransactions implements ledger.TransactionReader.
func (s *Store) CountTransactions(ctx context.Context, filter ledger.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.matching(filter))), nil
}

// Aggregate implements ledger.Aggregator.
func (s *Store) Aggregate(ctx context.Context, q ledger.AggregateQuery) ([]ledger.Group, error) {
	if len(q.GroupBy) == 0 {
		return nil, fmt.Errorf("Aggregate: at least one group field is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := make(map[ledger.Group]*ledger.Group)
	for _, tx := range s.matching(q.Filter) {
		key, err := groupKey(tx, q.GroupBy)
		if err != nil {
			return nil, fmt.Errorf("Aggregate: %w", err)
		}
		b, ok := buckets[key]
		if !ok {
			g := key
			b = &g
			buckets[key] = b
		}
		b.Total += tx.Amount
		b.Count++
	}

	groups := make([]ledger.Group, 0, len(buckets))
	for _, b := range buckets {
		groups = append(groups, *b)
	}
	sort.Slice(groups, func(i, j int) bool {
		if q.OrderByTotalDesc && groups[i].Total != groups[j].Total {
			return groups[i].Total > groups[j].Total
		}
		return keyLess(groups[i], groups[j])
	})
	if q.Limit > 0 && q.Limit < len(groups) {
		groups = groups[:q.Limit]
	}
	return groups, nil
}

// GetUser implements ledger.UserStore.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("GetUser: user %s: %w", userID, domain.ErrNotFound)
	}
	userCopy := *u
	return &userCopy, nil
}

// UpsertUser implements ledger.UserStore.
func (s *Store) UpsertUser(ctx context.Context, user *domain.User) error {
	if user.UserID == "" {
		return fmt.Errorf("UpsertUser: user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userCopy := *user
	s.users[user.UserID] = &userCopy
	return nil
}

// GetInsightCache implements ledger.InsightCacheStore.
func (s *Store) GetInsightCache(ctx context.Context, userID string) (*domain.InsightCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.insights[userID]
	if !ok {
		return nil, nil
	}
	return cloneEntry(entry), nil
}

// UpsertInsightCache implements ledger.InsightCacheStore.
func (s *Store) UpsertInsightCache(ctx context.Context, entry *domain.InsightCacheEntry) error {
	if entry.UserID == "" {
		return fmt.Errorf("UpsertInsightCache: user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.insights[entry.UserID] = cloneEntry(entry)
	return nil
}

// Close implements ledger.Store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) matching(filter ledger.Filter) []*domain.Transaction {
	var matched []*domain.Transaction
	for _, tx := range s.transactions {
		if filter.Contains(tx) {
			matched = append(matched, tx)
		}
	}
	return matched
}

func sortNewestFirst(txs []*domain.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].TransactionID < txs[j].TransactionID
	})
}

func groupKey(tx *domain.Transaction, fields []ledger.GroupField) (ledger.Group, error) {
	var g ledger.Group
	for _, f := range fields {
		switch f {
		case ledger.GroupByYear:
			g.Year = tx.Date.Year()
		case ledger.GroupByMonth:
			g.Month = int(tx.Date.Month())
		case ledger.GroupByDay:
			g.Day = civil.DateOf(tx.Date).String()
		case ledger.GroupByISOWeek:
			year, week := tx.Date.ISOWeek()
			g.ISOWeek = fmt.Sprintf("%04d-W%02d", year, week)
		case ledger.GroupByType:
			g.Type = tx.Type
		case ledger.GroupByCategory:
			g.Category = tx.Category
		case ledger.GroupByMerchant:
			g.Merchant = tx.MerchantName
		default:
			return g, fmt.Errorf("unsupported group field %q", f)
		}
	}
	return g, nil
}

func keyLess(a, b ledger.Group) bool {
	switch {
	case a.Year != b.Year:
		return a.Year < b.Year
	case a.Month != b.Month:
		return a.Month < b.Month
	case a.Day != b.Day:
		return a.Day < b.Day
	case a.ISOWeek != b.ISOWeek:
		return a.ISOWeek < b.ISOWeek
	case a.Type != b.Type:
		return a.Type < b.Type
	case a.Category != b.Category:
		return a.Category < b.Category
	default:
		return a.Merchant < b.Merchant
	}
}

func cloneTransaction(tx *domain.Transaction) *domain.Transaction {
	c := *tx
	if tx.Categorization != nil {
		cat := *tx.Categorization
		c.Categorization = &cat
	}
	if tx.Anomaly != nil {
		an := *tx.Anomaly
		c.Anomaly = &an
	}
	return &c
}

func cloneEntry(e *domain.InsightCacheEntry) *domain.InsightCacheEntry {
	c := *e
	c.Insights = append([]domain.Insight(nil), e.Insights...)
	return &c
}

// Ensure Store implements ledger.Store.
var _ ledger.Store = (*Store)(nil)
