// Package insights produces narrative financial insights per user and caches
// them for a fixed TTL.
package insights

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/finance-analytics/internal/archive"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"github.com/dvloznov/finance-analytics/internal/llm"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// RecentWindow is how many of the newest transactions feed the prompt.
	RecentWindow = 300
	// DefaultRateLimitRetryDelay is the wait before the single retry after a rate limit.
	DefaultRateLimitRetryDelay = 8 * time.Second
)

// Store is the ledger surface the manager needs.
type Store interface {
	ListTransactions(ctx context.Context, filter ledger.Filter, limit int) ([]*domain.Transaction, error)
	ledger.InsightCacheStore
}

// Result is what GetInsights returns.
type Result struct {
	Insights    []domain.Insight `json:"insights"`
	Cached      bool             `json:"cached"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// Manager serves insights from cache or regenerates them through the LLM.
type Manager struct {
	store     Store
	completer llm.Completer
	archiver  archive.Archiver
	log       zerolog.Logger

	retryDelay time.Duration
	ttl        time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error

	inflight singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithArchiver stores every raw model response, best effort.
func WithArchiver(a archive.Archiver) Option {
	return func(m *Manager) { m.archiver = a }
}

// WithRateLimitRetryDelay overrides DefaultRateLimitRetryDelay.
func WithRateLimitRetryDelay(d time.Duration) Option {
	return func(m *Manager) { m.retryDelay = d }
}

// WithTTL overrides domain.InsightTTL for new cache entries.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) { m.ttl = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager.
func NewManager(store Store, completer llm.Completer, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		completer:  completer,
		log:        log.With().Str("component", "insights").Logger(),
		retryDelay: DefaultRateLimitRetryDelay,
		ttl:        domain.InsightTTL,
		now:        time.Now,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetInsights returns the user's insights. Upstream failures never surface; the
// only error is a missing user id. Concurrent calls for the same user and
// refresh mode share one generation.
func (m *Manager) GetInsights(ctx context.Context, userID string, forceRefresh bool) (*Result, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "is required")
	}

	key := userID
	if forceRefresh {
		key += ":force"
	}
	v, _, _ := m.inflight.Do(key, func() (any, error) {
		// Shared by every waiter, so it must outlive the first caller.
		return m.getInsights(context.WithoutCancel(ctx), userID, forceRefresh), nil
	})

	res := v.(*Result)
	return &Result{
		Insights:    append([]domain.Insight(nil), res.Insights...),
		Cached:      res.Cached,
		GeneratedAt: res.GeneratedAt,
	}, nil
}

func (m *Manager) getInsights(ctx context.Context, userID string, forceRefresh bool) *Result {
	log := m.log.With().Str("user_id", userID).Logger()

	if !forceRefresh {
		entry, err := m.store.GetInsightCache(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Msg("reading insight cache")
		}
		if entry.Usable(m.now()) {
			return &Result{Insights: entry.Insights, Cached: true, GeneratedAt: entry.GeneratedAt}
		}
	}

	txs, err := m.store.ListTransactions(ctx, ledger.Filter{UserID: userID}, RecentWindow)
	if err != nil {
		log.Warn().Err(err).Msg("loading transactions for insights")
		return m.fresh(fallbackInsights())
	}
	if len(txs) == 0 {
		return m.fresh(getStartedInsights())
	}

	raw, err := m.complete(ctx, log, buildPrompt(summarize(txs)))
	if err != nil {
		log.Warn().Err(err).Msg("generating insights, serving fallback")
		return m.fresh(fallbackInsights())
	}

	generatedAt := m.now()
	m.archive(ctx, log, userID, generatedAt, raw)

	list, dropped, err := parseInsights(raw)
	if err != nil {
		log.Warn().Err(err).Msg("malformed insight response, serving fallback")
		return m.fresh(fallbackInsights())
	}
	if dropped > 0 {
		log.Info().Int("dropped", dropped).Msg("dropped insights with invalid shape")
	}
	if len(list) == 0 {
		list = regularSpendingInsight()
	}

	entry := domain.NewInsightCacheEntry(userID, list, generatedAt)
	entry.ExpireAt = generatedAt.Add(m.ttl)
	if err := m.store.UpsertInsightCache(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("writing insight cache")
	}
	return &Result{Insights: list, GeneratedAt: generatedAt}
}

// complete calls the model, retrying once after a rate limit.
func (m *Manager) complete(ctx context.Context, log zerolog.Logger, prompt string) (string, error) {
	raw, err := m.completer.Complete(ctx, prompt)
	if !errors.Is(err, llm.ErrRateLimited) {
		return raw, err
	}

	log.Info().Dur("delay", m.retryDelay).Msg("llm rate limited, retrying once")
	if err := m.sleep(ctx, m.retryDelay); err != nil {
		return "", err
	}
	return m.completer.Complete(ctx, prompt)
}

func (m *Manager) archive(ctx context.Context, log zerolog.Logger, userID string, at time.Time, raw string) {
	if m.archiver == nil {
		return
	}
	uri, err := m.archiver.Archive(ctx, userID, at, raw)
	if err != nil {
		log.Warn().Err(err).Msg("archiving raw insight response")
		return
	}
	log.Debug().Str("uri", uri).Msg("archived raw insight response")
}

func (m *Manager) fresh(list []domain.Insight) *Result {
	return &Result{Insights: list, GeneratedAt: m.now()}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
