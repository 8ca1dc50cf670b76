// Package enrichment attaches categorization and anomaly metadata to stored
// transactions, on creation through the job queue and in bulk through Backfill.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/jobs"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultCallTimeout bounds each ML service call.
const DefaultCallTimeout = 5 * time.Second

// BackfillResult reports what a Backfill pass did.
type BackfillResult struct {
	EnrichedCount int `json:"enrichedCount"`
	SkippedCount  int `json:"skippedCount"`
	FailedCount   int `json:"failedCount"`
	TotalCount    int `json:"totalCount"`
}

// ScheduleResult reports what ScheduleBackfill queued.
type ScheduleResult struct {
	ScheduledCount int      `json:"scheduledCount"`
	SkippedCount   int      `json:"skippedCount"`
	FailedCount    int      `json:"failedCount"`
	TotalCount     int      `json:"totalCount"`
	JobIDs         []string `json:"jobIds"`
}

// ErrNoPublisher is returned by ScheduleBackfill when no job queue is configured.
var ErrNoPublisher = errors.New("no job publisher configured")

// Orchestrator runs the enrichment stages and persists their results.
type Orchestrator struct {
	store     Store
	publisher jobs.Publisher
	stages    []stage
	log       zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*config)

type config struct {
	timeout   time.Duration
	publisher jobs.Publisher
}

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPublisher routes OnCreate through a job queue. Without one OnCreate only logs.
func WithPublisher(p jobs.Publisher) Option {
	return func(c *config) { c.publisher = p }
}

// NewOrchestrator wires the stages against the ML service clients.
func NewOrchestrator(store Store, categorizer Categorizer, scorer Scorer, log zerolog.Logger, opts ...Option) *Orchestrator {
	cfg := config{timeout: DefaultCallTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Orchestrator{
		store:     store,
		publisher: cfg.publisher,
		stages: []stage{
			&categorizeStage{categorizer: categorizer, timeout: cfg.timeout},
			&scoreStage{store: store, scorer: scorer, timeout: cfg.timeout},
		},
		log: log.With().Str("component", "enrichment").Logger(),
	}
}

// OnCreate schedules enrichment for a freshly stored transaction. It never fails
// the caller; scheduling problems are logged.
func (o *Orchestrator) OnCreate(ctx context.Context, tx *domain.Transaction) {
	log := o.log.With().Str("user_id", tx.UserID).Str("transaction_id", tx.TransactionID).Logger()
	if o.publisher == nil {
		log.Warn().Msg("no job publisher configured, transaction left for backfill")
		return
	}

	job := &jobs.EnrichTransactionJob{TransactionID: tx.TransactionID, UserID: tx.UserID}
	if err := o.publisher.PublishEnrichTransaction(ctx, job); err != nil {
		log.Warn().Err(err).Msg("enqueueing enrichment job")
		return
	}
	log.Debug().Str("job_id", job.JobID).Msg("enrichment job enqueued")
}

// HandleJob is the jobs.JobHandler for enrichment jobs. Only store failures are
// returned, so the queue retries those and nothing else.
func (o *Orchestrator) HandleJob(ctx context.Context, job jobs.Job) error {
	ej, ok := job.(*jobs.EnrichTransactionJob)
	if !ok {
		return fmt.Errorf("HandleJob: unexpected job type %s", job.GetType())
	}

	tx, err := o.store.GetTransaction(ctx, ej.TransactionID)
	if errors.Is(err, domain.ErrNotFound) {
		o.log.Info().Str("transaction_id", ej.TransactionID).Msg("transaction deleted before enrichment")
		return nil
	}
	if err != nil {
		return fmt.Errorf("HandleJob: loading transaction: %w", err)
	}

	if _, err := o.Enrich(ctx, tx); err != nil {
		return fmt.Errorf("HandleJob: %w", err)
	}
	return nil
}

// Enrich runs every stage that still has work for tx and persists the merged
// result if anything changed. Stage failures are logged and absorbed; the
// returned error is only ever a persistence failure.
func (o *Orchestrator) Enrich(ctx context.Context, tx *domain.Transaction) (changed bool, err error) {
	applies := make([]func(*domain.Transaction), len(o.stages))

	var g errgroup.Group
	for i, st := range o.stages {
		g.Go(func() error {
			apply, err := st.Run(ctx, tx)
			if err != nil {
				o.log.Warn().
					Str("user_id", tx.UserID).
					Str("transaction_id", tx.TransactionID).
					Str("stage", st.Name()).
					Err(err).
					Msg("enrichment stage failed")
				return nil
			}
			applies[i] = apply
			return nil
		})
	}
	_ = g.Wait()

	// Only the groups produced by this pass are sent; tx may be a stale copy.
	patch := &domain.Transaction{TransactionID: tx.TransactionID, UserID: tx.UserID}
	for _, apply := range applies {
		if apply != nil {
			apply(patch)
			changed = true
		}
	}
	if !changed {
		return false, nil
	}

	if err := o.store.UpdateEnrichment(ctx, patch); err != nil {
		return false, fmt.Errorf("Enrich: persisting %s: %w", tx.TransactionID, err)
	}
	if patch.Categorization != nil {
		tx.Categorization = patch.Categorization
	}
	if patch.Anomaly != nil {
		tx.Anomaly = patch.Anomaly
	}
	return true, nil
}

// Backfill enriches the given transactions, or every transaction of the user when
// ids is empty. Transactions are processed sequentially in store order and
// one transaction's failure never aborts the pass.
func (o *Orchestrator) Backfill(ctx context.Context, userID string, ids []string) (*BackfillResult, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "is required")
	}

	txs, err := o.store.ListTransactions(ctx, ledger.Filter{UserID: userID, IDs: ids}, 0)
	if err != nil {
		return nil, fmt.Errorf("Backfill: listing transactions: %w", err)
	}

	result := &BackfillResult{TotalCount: len(txs)}
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("Backfill: %w", err)
		}

		changed, err := o.Enrich(ctx, tx)
		switch {
		case err != nil:
			result.FailedCount++
			o.log.Warn().Str("user_id", userID).Str("transaction_id", tx.TransactionID).Err(err).Msg("backfill write failed")
		case changed:
			result.EnrichedCount++
		default:
			result.SkippedCount++
		}
	}

	o.log.Info().
		Str("user_id", userID).
		Int("enriched", result.EnrichedCount).
		Int("skipped", result.SkippedCount).
		Int("failed", result.FailedCount).
		Int("total", result.TotalCount).
		Msg("backfill complete")
	return result, nil
}

// ScheduleBackfill is the asynchronous form of Backfill: it publishes one
// enrichment job per transaction that still has an unset field group and
// returns without calling the ML service.
func (o *Orchestrator) ScheduleBackfill(ctx context.Context, userID string, ids []string) (*ScheduleResult, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "is required")
	}
	if o.publisher == nil {
		return nil, fmt.Errorf("ScheduleBackfill: %w", ErrNoPublisher)
	}

	txs, err := o.store.ListTransactions(ctx, ledger.Filter{UserID: userID, IDs: ids}, 0)
	if err != nil {
		return nil, fmt.Errorf("ScheduleBackfill: listing transactions: %w", err)
	}

	result := &ScheduleResult{TotalCount: len(txs), JobIDs: []string{}}
	for _, tx := range txs {
		if tx.IsCategorized() && tx.IsScored() {
			result.SkippedCount++
			continue
		}
		job := &jobs.EnrichTransactionJob{TransactionID: tx.TransactionID, UserID: userID}
		if err := o.publisher.PublishEnrichTransaction(ctx, job); err != nil {
			result.FailedCount++
			o.log.Warn().Str("user_id", userID).Str("transaction_id", tx.TransactionID).Err(err).Msg("scheduling backfill job")
			continue
		}
		result.ScheduledCount++
		result.JobIDs = append(result.JobIDs, job.JobID)
	}

	o.log.Info().
		Str("user_id", userID).
		Int("scheduled", result.ScheduledCount).
		Int("skipped", result.SkippedCount).
		Int("failed", result.FailedCount).
		Int("total", result.TotalCount).
		Msg("backfill scheduled")
	return result, nil
}
