package enrichment

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/jobs"
	"github.com/dvloznov/finance-analytics/internal/ledger/memory"
	"github.com/dvloznov/finance-analytics/internal/mlclient"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeML struct {
	CategorizeFunc func(ctx context.Context, req mlclient.CategorizeRequest) (*mlclient.CategorizeResponse, error)
	ScoreFunc      func(ctx context.Context, req mlclient.ScoreRequest) (*mlclient.ScoreResponse, error)

	categorizeCalls atomic.Int32
	scoreCalls      atomic.Int32
}

func (f *fakeML) Categorize(ctx context.Context, req mlclient.CategorizeRequest) (*mlclient.CategorizeResponse, error) {
	f.categorizeCalls.Add(1)
	if f.CategorizeFunc != nil {
		return f.CategorizeFunc(ctx, req)
	}
	return &mlclient.CategorizeResponse{PredictedCategory: "Food & Dining", Confidence: 0.9}, nil
}

func (f *fakeML) ScoreTransaction(ctx context.Context, req mlclient.ScoreRequest) (*mlclient.ScoreResponse, error) {
	f.scoreCalls.Add(1)
	if f.ScoreFunc != nil {
		return f.ScoreFunc(ctx, req)
	}
	return &mlclient.ScoreResponse{AnomalyScore: 0.2, IsAnomaly: false, Reason: "", RiskLevel: "low"}, nil
}

type fakePublisher struct {
	err       error
	published []*jobs.EnrichTransactionJob
}

func (p *fakePublisher) PublishEnrichTransaction(ctx context.Context, job *jobs.EnrichTransactionJob) error {
	if p.err != nil {
		return p.err
	}
	job.JobID = fmt.Sprintf("job-%d", len(p.published)+1)
	p.published = append(p.published, job)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type failingUpdateStore struct {
	*memory.Store
}

func (s failingUpdateStore) UpdateEnrichment(ctx context.Context, tx *domain.Transaction) error {
	return errors.New("write conflict")
}

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTx(id string, offsetDays int) *domain.Transaction {
	return &domain.Transaction{
		TransactionID: id,
		UserID:        "u1",
		Date:          base.AddDate(0, 0, offsetDays),
		Amount:        float64(10 + offsetDays),
		Type:          domain.TransactionTypeExpense,
		Category:      "Food",
		Description:   "coffee " + id,
		MerchantName:  "Cafe",
	}
}

func seed(t *testing.T, s *memory.Store, txs ...*domain.Transaction) {
	t.Helper()
	for _, tx := range txs {
		require.NoError(t, s.InsertTransaction(context.Background(), tx))
	}
}

// seedHistory adds n already enriched transactions so they never need work.
func seedHistory(t *testing.T, s *memory.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		tx := newTx(fmt.Sprintf("hist-%d", i), -30-i)
		tx.Categorization = &domain.CategorySuggestion{Category: "Food", Confidence: 1}
		tx.Anomaly = &domain.AnomalyAssessment{Reason: "baseline"}
		seed(t, s, tx)
	}
}

func newOrchestrator(store Store, ml *fakeML, opts ...Option) *Orchestrator {
	return NewOrchestrator(store, ml, ml, zerolog.Nop(), opts...)
}

func TestBackfill_MixedEnrichmentState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedHistory(t, store, 5)

	full := newTx("full", 0)
	full.Categorization = &domain.CategorySuggestion{Category: "Food", Confidence: 0.8}
	full.Anomaly = &domain.AnomalyAssessment{Score: 0.1, Reason: "normal"}
	halfway := newTx("halfway", 1)
	halfway.Categorization = &domain.CategorySuggestion{Category: "Food", Confidence: 0.8}
	fresh := newTx("fresh", 2)
	seed(t, store, full, halfway, fresh)

	ml := &fakeML{}
	result, err := newOrchestrator(store, ml).Backfill(ctx, "u1", []string{"full", "halfway", "fresh"})
	require.NoError(t, err)

	assert.Equal(t, &BackfillResult{EnrichedCount: 2, SkippedCount: 1, TotalCount: 3}, result)
	assert.EqualValues(t, 1, ml.categorizeCalls.Load(), "only the fresh transaction needs a category")
	assert.EqualValues(t, 2, ml.scoreCalls.Load())

	got, err := store.GetTransaction(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "Food & Dining", got.Categorization.Category)
	require.True(t, got.IsScored())
	assert.Equal(t, 0.2, got.Anomaly.Score)
}

func TestBackfill_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	for i := 0; i < 7; i++ {
		seed(t, store, newTx(fmt.Sprintf("t%d", i), i))
	}

	ml := &fakeML{}
	o := newOrchestrator(store, ml)

	first, err := o.Backfill(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, first.EnrichedCount)

	before, err := store.GetTransaction(ctx, "t3")
	require.NoError(t, err)

	second, err := o.Backfill(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, &BackfillResult{SkippedCount: 7, TotalCount: 7}, second)
	assert.EqualValues(t, 7, ml.categorizeCalls.Load())
	assert.EqualValues(t, 7, ml.scoreCalls.Load())

	after, err := store.GetTransaction(ctx, "t3")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestBackfill_EmptyReasonCountsAsScored(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedHistory(t, store, 10)

	tx := newTx("scored", 0)
	tx.Categorization = &domain.CategorySuggestion{Category: "Food"}
	tx.Anomaly = &domain.AnomalyAssessment{Score: 0, IsAnomaly: false, Reason: ""}
	seed(t, store, tx)

	ml := &fakeML{}
	result, err := newOrchestrator(store, ml).Backfill(ctx, "u1", []string{"scored"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.SkippedCount)
	assert.Zero(t, ml.scoreCalls.Load())
}

func TestBackfill_HistoryThreshold(t *testing.T) {
	tests := []struct {
		name       string
		others     int
		wantScored bool
	}{
		{"four historical transactions", 4, false},
		{"five historical transactions", 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.NewStore()
			seedHistory(t, store, tt.others)

			target := newTx("target", 0)
			target.Categorization = &domain.CategorySuggestion{Category: "Food"}
			seed(t, store, target)

			ml := &fakeML{}
			result, err := newOrchestrator(store, ml).Backfill(ctx, "u1", []string{"target"})
			require.NoError(t, err)

			got, err := store.GetTransaction(ctx, "target")
			require.NoError(t, err)
			assert.Equal(t, tt.wantScored, got.IsScored())
			if tt.wantScored {
				assert.EqualValues(t, 1, ml.scoreCalls.Load())
				assert.Equal(t, 1, result.EnrichedCount)
			} else {
				assert.Zero(t, ml.scoreCalls.Load(), "scoring is skipped, not attempted")
				assert.Equal(t, 1, result.SkippedCount)
				assert.Zero(t, result.FailedCount)
			}
		})
	}
}

func TestBackfill_HistoryExcludesTargetAndIsCapped(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedHistory(t, store, 120)
	seed(t, store, newTx("target", 0))

	var historyLen int
	var sawTarget bool
	ml := &fakeML{
		ScoreFunc: func(ctx context.Context, req mlclient.ScoreRequest) (*mlclient.ScoreResponse, error) {
			historyLen = len(req.HistoricalTransactions)
			for _, h := range req.HistoricalTransactions {
				if h.Date == req.NewTransaction.Date {
					sawTarget = true
				}
			}
			return &mlclient.ScoreResponse{AnomalyScore: 0.9, IsAnomaly: true, Reason: "spike"}, nil
		},
	}
	_, err := newOrchestrator(store, ml).Backfill(ctx, "u1", []string{"target"})
	require.NoError(t, err)

	assert.Equal(t, HistoryWindow, historyLen)
	assert.False(t, sawTarget)
}

func TestBackfill_StageFailuresDoNotAbort(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedHistory(t, store, 5)
	seed(t, store, newTx("bad", 0), newTx("good", 1))

	ml := &fakeML{
		CategorizeFunc: func(ctx context.Context, req mlclient.CategorizeRequest) (*mlclient.CategorizeResponse, error) {
			if req.Description == "coffee bad" {
				return nil, errors.New("ml service down")
			}
			return &mlclient.CategorizeResponse{PredictedCategory: "Coffee", Confidence: 1.4}, nil
		},
		ScoreFunc: func(ctx context.Context, req mlclient.ScoreRequest) (*mlclient.ScoreResponse, error) {
			return nil, errors.New("timeout")
		},
	}
	result, err := newOrchestrator(store, ml).Backfill(ctx, "u1", []string{"bad", "good"})
	require.NoError(t, err)
	assert.Equal(t, &BackfillResult{EnrichedCount: 1, SkippedCount: 1, TotalCount: 2}, result)

	good, err := store.GetTransaction(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, 1.0, good.Categorization.Confidence, "confidence is clamped to [0,1]")
	assert.False(t, good.IsScored(), "failed scoring leaves the transaction unscored")

	bad, err := store.GetTransaction(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, bad.IsCategorized())
}

func TestEnrich_EmptyPredictionIsNotStored(t *testing.T) {
	store := memory.NewStore()
	tx := newTx("t1", 0)
	seed(t, store, tx)

	ml := &fakeML{
		CategorizeFunc: func(ctx context.Context, req mlclient.CategorizeRequest) (*mlclient.CategorizeResponse, error) {
			return &mlclient.CategorizeResponse{PredictedCategory: " "}, nil
		},
	}
	changed, err := newOrchestrator(store, ml).Enrich(context.Background(), tx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.False(t, tx.IsCategorized())
}

func TestEnrich_NoDescriptionSkipsCategorization(t *testing.T) {
	store := memory.NewStore()
	tx := newTx("t1", 0)
	tx.Description = ""
	seed(t, store, tx)

	ml := &fakeML{}
	changed, err := newOrchestrator(store, ml).Enrich(context.Background(), tx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, ml.categorizeCalls.Load())
}

func TestEnrich_CallTimeout(t *testing.T) {
	store := memory.NewStore()
	tx := newTx("t1", 0)
	seed(t, store, tx)

	ml := &fakeML{
		CategorizeFunc: func(ctx context.Context, req mlclient.CategorizeRequest) (*mlclient.CategorizeResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	start := time.Now()
	changed, err := newOrchestrator(store, ml, WithCallTimeout(20*time.Millisecond)).Enrich(context.Background(), tx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBackfill_WriteFailureCounted(t *testing.T) {
	mem := memory.NewStore()
	seed(t, mem, newTx("t1", 0))

	result, err := newOrchestrator(failingUpdateStore{mem}, &fakeML{}).Backfill(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, &BackfillResult{FailedCount: 1, TotalCount: 1}, result)
}

func TestBackfill_RequiresUser(t *testing.T) {
	_, err := newOrchestrator(memory.NewStore(), &fakeML{}).Backfill(context.Background(), "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestOnCreate_PublishesJob(t *testing.T) {
	pub := &fakePublisher{}
	o := newOrchestrator(memory.NewStore(), &fakeML{}, WithPublisher(pub))

	o.OnCreate(context.Background(), newTx("t1", 0))

	require.Len(t, pub.published, 1)
	assert.Equal(t, "t1", pub.published[0].TransactionID)
	assert.Equal(t, "u1", pub.published[0].UserID)
}

func TestOnCreate_SwallowsPublishErrors(t *testing.T) {
	o := newOrchestrator(memory.NewStore(), &fakeML{}, WithPublisher(&fakePublisher{err: jobs.ErrQueueFull}))
	assert.NotPanics(t, func() { o.OnCreate(context.Background(), newTx("t1", 0)) })

	o = newOrchestrator(memory.NewStore(), &fakeML{})
	assert.NotPanics(t, func() { o.OnCreate(context.Background(), newTx("t1", 0)) })
}

func TestHandleJob(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seed(t, store, newTx("t1", 0))
	o := newOrchestrator(store, &fakeML{})

	require.NoError(t, o.HandleJob(ctx, &jobs.EnrichTransactionJob{TransactionID: "t1"}))
	got, err := store.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.IsCategorized())

	assert.NoError(t, o.HandleJob(ctx, &jobs.EnrichTransactionJob{TransactionID: "deleted"}),
		"a deleted transaction is not retried")

	failing := newOrchestrator(failingUpdateStore{store}, &fakeML{})
	seed(t, store, newTx("t2", 1))
	assert.Error(t, failing.HandleJob(ctx, &jobs.EnrichTransactionJob{TransactionID: "t2"}))
}

func TestEnrich_StaleCopyKeepsStoredEnrichment(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedHistory(t, store, 5)

	stored := newTx("a", 0)
	stored.Categorization = &domain.CategorySuggestion{Category: "X", Confidence: 0.7}
	stored.Anomaly = &domain.AnomalyAssessment{Score: 0.9, IsAnomaly: true, Reason: "big"}
	seed(t, store, stored)

	// Read before another worker finished enriching it.
	stale := newTx("a", 0)
	ml := &fakeML{
		ScoreFunc: func(ctx context.Context, req mlclient.ScoreRequest) (*mlclient.ScoreResponse, error) {
			return nil, errors.New("ml service down")
		},
	}
	changed, err := newOrchestrator(store, ml).Enrich(ctx, stale)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := store.GetTransaction(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got.Anomaly, "a failed stage must not clear stored scoring")
	assert.Equal(t, "big", got.Anomaly.Reason)
	assert.True(t, got.Anomaly.IsAnomaly)
	require.NotNil(t, got.Categorization)
	assert.Equal(t, "X", got.Categorization.Category, "stored category is never replaced")
}

func TestEnrich_SendsOnlyProducedGroups(t *testing.T) {
	ctx := context.Background()
	rec := &recordingStore{Store: memory.NewStore()}
	seed(t, rec.Store, newTx("a", 0))

	_, err := newOrchestrator(rec, &fakeML{}).Enrich(ctx, newTx("a", 0))
	require.NoError(t, err)

	require.Len(t, rec.updates, 1)
	assert.NotNil(t, rec.updates[0].Categorization)
	assert.Nil(t, rec.updates[0].Anomaly, "scoring was skipped for lack of history")
}

type recordingStore struct {
	*memory.Store
	updates []*domain.Transaction
}

func (s *recordingStore) UpdateEnrichment(ctx context.Context, tx *domain.Transaction) error {
	s.updates = append(s.updates, tx)
	return s.Store.UpdateEnrichment(ctx, tx)
}

func TestScheduleBackfill(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedHistory(t, store, 2)
	seed(t, store, newTx("fresh", 0))

	pub := &fakePublisher{}
	ml := &fakeML{}
	result, err := newOrchestrator(store, ml, WithPublisher(pub)).ScheduleBackfill(ctx, "u1", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ScheduledCount)
	assert.Equal(t, 2, result.SkippedCount, "fully enriched history is not queued")
	assert.Equal(t, 3, result.TotalCount)
	assert.Equal(t, []string{"job-1"}, result.JobIDs)
	require.Len(t, pub.published, 1)
	assert.Equal(t, "fresh", pub.published[0].TransactionID)
	assert.Zero(t, ml.categorizeCalls.Load())
}

func TestScheduleBackfill_PublishFailuresCounted(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, newTx("a", 0), newTx("b", 1))

	pub := &fakePublisher{err: jobs.ErrQueueFull}
	result, err := newOrchestrator(store, &fakeML{}, WithPublisher(pub)).ScheduleBackfill(context.Background(), "u1", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, &ScheduleResult{FailedCount: 2, TotalCount: 2, JobIDs: []string{}}, result)
}

func TestScheduleBackfill_RequiresPublisher(t *testing.T) {
	_, err := newOrchestrator(memory.NewStore(), &fakeML{}).ScheduleBackfill(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, ErrNoPublisher)

	_, err = newOrchestrator(memory.NewStore(), &fakeML{}, WithPublisher(&fakePublisher{})).ScheduleBackfill(context.Background(), "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
