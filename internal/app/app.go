// Package app assembles the service graph shared by the API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-analytics/internal/analytics"
	"github.com/dvloznov/finance-analytics/internal/archive"
	"github.com/dvloznov/finance-analytics/internal/budget"
	"github.com/dvloznov/finance-analytics/internal/config"
	"github.com/dvloznov/finance-analytics/internal/enrichment"
	"github.com/dvloznov/finance-analytics/internal/insights"
	"github.com/dvloznov/finance-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"github.com/dvloznov/finance-analytics/internal/ledger/bigquery"
	"github.com/dvloznov/finance-analytics/internal/ledger/memory"
	"github.com/dvloznov/finance-analytics/internal/llm"
	"github.com/dvloznov/finance-analytics/internal/llm/gemini"
	"github.com/dvloznov/finance-analytics/internal/mlanalysis"
	"github.com/dvloznov/finance-analytics/internal/mlclient"
	"github.com/dvloznov/finance-analytics/internal/transactions"
	"github.com/rs/zerolog"
)

// errLLMDisabled is returned by the placeholder completer when no API key is set.
var errLLMDisabled = errors.New("llm: no api key configured")

// App holds every long-lived component.
type App struct {
	Store        ledger.Store
	ML           *mlclient.Client
	Analytics    *analytics.Engine
	Enrichment   *enrichment.Orchestrator
	Insights     *insights.Manager
	Budget       *budget.Consumer
	Transactions *transactions.Service
	MLAnalysis   *mlanalysis.Service
	JobStore     *inmemory.Store
	Queue        *inmemory.Queue
	// Archive is nil unless gcs.archive_bucket is set.
	Archive *archive.GCS

	closers []func() error
}

// New builds the component graph described by cfg.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	a.ML = mlclient.New(cfg.ML.BaseURL, log, mlclient.WithTimeout(cfg.ML.Timeout))

	a.JobStore = inmemory.NewStore()
	a.Queue = inmemory.NewQueue(cfg.Enrichment.QueueSize, a.JobStore,
		inmemory.WithWorkers(cfg.Enrichment.Workers),
		inmemory.WithLogger(log),
	)
	a.closers = append(a.closers, a.Queue.Close)

	a.Enrichment = enrichment.NewOrchestrator(store, a.ML, a.ML, log,
		enrichment.WithCallTimeout(cfg.Enrichment.Timeout),
		enrichment.WithPublisher(a.Queue),
	)

	completer, err := newCompleter(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	insightOpts := []insights.Option{
		insights.WithTTL(cfg.Insights.TTL),
		insights.WithRateLimitRetryDelay(cfg.Insights.RateLimitRetryDelay),
	}
	if cfg.GCS.ArchiveBucket != "" {
		gcs, err := archive.NewGCS(ctx, cfg.GCS.ArchiveBucket)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.Archive = gcs
		a.closers = append(a.closers, gcs.Close)
		insightOpts = append(insightOpts, insights.WithArchiver(gcs))
	}

	a.Analytics = analytics.NewEngine(store)
	a.Insights = insights.NewManager(store, completer, log, insightOpts...)
	a.Budget = budget.NewConsumer(store, a.ML, log)
	a.Transactions = transactions.NewService(store, a.Enrichment, log)
	a.MLAnalysis = mlanalysis.NewService(store, a.ML)

	log.Info().
		Str("store", cfg.Store.Backend).
		Str("ml_base_url", cfg.ML.BaseURL).
		Bool("llm_enabled", cfg.LLM.APIKey != "").
		Bool("archive_enabled", a.Archive != nil).
		Msg("application assembled")
	return a, nil
}

// StartWorkers starts the enrichment job consumers.
func (a *App) StartWorkers(ctx context.Context) error {
	return a.Queue.Start(ctx, a.Enrichment.HandleJob)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg *config.Config) (ledger.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendBigQuery:
		s, err := bigquery.NewStore(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
		if err != nil {
			return nil, fmt.Errorf("app.New: %w", err)
		}
		return s, nil
	default:
		return memory.NewStore(), nil
	}
}

func newCompleter(ctx context.Context, cfg *config.Config, log zerolog.Logger) (llm.Completer, error) {
	if cfg.LLM.APIKey == "" {
		log.Warn().Msg("llm.api_key not set, insights will use fallback content")
		return llm.CompleterFunc(func(context.Context, string) (string, error) {
			return "", errLLMDisabled
		}), nil
	}

	c, err := gemini.New(ctx, gemini.Config{
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}
	return c, nil
}
