package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-analytics/internal/api/handlers"
	"github.com/dvloznov/finance-analytics/internal/app"
	"github.com/dvloznov/finance-analytics/internal/config"
	"github.com/dvloznov/finance-analytics/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("FINANCE_CONFIG"), "Path to a YAML config file (or set FINANCE_CONFIG env)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log, err := logger.Build(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to configure logger")
	}

	ctx := context.Background()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	// Start enrichment workers in background
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := application.StartWorkers(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start enrichment workers")
	}

	router := handlers.NewRouter(handlers.Handlers{
		Analytics:    handlers.NewAnalyticsHandler(application.Analytics, log),
		Enrichment:   handlers.NewEnrichmentHandler(application.Enrichment, log),
		Insights:     handlers.NewInsightsHandler(application.Insights, log),
		Budget:       handlers.NewBudgetHandler(application.Budget, log),
		Transactions: handlers.NewTransactionsHandler(application.Transactions, log),
		Users:        handlers.NewUsersHandler(application.Transactions, log),
		ML:           handlers.NewMLHandler(application.MLAnalysis, log),
		Jobs:         handlers.NewJobsHandler(application.JobStore, log),
		Health:       handlers.NewHealthHandler(application.ML, log),
	}, log)

	// Insight generation may wait on the LLM plus one rate-limit retry; a
	// synchronous backfill waits on one stage timeout per transaction.
	writeTimeout := cfg.LLM.Timeout*2 + cfg.Insights.RateLimitRetryDelay + 5*time.Second
	if backfill := cfg.Enrichment.Timeout*handlers.MaxSyncBackfillIDs + 5*time.Second; backfill > writeTimeout {
		writeTimeout = backfill
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight enrichment jobs finish before the store goes away
	if err := application.Queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := application.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to release resources")
	}

	log.Info().Msg("Server exited")
}
