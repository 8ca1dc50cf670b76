package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups every endpoint handler. Nil handlers leave their routes unregistered.
type Handlers struct {
	Analytics    *AnalyticsHandler
	Enrichment   *EnrichmentHandler
	Insights     *InsightsHandler
	Budget       *BudgetHandler
	Transactions *TransactionsHandler
	Users        *UsersHandler
	ML           *MLHandler
	Jobs         *JobsHandler
	Health       *HealthHandler
}

// NewRouter registers the API routes and wraps them in the standard middleware chain.
func NewRouter(h Handlers, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	if h.Analytics != nil {
		mux.HandleFunc("GET /api/analytics/monthly", h.Analytics.MonthlySpending)
		mux.HandleFunc("GET /api/analytics/categories", h.Analytics.CategoryBreakdown)
		mux.HandleFunc("GET /api/analytics/income-expense", h.Analytics.IncomeVsExpense)
		mux.HandleFunc("GET /api/analytics/top-merchants", h.Analytics.TopMerchants)
		mux.HandleFunc("GET /api/analytics/trend", h.Analytics.SpendingTrend)
	}
	if h.Enrichment != nil {
		mux.HandleFunc("POST /api/enrichment/backfill", h.Enrichment.Backfill)
	}
	if h.Insights != nil {
		mux.HandleFunc("GET /api/insights", h.Insights.GetInsights)
	}
	if h.Budget != nil {
		mux.HandleFunc("POST /api/budget/optimize", h.Budget.Optimize)
	}
	if h.Transactions != nil {
		mux.HandleFunc("POST /api/transactions", h.Transactions.CreateTransaction)
		mux.HandleFunc("GET /api/transactions", h.Transactions.ListTransactions)
		mux.HandleFunc("DELETE /api/transactions/{id}", h.Transactions.DeleteTransaction)
	}
	if h.Users != nil {
		mux.HandleFunc("GET /api/users/{id}", h.Users.GetUser)
		mux.HandleFunc("PUT /api/users/{id}", h.Users.PutUser)
	}
	if h.ML != nil {
		mux.HandleFunc("POST /api/ml/{analysis}", h.ML.Analyze)
	}
	if h.Jobs != nil {
		mux.HandleFunc("GET /api/jobs", h.Jobs.ListJobs)
		mux.HandleFunc("GET /api/jobs/{id}", h.Jobs.GetJob)
	}
	if h.Health != nil {
		mux.HandleFunc("GET /health", h.Health.Health)
	}

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)
}
