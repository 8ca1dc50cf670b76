// Package budget turns a user's expense history into the profile the external
// budget optimizer works from, and forwards optimization requests to it.
package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"github.com/dvloznov/finance-analytics/internal/mlclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// ProfileMonths is the number of full calendar months averaged.
	ProfileMonths = 3
	// DefaultMinimumExpenseRatio applies when the caller passes no ratio.
	DefaultMinimumExpenseRatio = 0.7
)

// ErrOptimizerUnavailable wraps every failure of the external optimizer.
var ErrOptimizerUnavailable = errors.New("budget optimizer unavailable")

// Optimizer is the budget half of the ML service.
type Optimizer interface {
	OptimizeBudget(ctx context.Context, req mlclient.OptimizeRequest) (*mlclient.OptimizeResponse, error)
}

// Store is the ledger surface the consumer needs.
type Store interface {
	ledger.Aggregator
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// Consumer builds expense profiles and delegates allocation to the optimizer.
type Consumer struct {
	store     Store
	optimizer Optimizer
	log       zerolog.Logger
	now       func() time.Time
}

// NewConsumer creates a Consumer.
func NewConsumer(store Store, optimizer Optimizer, log zerolog.Logger) *Consumer {
	return &Consumer{
		store:     store,
		optimizer: optimizer,
		log:       log.With().Str("component", "budget").Logger(),
		now:       time.Now,
	}
}

// BuildExpenseProfile returns the average monthly expense per category over the
// last ProfileMonths full calendar months. Without recent expenses it falls back
// to the all-time history averaged over the months that history covers.
func (c *Consumer) BuildExpenseProfile(ctx context.Context, userID string) (map[string]float64, error) {
	start, end := recentWindow(c.now())

	recent, err := c.store.Aggregate(ctx, ledger.AggregateQuery{
		Filter: ledger.Filter{
			UserID: userID,
			Type:   domain.TransactionTypeExpense,
			Start:  &start,
			End:    &end,
		},
		GroupBy: []ledger.GroupField{ledger.GroupByCategory},
	})
	if err != nil {
		return nil, fmt.Errorf("BuildExpenseProfile: aggregating recent expenses: %w", err)
	}
	if len(recent) > 0 {
		return averageByCategory(recent, ProfileMonths), nil
	}

	history, err := c.store.Aggregate(ctx, ledger.AggregateQuery{
		Filter:  ledger.Filter{UserID: userID, Type: domain.TransactionTypeExpense},
		GroupBy: []ledger.GroupField{ledger.GroupByYear, ledger.GroupByMonth, ledger.GroupByCategory},
	})
	if err != nil {
		return nil, fmt.Errorf("BuildExpenseProfile: aggregating expense history: %w", err)
	}

	months := make(map[[2]int]struct{})
	for _, g := range history {
		months[[2]int{g.Year, g.Month}] = struct{}{}
	}
	return averageByCategory(history, max(len(months), 1)), nil
}

// Optimize forwards the user's declared income, expense profile and goals to the
// optimizer and returns its plan unmodified. Optimizer failures are returned
// wrapped in ErrOptimizerUnavailable. A nil ratio means DefaultMinimumExpenseRatio;
// an explicit zero is forwarded as zero.
func (c *Consumer) Optimize(ctx context.Context, userID string, goals []domain.SavingsGoal, ratio *float64) (*mlclient.OptimizeResponse, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "is required")
	}
	minimumExpenseRatio := DefaultMinimumExpenseRatio
	if ratio != nil {
		minimumExpenseRatio = *ratio
	}
	if minimumExpenseRatio < 0 || minimumExpenseRatio > 1 {
		return nil, domain.NewValidationError("minimum_expense_ratio", "must be between 0 and 1")
	}
	for _, g := range goals {
		if err := g.Validate(); err != nil {
			return nil, err
		}
	}
	if goals == nil {
		goals = []domain.SavingsGoal{}
	}

	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Optimize: loading user: %w", err)
	}

	profile, err := c.BuildExpenseProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Optimize: %w", err)
	}

	resp, err := c.optimizer.OptimizeBudget(ctx, mlclient.OptimizeRequest{
		UserID:              userID,
		MonthlyIncome:       user.MonthlyIncome,
		ExpenseCategories:   profile,
		SavingsGoals:        goals,
		MinimumExpenseRatio: minimumExpenseRatio,
	})
	if err != nil {
		c.log.Error().Str("user_id", userID).Err(err).Msg("budget optimizer call failed")
		return nil, fmt.Errorf("Optimize: %w: %w", ErrOptimizerUnavailable, err)
	}
	return resp, nil
}

// recentWindow spans the ProfileMonths full calendar months before now's month.
func recentWindow(now time.Time) (start, end time.Time) {
	today := civil.DateOf(now.UTC())
	firstOfMonth := civil.Date{Year: today.Year, Month: today.Month, Day: 1}.In(time.UTC)
	return firstOfMonth.AddDate(0, -ProfileMonths, 0), firstOfMonth.Add(-time.Nanosecond)
}

func averageByCategory(groups []ledger.Group, months int) map[string]float64 {
	sums := make(map[string]decimal.Decimal)
	for _, g := range groups {
		sums[g.Category] = sums[g.Category].Add(decimal.NewFromFloat(g.Total))
	}

	divisor := decimal.NewFromInt(int64(months))
	out := make(map[string]float64, len(sums))
	for category, sum := range sums {
		out[category] = sum.Div(divisor).Round(2).InexactFloat64()
	}
	return out
}
