// Package analytics computes read-only reporting aggregates over the ledger.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"github.com/shopspring/decimal"
)

// DefaultTopMerchantsLimit applies when the caller passes a non-positive limit.
const DefaultTopMerchantsLimit = 10

// Health classifications derived from the savings rate.
const (
	HealthExcellent  = "Excellent"
	HealthHealthy    = "Healthy"
	HealthAverage    = "Average"
	HealthConcerning = "Concerning"
)

// Engine shapes ledger aggregations into reporting DTOs. It never writes.
type Engine struct {
	store ledger.Aggregator
}

// NewEngine creates an Engine reading from store.
func NewEngine(store ledger.Aggregator) *Engine {
	return &Engine{store: store}
}

// MonthlySpending returns per-month income and expense totals for a calendar year.
// Months without transactions are absent.
func (e *Engine) MonthlySpending(ctx context.Context, userID string, year int) ([]MonthlyTotals, error) {
	if year < 1 || year > 9999 {
		return nil, domain.NewValidationError("year", "must be between 1 and 9999")
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0).Add(-time.Nanosecond)

	groups, err := e.store.Aggregate(ctx, ledger.AggregateQuery{
		Filter:  ledger.Filter{UserID: userID, Start: &start, End: &end},
		GroupBy: []ledger.GroupField{ledger.GroupByYear, ledger.GroupByMonth, ledger.GroupByType},
	})
	if err != nil {
		return nil, fmt.Errorf("MonthlySpending: aggregating: %w", err)
	}

	byMonth := make(map[int]*MonthlyTotals)
	for _, g := range groups {
		m, ok := byMonth[g.Month]
		if !ok {
			m = &MonthlyTotals{Year: g.Year, Month: g.Month}
			byMonth[g.Month] = m
		}
		switch g.Type {
		case domain.TransactionTypeIncome:
			m.Income += g.Total
		case domain.TransactionTypeExpense:
			m.Expense += g.Total
		}
		m.TransactionCount += g.Count
	}

	result := make([]MonthlyTotals, 0, len(byMonth))
	for _, m := range byMonth {
		m.Income = round2(m.Income)
		m.Expense = round2(m.Expense)
		m.Net = round2(m.Income - m.Expense)
		result = append(result, *m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Month < result[j].Month })
	return result, nil
}

// CategoryBreakdown splits Expense transactions in the window by category,
// largest first.
func (e *Engine) CategoryBreakdown(ctx context.Context, userID string, start, end *time.Time) (*CategoryBreakdown, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}

	groups, err := e.store.Aggregate(ctx, ledger.AggregateQuery{
		Filter:           expenseFilter(userID, start, end),
		GroupBy:          []ledger.GroupField{ledger.GroupByCategory},
		OrderByTotalDesc: true,
	})
	if err != nil {
		return nil, fmt.Errorf("CategoryBreakdown: aggregating: %w", err)
	}

	grand := decimal.Zero
	for _, g := range groups {
		grand = grand.Add(decimal.NewFromFloat(g.Total))
	}

	out := &CategoryBreakdown{
		GrandTotal: grand.Round(2).InexactFloat64(),
		Categories: make([]CategoryShare, 0, len(groups)),
	}
	for _, g := range groups {
		out.Categories = append(out.Categories, CategoryShare{
			Category:         g.Category,
			TotalAmount:      round2(g.Total),
			Percentage:       percentage(decimal.NewFromFloat(g.Total), grand),
			TransactionCount: g.Count,
		})
	}
	sort.SliceStable(out.Categories, func(i, j int) bool {
		return out.Categories[i].TotalAmount > out.Categories[j].TotalAmount
	})
	return out, nil
}

// IncomeVsExpense totals income and expenses in the window and derives the savings rate.
func (e *Engine) IncomeVsExpense(ctx context.Context, userID string, start, end *time.Time) (*IncomeExpenseSummary, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}

	groups, err := e.store.Aggregate(ctx, ledger.AggregateQuery{
		Filter:           ledger.Filter{UserID: userID, Start: start, End: end},
		GroupBy:          []ledger.GroupField{ledger.GroupByType, ledger.GroupByCategory},
		OrderByTotalDesc: true,
	})
	if err != nil {
		return nil, fmt.Errorf("IncomeVsExpense: aggregating: %w", err)
	}

	income, expenses := decimal.Zero, decimal.Zero
	details := make([]SummaryDetail, 0, len(groups))
	for _, g := range groups {
		amount := decimal.NewFromFloat(g.Total)
		switch g.Type {
		case domain.TransactionTypeIncome:
			income = income.Add(amount)
		case domain.TransactionTypeExpense:
			expenses = expenses.Add(amount)
		}
		details = append(details, SummaryDetail{
			Type:             string(g.Type),
			Category:         g.Category,
			TotalAmount:      round2(g.Total),
			TransactionCount: g.Count,
		})
	}
	sort.SliceStable(details, func(i, j int) bool { return details[i].TotalAmount > details[j].TotalAmount })

	savings := income.Sub(expenses)
	return &IncomeExpenseSummary{
		Income:      income.Round(2).InexactFloat64(),
		Expenses:    expenses.Round(2).InexactFloat64(),
		Savings:     savings.Round(2).InexactFloat64(),
		SavingsRate: percentage(savings, income),
		Details:     details,
	}, nil
}

// FinancialHealth classifies a savings rate. Lower bounds are inclusive.
func FinancialHealth(savingsRate float64) string {
	switch {
	case savingsRate >= 30:
		return HealthExcellent
	case savingsRate >= 20:
		return HealthHealthy
	case savingsRate >= 10:
		return HealthAverage
	default:
		return HealthConcerning
	}
}

// TopMerchants ranks merchants by Expense total. Unknown merchants are excluded.
// Bounds on limit are enforced by the caller; a non-positive limit means the default.
func (e *Engine) TopMerchants(ctx context.Context, userID string, limit int, start, end *time.Time) ([]MerchantSpend, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTopMerchantsLimit
	}

	filter := expenseFilter(userID, start, end)
	filter.KnownMerchantsOnly = true
	groups, err := e.store.Aggregate(ctx, ledger.AggregateQuery{
		Filter:           filter,
		GroupBy:          []ledger.GroupField{ledger.GroupByMerchant},
		OrderByTotalDesc: true,
		Limit:            limit,
	})
	if err != nil {
		return nil, fmt.Errorf("TopMerchants: aggregating: %w", err)
	}

	out := make([]MerchantSpend, 0, len(groups))
	for _, g := range groups {
		var avg float64
		if g.Count > 0 {
			avg = decimal.NewFromFloat(g.Total).Div(decimal.NewFromInt(g.Count)).Round(2).InexactFloat64()
		}
		out = append(out, MerchantSpend{
			Merchant:           g.Merchant,
			TotalSpent:         round2(g.Total),
			TransactionCount:   g.Count,
			AverageTransaction: avg,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalSpent > out[j].TotalSpent })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func expenseFilter(userID string, start, end *time.Time) ledger.Filter {
	return ledger.Filter{
		UserID: userID,
		Start:  start,
		End:    end,
		Type:   domain.TransactionTypeExpense,
	}
}

func validateWindow(start, end *time.Time) error {
	if start != nil && end != nil && start.After(*end) {
		return domain.NewValidationError("start_date", "must not be after end_date")
	}
	return nil
}

// percentage returns part/whole*100 rounded to 2 decimals, or 0 when whole is not positive.
func percentage(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
