package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"github.com/dvloznov/finance-analytics/internal/ledger/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingAggregator struct {
	err error
}

func (f *failingAggregator) Aggregate(ctx context.Context, q ledger.AggregateQuery) ([]ledger.Group, error) {
	return nil, f.err
}

var seq int

func add(t *testing.T, s *memory.Store, date time.Time, typ domain.TransactionType, category, merchant string, amount float64) {
	t.Helper()
	seq++
	require.NoError(t, s.InsertTransaction(context.Background(), &domain.Transaction{
		TransactionID: fmt.Sprintf("tx-%d", seq),
		UserID:        "u1",
		Date:          date,
		Amount:        amount,
		Type:          typ,
		Category:      category,
		MerchantName:  merchant,
	}))
}

func on(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestMonthlySpending(t *testing.T) {
	s := memory.NewStore()
	add(t, s, on(2024, 1, 3), domain.TransactionTypeIncome, "Salary", "", 3000)
	add(t, s, on(2024, 1, 10), domain.TransactionTypeExpense, "Food", "", 120.5)
	add(t, s, on(2024, 3, 10), domain.TransactionTypeExpense, "Rent", "", 1000)
	add(t, s, on(2023, 12, 31), domain.TransactionTypeExpense, "Food", "", 999)

	got, err := NewEngine(s).MonthlySpending(context.Background(), "u1", 2024)
	require.NoError(t, err)

	require.Len(t, got, 2, "months without transactions are absent")
	assert.Equal(t, MonthlyTotals{Year: 2024, Month: 1, Income: 3000, Expense: 120.5, Net: 2879.5, TransactionCount: 2}, got[0])
	assert.Equal(t, MonthlyTotals{Year: 2024, Month: 3, Expense: 1000, Net: -1000, TransactionCount: 1}, got[1])
}

func TestMonthlySpending_InvalidYear(t *testing.T) {
	_, err := NewEngine(memory.NewStore()).MonthlySpending(context.Background(), "u1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCategoryBreakdown(t *testing.T) {
	s := memory.NewStore()
	add(t, s, on(2024, 2, 1), domain.TransactionTypeExpense, "Transport", "", 5000)
	add(t, s, on(2024, 2, 2), domain.TransactionTypeExpense, "Groceries", "", 6000)
	add(t, s, on(2024, 2, 3), domain.TransactionTypeExpense, "Groceries", "", 4000)
	add(t, s, on(2024, 2, 4), domain.TransactionTypeIncome, "Salary", "", 20000)

	got, err := NewEngine(s).CategoryBreakdown(context.Background(), "u1", ptr(on(2024, 2, 1)), ptr(on(2024, 2, 28)))
	require.NoError(t, err)

	assert.Equal(t, 15000.0, got.GrandTotal)
	assert.Equal(t, []CategoryShare{
		{Category: "Groceries", TotalAmount: 10000, Percentage: 66.67, TransactionCount: 2},
		{Category: "Transport", TotalAmount: 5000, Percentage: 33.33, TransactionCount: 1},
	}, got.Categories)
}

func TestCategoryBreakdown_PercentagesSumTo100(t *testing.T) {
	s := memory.NewStore()
	for i, amount := range []float64{10, 10, 10, 7.77, 1.01} {
		add(t, s, on(2024, 5, i+1), domain.TransactionTypeExpense, fmt.Sprintf("c%d", i), "", amount)
	}

	got, err := NewEngine(s).CategoryBreakdown(context.Background(), "u1", nil, nil)
	require.NoError(t, err)

	var sum float64
	for _, c := range got.Categories {
		sum += c.Percentage
	}
	assert.InDelta(t, 100, sum, 0.1)
}

func TestCategoryBreakdown_ZeroTotal(t *testing.T) {
	s := memory.NewStore()
	add(t, s, on(2024, 2, 1), domain.TransactionTypeExpense, "Free", "", 0)

	got, err := NewEngine(s).CategoryBreakdown(context.Background(), "u1", nil, nil)
	require.NoError(t, err)
	assert.Zero(t, got.GrandTotal)
	require.Len(t, got.Categories, 1)
	assert.Zero(t, got.Categories[0].Percentage)

	empty, err := NewEngine(memory.NewStore()).CategoryBreakdown(context.Background(), "u1", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Categories)
}

func TestCategoryBreakdown_RejectsInvertedWindow(t *testing.T) {
	_, err := NewEngine(&failingAggregator{err: errors.New("must not be called")}).
		CategoryBreakdown(context.Background(), "u1", ptr(on(2024, 3, 1)), ptr(on(2024, 2, 1)))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIncomeVsExpense(t *testing.T) {
	s := memory.NewStore()
	add(t, s, on(2024, 4, 1), domain.TransactionTypeIncome, "Salary", "", 50000)
	add(t, s, on(2024, 4, 2), domain.TransactionTypeExpense, "Rent", "", 20000)
	add(t, s, on(2024, 4, 3), domain.TransactionTypeExpense, "Food", "", 15000)

	got, err := NewEngine(s).IncomeVsExpense(context.Background(), "u1", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 50000.0, got.Income)
	assert.Equal(t, 35000.0, got.Expenses)
	assert.Equal(t, 15000.0, got.Savings)
	assert.Equal(t, 30.0, got.SavingsRate)
	assert.Equal(t, HealthExcellent, FinancialHealth(got.SavingsRate))
	require.Len(t, got.Details, 3)
	assert.Equal(t, "Salary", got.Details[0].Category)
}

func TestIncomeVsExpense_NoIncome(t *testing.T) {
	s := memory.NewStore()
	add(t, s, on(2024, 4, 2), domain.TransactionTypeExpense, "Rent", "", 200)

	got, err := NewEngine(s).IncomeVsExpense(context.Background(), "u1", nil, nil)
	require.NoError(t, err)
	assert.Zero(t, got.SavingsRate)
	assert.Equal(t, -200.0, got.Savings)
}

func TestFinancialHealth(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{45, HealthExcellent},
		{30, HealthExcellent},
		{29.99, HealthHealthy},
		{20, HealthHealthy},
		{10, HealthAverage},
		{9.99, HealthConcerning},
		{-50, HealthConcerning},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.rate), func(t *testing.T) {
			assert.Equal(t, tt.want, FinancialHealth(tt.rate))
		})
	}
}

func TestTopMerchants(t *testing.T) {
	s := memory.NewStore()
	add(t, s, on(2024, 6, 1), domain.TransactionTypeExpense, "Food", "Tesco", 30)
	add(t, s, on(2024, 6, 2), domain.TransactionTypeExpense, "Food", "Tesco", 20)
	add(t, s, on(2024, 6, 3), domain.TransactionTypeExpense, "Fuel", "Shell", 70)
	add(t, s, on(2024, 6, 4), domain.TransactionTypeExpense, "Misc", "Unknown", 500)
	add(t, s, on(2024, 6, 5), domain.TransactionTypeExpense, "Misc", "", 400)
	add(t, s, on(2024, 6, 6), domain.TransactionTypeIncome, "Refund", "Amazon", 900)

	got, err := NewEngine(s).TopMerchants(context.Background(), "u1", 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []MerchantSpend{
		{Merchant: "Shell", TotalSpent: 70, TransactionCount: 1, AverageTransaction: 70},
		{Merchant: "Tesco", TotalSpent: 50, TransactionCount: 2, AverageTransaction: 25},
	}, got)

	got, err = NewEngine(s).TopMerchants(context.Background(), "u1", 1, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Shell", got[0].Merchant)
}

func TestSpendingTrend(t *testing.T) {
	s := memory.NewStore()
	add(t, s, on(2024, 1, 1), domain.TransactionTypeExpense, "Food", "", 10)
	add(t, s, on(2024, 1, 2), domain.TransactionTypeIncome, "Salary", "", 100)
	add(t, s, on(2024, 1, 9), domain.TransactionTypeExpense, "Food", "", 5)
	add(t, s, on(2024, 2, 1), domain.TransactionTypeExpense, "Food", "", 1)

	engine := NewEngine(s)
	ctx := context.Background()

	daily, err := engine.SpendingTrend(ctx, "u1", nil, nil, GranularityDaily)
	require.NoError(t, err)
	require.Len(t, daily, 4)
	assert.Equal(t, "2024-01-01", daily[0].Period)
	assert.Equal(t, TrendPoint{Period: "2024-01-02", Income: 100, NetFlow: 100, TransactionCount: 1}, daily[1])

	weekly, err := engine.SpendingTrend(ctx, "u1", nil, nil, GranularityWeekly)
	require.NoError(t, err)
	require.Len(t, weekly, 3)
	assert.Equal(t, TrendPoint{Period: "2024-W01", Spending: 10, Income: 100, NetFlow: 90, TransactionCount: 2}, weekly[0])
	assert.Equal(t, "2024-W02", weekly[1].Period)

	monthly, err := engine.SpendingTrend(ctx, "u1", ptr(on(2024, 1, 1)), ptr(on(2024, 1, 31)), GranularityMonthly)
	require.NoError(t, err)
	assert.Equal(t, []TrendPoint{{Period: "2024-01", Spending: 15, Income: 100, NetFlow: 85, TransactionCount: 3}}, monthly)

	_, err = engine.SpendingTrend(ctx, "u1", nil, nil, "hourly")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("")
	require.NoError(t, err)
	assert.Equal(t, GranularityDaily, g)

	g, err = ParseGranularity("weekly")
	require.NoError(t, err)
	assert.Equal(t, GranularityWeekly, g)

	_, err = ParseGranularity("yearly")
	assert.Error(t, err)
}

func TestEngine_WrapsStoreErrorsWithOperation(t *testing.T) {
	storeErr := errors.New("backend down")
	engine := NewEngine(&failingAggregator{err: storeErr})
	ctx := context.Background()

	calls := map[string]func() error{
		"MonthlySpending":   func() error { _, err := engine.MonthlySpending(ctx, "u1", 2024); return err },
		"CategoryBreakdown": func() error { _, err := engine.CategoryBreakdown(ctx, "u1", nil, nil); return err },
		"IncomeVsExpense":   func() error { _, err := engine.IncomeVsExpense(ctx, "u1", nil, nil); return err },
		"TopMerchants":      func() error { _, err := engine.TopMerchants(ctx, "u1", 5, nil, nil); return err },
		"SpendingTrend": func() error {
			_, err := engine.SpendingTrend(ctx, "u1", nil, nil, GranularityDaily)
			return err
		},
	}
	for op, call := range calls {
		t.Run(op, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.ErrorIs(t, err, storeErr)
			assert.Contains(t, err.Error(), op)
		})
	}
}
