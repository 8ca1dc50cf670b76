package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
)

// Granularity selects the spending trend bucket size.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// ParseGranularity accepts daily, weekly or monthly; empty means daily.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case "":
		return GranularityDaily, nil
	case GranularityDaily, GranularityWeekly, GranularityMonthly:
		return g, nil
	default:
		return "", domain.NewValidationError("group_by", "must be daily, weekly or monthly")
	}
}

func (g Granularity) groupFields() []ledger.GroupField {
	switch g {
	case GranularityWeekly:
		return []ledger.GroupField{ledger.GroupByISOWeek, ledger.GroupByType}
	case GranularityMonthly:
		return []ledger.GroupField{ledger.GroupByYear, ledger.GroupByMonth, ledger.GroupByType}
	default:
		return []ledger.GroupField{ledger.GroupByDay, ledger.GroupByType}
	}
}

// period renders the bucket key: YYYY-MM-DD, YYYY-Www or YYYY-MM.
func (g Granularity) period(grp ledger.Group) string {
	switch g {
	case GranularityWeekly:
		return grp.ISOWeek
	case GranularityMonthly:
		return fmt.Sprintf("%04d-%02d", grp.Year, grp.Month)
	default:
		return grp.Day
	}
}

// SpendingTrend buckets income and spending over the window, ascending by period.
func (e *Engine) SpendingTrend(ctx context.Context, userID string, start, end *time.Time, granularity Granularity) ([]TrendPoint, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	if _, err := ParseGranularity(string(granularity)); err != nil {
		return nil, err
	}

	groups, err := e.store.Aggregate(ctx, ledger.AggregateQuery{
		Filter:  ledger.Filter{UserID: userID, Start: start, End: end},
		GroupBy: granularity.groupFields(),
	})
	if err != nil {
		return nil, fmt.Errorf("SpendingTrend: aggregating: %w", err)
	}

	byPeriod := make(map[string]*TrendPoint)
	for _, g := range groups {
		key := granularity.period(g)
		p, ok := byPeriod[key]
		if !ok {
			p = &TrendPoint{Period: key}
			byPeriod[key] = p
		}
		switch g.Type {
		case domain.TransactionTypeIncome:
			p.Income += g.Total
		case domain.TransactionTypeExpense:
			p.Spending += g.Total
		}
		p.TransactionCount += g.Count
	}

	points := make([]TrendPoint, 0, len(byPeriod))
	for _, p := range byPeriod {
		p.Income = round2(p.Income)
		p.Spending = round2(p.Spending)
		p.NetFlow = round2(p.Income - p.Spending)
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period < points[j].Period })
	return points, nil
}
