package bigquery

import (
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
)

// groupExpr maps each group field to its select expression and result column.
var groupExpr = map[ledger.GroupField]string{
	ledger.GroupByYear:     "EXTRACT(YEAR FROM transaction_date) AS year",
	ledger.GroupByMonth:    "EXTRACT(MONTH FROM transaction_date) AS month",
	ledger.GroupByDay:      "FORMAT_TIMESTAMP('%Y-%m-%d', transaction_date) AS day",
	ledger.GroupByISOWeek:  "FORMAT_TIMESTAMP('%G-W%V', transaction_date) AS iso_week",
	ledger.GroupByType:     "type",
	ledger.GroupByCategory: "category",
	ledger.GroupByMerchant: "merchant_name AS merchant",
}

// buildWhere renders the filter as a WHERE clause plus named parameters.
// It returns an empty clause when nothing filters.
func buildWhere(f ledger.Filter) (string, []bigquery.QueryParameter) {
	var (
		conds  []string
		params []bigquery.QueryParameter
	)
	if f.UserID != "" {
		conds = append(conds, "user_id = @user_id")
		params = append(params, bigquery.QueryParameter{Name: "user_id", Value: f.UserID})
	}
	if len(f.IDs) > 0 {
		conds = append(conds, "transaction_id IN UNNEST(@ids)")
		params = append(params, bigquery.QueryParameter{Name: "ids", Value: f.IDs})
	}
	if f.Start != nil {
		conds = append(conds, "transaction_date >= @start_date")
		params = append(params, bigquery.QueryParameter{Name: "start_date", Value: *f.Start})
	}
	if f.End != nil {
		conds = append(conds, "transaction_date <= @end_date")
		params = append(params, bigquery.QueryParameter{Name: "end_date", Value: *f.End})
	}
	if f.Type != "" {
		conds = append(conds, "type = @type")
		params = append(params, bigquery.QueryParameter{Name: "type", Value: string(f.Type)})
	}
	if f.Category != "" {
		conds = append(conds, "category = @category")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: f.Category})
	}
	if f.KnownMerchantsOnly {
		conds = append(conds, "merchant_name IS NOT NULL AND merchant_name NOT IN ('', @unknown_merchant)")
		params = append(params, bigquery.QueryParameter{Name: "unknown_merchant", Value: domain.UnknownMerchant})
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, "\n\t  AND "), params
}

// buildAggregateSQL renders a grouped SUM over the transactions table.
func buildAggregateSQL(table string, q ledger.AggregateQuery) (string, []bigquery.QueryParameter, error) {
	if len(q.GroupBy) == 0 {
		return "", nil, fmt.Errorf("at least one group field is required")
	}

	selects := make([]string, 0, len(q.GroupBy)+2)
	positions := make([]string, 0, len(q.GroupBy))
	for i, f := range q.GroupBy {
		expr, ok := groupExpr[f]
		if !ok {
			return "", nil, fmt.Errorf("unsupported group field %q", f)
		}
		selects = append(selects, expr)
		positions = append(positions, fmt.Sprint(i+1))
	}
	selects = append(selects, "CAST(SUM(amount) AS FLOAT64) AS total", "COUNT(*) AS count")

	where, params := buildWhere(q.Filter)

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s\nFROM %s\n", strings.Join(selects, ", "), table)
	if where != "" {
		b.WriteString(where)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "GROUP BY %s\n", strings.Join(positions, ", "))
	if q.OrderByTotalDesc {
		fmt.Fprintf(&b, "ORDER BY total DESC, %s", strings.Join(positions, ", "))
	} else {
		fmt.Fprintf(&b, "ORDER BY %s", strings.Join(positions, ", "))
	}
	if q.Limit > 0 {
		b.WriteString("\nLIMIT @limit")
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: q.Limit})
	}
	return b.String(), params, nil
}

// groupFromRow converts a result row of buildAggregateSQL into a ledger.Group.
func groupFromRow(row map[string]bigquery.Value) ledger.Group {
	var g ledger.Group
	for col, v := range row {
		switch col {
		case "year":
			g.Year = int(asInt64(v))
		case "month":
			g.Month = int(asInt64(v))
		case "day":
			g.Day = asString(v)
		case "iso_week":
			g.ISOWeek = asString(v)
		case "type":
			g.Type = domain.TransactionType(asString(v))
		case "category":
			g.Category = asString(v)
		case "merchant":
			g.Merchant = asString(v)
		case "total":
			g.Total = asFloat64(v)
		case "count":
			g.Count = asInt64(v)
		}
	}
	return g
}

func asInt64(v bigquery.Value) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func asFloat64(v bigquery.Value) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func asString(v bigquery.Value) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
