package insights

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

// maxBreakdownLines caps the per (type, category) lines in the prompt.
const maxBreakdownLines = 15

type breakdownLine struct {
	key   string
	total decimal.Decimal
}

// summary is the aggregate view of recent transactions handed to the model.
type summary struct {
	income    decimal.Decimal
	expense   decimal.Decimal
	count     int
	breakdown []breakdownLine
}

func summarize(txs []*domain.Transaction) summary {
	s := summary{count: len(txs)}
	totals := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		amount := decimal.NewFromFloat(tx.Amount)
		switch tx.Type {
		case domain.TransactionTypeIncome:
			s.income = s.income.Add(amount)
		case domain.TransactionTypeExpense:
			s.expense = s.expense.Add(amount)
		}
		category := tx.Category
		if category == "" {
			category = "Uncategorized"
		}
		key := fmt.Sprintf("%s - %s", tx.Type, category)
		totals[key] = totals[key].Add(amount)
	}

	for k, v := range totals {
		s.breakdown = append(s.breakdown, breakdownLine{key: k, total: v})
	}
	sort.Slice(s.breakdown, func(i, j int) bool {
		if c := s.breakdown[i].total.Cmp(s.breakdown[j].total); c != 0 {
			return c > 0
		}
		return s.breakdown[i].key < s.breakdown[j].key
	})
	if len(s.breakdown) > maxBreakdownLines {
		s.breakdown = s.breakdown[:maxBreakdownLines]
	}
	return s
}

func buildPrompt(s summary) string {
	var b strings.Builder

	b.WriteString("You are a personal finance assistant. Analyse the following summary of a user's recent transactions.\n\n")
	fmt.Fprintf(&b, "Transactions analysed: %d\n", s.count)
	fmt.Fprintf(&b, "Total income: %s\n", s.income.StringFixed(2))
	fmt.Fprintf(&b, "Total expenses: %s\n", s.expense.StringFixed(2))
	fmt.Fprintf(&b, "Net: %s\n\n", s.income.Sub(s.expense).StringFixed(2))

	b.WriteString("Breakdown by type and category (largest first):\n")
	for _, line := range s.breakdown {
		fmt.Fprintf(&b, "- %s: %s\n", line.key, line.total.StringFixed(2))
	}

	b.WriteString("\nRules:\n" +
		"- Produce 4 to 5 insights.\n" +
		"- Each insight is an object with fields \"type\" (one of warning, tip, pattern, opportunity), " +
		"\"title\", \"message\", \"severity\" (one of low, medium, high) and \"actionable\" (boolean).\n" +
		"- Keep titles short and messages to one or two sentences.\n\n" +
		"Return ONLY a valid raw JSON array.\n" +
		"Do NOT wrap the response in code fences.\n" +
		"Output must begin with \"[\" and end with \"]\".\n")

	return b.String()
}
