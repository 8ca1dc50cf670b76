package insights

import (
	"fmt"
	"testing"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInsights(t *testing.T) {
	raw := `Sure! Here are your insights:
[{"type":"opportunity","title":" Refinance ","message":"Rates dropped.","severity":"medium","actionable":true},
 {"type":"tip","title":"","message":"no title","severity":"low"},
 {"type":"pattern","title":"Weekend spend","message":"Most spending is on weekends.","severity":"critical"},
 "not an object"]
Let me know if you need anything else [really].`

	got, dropped, err := parseInsights(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, dropped)
	assert.Equal(t, []domain.Insight{{
		Type:       domain.InsightTypeOpportunity,
		Title:      "Refinance",
		Message:    "Rates dropped.",
		Severity:   domain.SeverityMedium,
		Actionable: true,
	}}, got)
}

func TestParseInsights_Errors(t *testing.T) {
	_, _, err := parseInsights("no array here")
	assert.ErrorIs(t, err, errNoArray)

	_, _, err = parseInsights(`{"type":"tip"}`)
	assert.Error(t, err)

	_, _, err = parseInsights("```json\n[{\"type\":\n```")
	assert.Error(t, err)
}

func TestCleanModelJSON(t *testing.T) {
	assert.Equal(t, `[1]`, cleanModelJSON("```json\n[1]\n```"))
	assert.Equal(t, `[1]`, cleanModelJSON("  [1]  "))
	assert.Equal(t, `[1]`, cleanModelJSON("```\n[1]```"))
}

func TestSummarizeCapsBreakdown(t *testing.T) {
	var txs []*domain.Transaction
	for i := 0; i < 20; i++ {
		txs = append(txs, &domain.Transaction{
			Type:     domain.TransactionTypeExpense,
			Category: fmt.Sprintf("c%02d", i),
			Amount:   float64(i + 1),
		})
	}
	s := summarize(txs)
	require.Len(t, s.breakdown, maxBreakdownLines)
	assert.Equal(t, "Expense - c19", s.breakdown[0].key)
	assert.Equal(t, "210", s.expense.String())
}
