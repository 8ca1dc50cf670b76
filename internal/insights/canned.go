package insights

import "github.com/dvloznov/finance-analytics/internal/domain"

// getStartedInsights is returned to users with no transactions at all.
func getStartedInsights() []domain.Insight {
	return []domain.Insight{
		{
			Type:       domain.InsightTypeTip,
			Title:      "Get started",
			Message:    "Add a few transactions or import a statement to start receiving personalised insights about your spending.",
			Severity:   domain.SeverityLow,
			Actionable: true,
		},
	}
}

// regularSpendingInsight replaces a model answer that contained no usable insight.
func regularSpendingInsight() []domain.Insight {
	return []domain.Insight{
		{
			Type:       domain.InsightTypePattern,
			Title:      "Regular spending detected",
			Message:    "Your recent transactions follow a regular pattern. Keep tracking to unlock more detailed insights.",
			Severity:   domain.SeverityLow,
			Actionable: false,
		},
	}
}

// fallbackInsights is served when the model cannot be reached or answers with garbage.
func fallbackInsights() []domain.Insight {
	return []domain.Insight{
		{
			Type:       domain.InsightTypeTip,
			Title:      "Review your top categories",
			Message:    "Look at the categories where you spend the most each month and pick one to cut back on.",
			Severity:   domain.SeverityLow,
			Actionable: true,
		},
		{
			Type:       domain.InsightTypeOpportunity,
			Title:      "Automate your savings",
			Message:    "Set up an automatic transfer to savings right after payday so saving happens before spending.",
			Severity:   domain.SeverityMedium,
			Actionable: true,
		},
		{
			Type:       domain.InsightTypePattern,
			Title:      "Check recurring payments",
			Message:    "Recurring subscriptions add up. Review them and cancel the ones you no longer use.",
			Severity:   domain.SeverityLow,
			Actionable: true,
		},
	}
}
