package mlclient

import (
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
)

// Transaction is the wire form of a transaction sent to the ML service.
type Transaction struct {
	Date         string  `json:"date"`
	Amount       float64 `json:"amount"`
	Type         string  `json:"type"`
	Category     string  `json:"category"`
	MerchantName string  `json:"merchantName"`
}

// FromDomain converts a stored transaction to its wire form.
// An absent merchant is sent as "Unknown" since the service requires the field.
func FromDomain(tx *domain.Transaction) Transaction {
	merchant := tx.MerchantName
	if merchant == "" {
		merchant = domain.UnknownMerchant
	}
	return Transaction{
		Date:         tx.Date.UTC().Format(time.RFC3339),
		Amount:       tx.Amount,
		Type:         string(tx.Type),
		Category:     tx.Category,
		MerchantName: merchant,
	}
}

// FromDomainList converts a slice of stored transactions.
func FromDomainList(txs []*domain.Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, FromDomain(tx))
	}
	return out
}

// CategorizeRequest is the body of POST /categorize.
type CategorizeRequest struct {
	Description  string  `json:"description"`
	Amount       float64 `json:"amount"`
	MerchantName string  `json:"merchantName"`
	Type         string  `json:"type"`
}

// CategorizeResponse is the /categorize result.
type CategorizeResponse struct {
	PredictedCategory     string  `json:"predicted_category"`
	Confidence            float64 `json:"confidence"`
	AlternativeCategories [][]any `json:"alternative_categories,omitempty"`
	Explanation           string  `json:"explanation,omitempty"`
}

// ScoreRequest is the body of POST /score-transaction.
type ScoreRequest struct {
	UserID                 string        `json:"userId"`
	NewTransaction         Transaction   `json:"new_transaction"`
	HistoricalTransactions []Transaction `json:"historical_transactions"`
}

// ScoreResponse is the /score-transaction result.
type ScoreResponse struct {
	AnomalyScore float64 `json:"anomaly_score"`
	IsAnomaly    bool    `json:"is_anomaly"`
	Reason       string  `json:"reason"`
	RiskLevel    string  `json:"risk_level,omitempty"`
}

// OptimizeRequest is the body of POST /optimize-budget.
type OptimizeRequest struct {
	UserID              string               `json:"userId"`
	MonthlyIncome       float64              `json:"monthly_income"`
	ExpenseCategories   map[string]float64   `json:"expense_categories"`
	SavingsGoals        []domain.SavingsGoal `json:"savings_goals"`
	MinimumExpenseRatio float64              `json:"minimum_expense_ratio"`
}

// BudgetAllocation is one line of an allocation plan.
type BudgetAllocation struct {
	Category        string  `json:"category"`
	AllocatedAmount float64 `json:"allocated_amount"`
	Percentage      float64 `json:"percentage"`
}

// OptimizeResponse is the /optimize-budget result.
type OptimizeResponse struct {
	UserID                     string             `json:"userId"`
	AllocationPlan             []BudgetAllocation `json:"allocation_plan"`
	TotalIncome                float64            `json:"total_income"`
	TotalAllocated             float64            `json:"total_allocated"`
	TotalSavingsPotential      float64            `json:"total_savings_potential"`
	GoalAchievementProbability map[string]float64 `json:"goal_achievement_probability"`
	Summary                    string             `json:"summary"`
}

// ClusterRequest is the body of POST /cluster.
type ClusterRequest struct {
	UserID       string        `json:"userId"`
	Transactions []Transaction `json:"transactions"`
	NClusters    int           `json:"n_clusters"`
}

// AnomaliesRequest is the body of POST /anomalies.
type AnomaliesRequest struct {
	UserID        string        `json:"userId"`
	Transactions  []Transaction `json:"transactions"`
	Contamination float64       `json:"contamination"`
}

// ForecastRequest is the body of POST /forecast.
type ForecastRequest struct {
	UserID       string        `json:"userId"`
	Transactions []Transaction `json:"transactions"`
	ForecastDays int           `json:"forecast_days"`
}
