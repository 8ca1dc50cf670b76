package analytics

// MonthlyTotals is one month of a calendar-year series.
type MonthlyTotals struct {
	Year             int     `json:"year"`
	Month            int     `json:"month"`
	Income           float64 `json:"income"`
	Expense          float64 `json:"expense"`
	Net              float64 `json:"net"`
	TransactionCount int64   `json:"transactionCount"`
}

// CategoryShare is one row of a category breakdown.
type CategoryShare struct {
	Category         string  `json:"category"`
	TotalAmount      float64 `json:"totalAmount"`
	Percentage       float64 `json:"percentage"`
	TransactionCount int64   `json:"transactionCount"`
}

// CategoryBreakdown splits expenses by category.
type CategoryBreakdown struct {
	GrandTotal float64         `json:"grandTotal"`
	Categories []CategoryShare `json:"categories"`
}

// SummaryDetail is the total for one (type, category) pair.
type SummaryDetail struct {
	Type             string  `json:"type"`
	Category         string  `json:"category"`
	TotalAmount      float64 `json:"totalAmount"`
	TransactionCount int64   `json:"transactionCount"`
}

// IncomeExpenseSummary compares income against expenses over a window.
type IncomeExpenseSummary struct {
	Income      float64         `json:"income"`
	Expenses    float64         `json:"expenses"`
	Savings     float64         `json:"savings"`
	SavingsRate float64         `json:"savingsRate"`
	Details     []SummaryDetail `json:"details"`
}

// MerchantSpend is one row of the top merchants ranking.
type MerchantSpend struct {
	Merchant           string  `json:"merchant"`
	TotalSpent         float64 `json:"totalSpent"`
	TransactionCount   int64   `json:"transactionCount"`
	AverageTransaction float64 `json:"averageTransaction"`
}

// TrendPoint is one bucket of a spending trend.
type TrendPoint struct {
	Period           string  `json:"period"`
	Spending         float64 `json:"spending"`
	Income           float64 `json:"income"`
	NetFlow          float64 `json:"netFlow"`
	TransactionCount int64   `json:"transactionCount"`
}
