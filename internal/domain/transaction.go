package domain

import (
	"strings"
	"time"
)

// TransactionType is the direction of money for a transaction.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "Income"
	TransactionTypeExpense TransactionType = "Expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// PaymentMode is how a transaction was paid.
type PaymentMode string

const (
	PaymentModeCash       PaymentMode = "Cash"
	PaymentModeCard       PaymentMode = "Card"
	PaymentModeUPI        PaymentMode = "UPI"
	PaymentModeNetBanking PaymentMode = "NetBanking"
	PaymentModeWallet     PaymentMode = "Wallet"
	PaymentModeOther      PaymentMode = "Other"
)

var paymentModes = map[PaymentMode]bool{
	PaymentModeCash:       true,
	PaymentModeCard:       true,
	PaymentModeUPI:        true,
	PaymentModeNetBanking: true,
	PaymentModeWallet:     true,
	PaymentModeOther:      true,
}

// Valid reports whether m is one of the known payment modes.
func (m PaymentMode) Valid() bool {
	return paymentModes[m]
}

// UnknownMerchant is the placeholder merchant name excluded from merchant rankings.
const UnknownMerchant = "Unknown"

// Transaction is one financial event owned by a user.
type Transaction struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Date          time.Time       `json:"date"`
	Amount        float64         `json:"amount"`
	Type          TransactionType `json:"type"`
	Category      string          `json:"category"`
	MerchantName  string          `json:"merchant_name,omitempty"`
	Description   string          `json:"description,omitempty"`
	PaymentMode   PaymentMode     `json:"payment_mode"`
	Recurring     bool            `json:"recurring"`
	CreatedAt     time.Time       `json:"created_at"`

	// Categorization is nil until a categorization pass has succeeded.
	Categorization *CategorySuggestion `json:"categorization"`
	// Anomaly is nil until anomaly scoring has been attempted successfully.
	// A non-nil value with an empty Reason still counts as scored.
	Anomaly *AnomalyAssessment `json:"anomaly"`
}

// CategorySuggestion is the categorization service output stored on a transaction.
type CategorySuggestion struct {
	Category   string  `json:"suggested_category"`
	Confidence float64 `json:"category_confidence"`
}

// AnomalyAssessment is the anomaly service output stored on a transaction.
type AnomalyAssessment struct {
	Score     float64 `json:"anomaly_score"`
	IsAnomaly bool    `json:"is_anomaly"`
	Reason    string  `json:"anomaly_reason"`
}

// IsCategorized reports whether the transaction already carries a suggested category.
func (t *Transaction) IsCategorized() bool {
	return t.Categorization != nil
}

// IsScored reports whether anomaly scoring already ran for the transaction.
func (t *Transaction) IsScored() bool {
	return t.Anomaly != nil
}

// AnomalyScore returns the stored score, 0 when unscored.
func (t *Transaction) AnomalyScore() float64 {
	if t.Anomaly == nil {
		return 0
	}
	return t.Anomaly.Score
}

// HasMerchant reports whether the merchant name is usable for merchant rankings.
func (t *Transaction) HasMerchant() bool {
	name := strings.TrimSpace(t.MerchantName)
	return name != "" && name != UnknownMerchant
}

// Validate checks the invariants a transaction must satisfy before it is stored.
func (t *Transaction) Validate() error {
	v := NewValidator()
	if strings.TrimSpace(t.UserID) == "" {
		v.Add("user_id", "is required")
	}
	if t.Date.IsZero() {
		v.Add("date", "is required")
	}
	if t.Amount < 0 {
		v.Add("amount", "must not be negative")
	}
	if !t.Type.Valid() {
		v.Add("type", "must be Income or Expense")
	}
	if t.PaymentMode != "" && !t.PaymentMode.Valid() {
		v.Add("payment_mode", "is not a supported payment mode")
	}
	return v.Err()
}
