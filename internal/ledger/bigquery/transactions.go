package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-analytics/internal/domain"
)

// transactionColumns is the select list matching transactionRow.
const transactionColumns = `
	transaction_id,
	user_id,
	transaction_date,
	amount,
	type,
	category,
	merchant_name,
	description,
	payment_mode,
	is_recurring,
	suggested_category,
	category_confidence,
	anomaly_score,
	is_anomaly,
	anomaly_reason,
	created_ts,
	updated_ts`

// transactionRow is a row of the transactions table.
type transactionRow struct {
	TransactionID   string    `bigquery:"transaction_id"`   // REQUIRED
	UserID          string    `bigquery:"user_id"`          // REQUIRED
	TransactionDate time.Time `bigquery:"transaction_date"` // REQUIRED TIMESTAMP

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC

	Type         string              `bigquery:"type"`          // REQUIRED
	Category     string              `bigquery:"category"`      // REQUIRED
	MerchantName bigquery.NullString `bigquery:"merchant_name"` // NULLABLE
	Description  bigquery.NullString `bigquery:"description"`   // NULLABLE
	PaymentMode  string              `bigquery:"payment_mode"`  // REQUIRED
	IsRecurring  bool                `bigquery:"is_recurring"`  // REQUIRED

	// NULL suggested_category means the transaction was never categorized.
	SuggestedCategory  bigquery.NullString  `bigquery:"suggested_category"`
	CategoryConfidence bigquery.NullFloat64 `bigquery:"category_confidence"`
	AnomalyScore       bigquery.NullFloat64 `bigquery:"anomaly_score"`
	IsAnomaly          bigquery.NullBool    `bigquery:"is_anomaly"`
	// NULL anomaly_reason means the transaction was never scored; '' means scored.
	AnomalyReason bigquery.NullString `bigquery:"anomaly_reason"`

	CreatedTS time.Time              `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

func (r *transactionRow) toDomain() *domain.Transaction {
	tx := &domain.Transaction{
		TransactionID: r.TransactionID,
		UserID:        r.UserID,
		Date:          r.TransactionDate,
		Type:          domain.TransactionType(r.Type),
		Category:      r.Category,
		MerchantName:  r.MerchantName.StringVal,
		Description:   r.Description.StringVal,
		PaymentMode:   domain.PaymentMode(r.PaymentMode),
		Recurring:     r.IsRecurring,
		CreatedAt:     r.CreatedTS,
	}
	if r.Amount != nil {
		tx.Amount, _ = r.Amount.Float64()
	}
	if r.SuggestedCategory.Valid {
		tx.Categorization = &domain.CategorySuggestion{
			Category:   r.SuggestedCategory.StringVal,
			Confidence: r.CategoryConfidence.Float64,
		}
	}
	if r.AnomalyReason.Valid {
		tx.Anomaly = &domain.AnomalyAssessment{
			Score:     r.AnomalyScore.Float64,
			IsAnomaly: r.IsAnomaly.Bool,
			Reason:    r.AnomalyReason.StringVal,
		}
	}
	return tx
}

// enrichmentParams maps the enrichment state of tx onto nullable query parameters.
func enrichmentParams(tx *domain.Transaction) []bigquery.QueryParameter {
	var (
		suggested  bigquery.NullString
		confidence bigquery.NullFloat64
		reason     bigquery.NullString
		score      = bigquery.NullFloat64{Float64: 0, Valid: true}
		isAnomaly  = bigquery.NullBool{Bool: false, Valid: true}
	)
	if c := tx.Categorization; c != nil {
		suggested = bigquery.NullString{StringVal: c.Category, Valid: true}
		confidence = bigquery.NullFloat64{Float64: c.Confidence, Valid: true}
	}
	if a := tx.Anomaly; a != nil {
		score.Float64 = a.Score
		isAnomaly.Bool = a.IsAnomaly
		reason = bigquery.NullString{StringVal: a.Reason, Valid: true}
	}
	return []bigquery.QueryParameter{
		{Name: "suggested_category", Value: suggested},
		{Name: "category_confidence", Value: confidence},
		{Name: "anomaly_score", Value: score},
		{Name: "is_anomaly", Value: isAnomaly},
		{Name: "anomaly_reason", Value: reason},
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
