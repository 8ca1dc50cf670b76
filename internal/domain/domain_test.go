package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		UserID: "u1",
		Date:   time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Amount: 12.5,
		Type:   TransactionTypeExpense,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		mut   func(*Transaction)
		field string
	}{
		{"missing user", func(tx *Transaction) { tx.UserID = " " }, "user_id"},
		{"missing date", func(tx *Transaction) { tx.Date = time.Time{} }, "date"},
		{"negative amount", func(tx *Transaction) { tx.Amount = -1 }, "amount"},
		{"bad type", func(tx *Transaction) { tx.Type = "Transfer" }, "type"},
		{"bad payment mode", func(tx *Transaction) { tx.PaymentMode = "Cheque" }, "payment_mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mut(&tx)
			err := tx.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestTransactionValidate_MultipleErrors(t *testing.T) {
	err := (&Transaction{Amount: -3}).Validate()
	require.Error(t, err)

	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	assert.Len(t, errs, 4)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTransactionEnrichmentState(t *testing.T) {
	tx := &Transaction{}
	assert.False(t, tx.IsCategorized())
	assert.False(t, tx.IsScored())
	assert.Zero(t, tx.AnomalyScore())

	tx.Anomaly = &AnomalyAssessment{Score: 0.4}
	assert.True(t, tx.IsScored(), "empty reason still counts as scored")
	assert.Equal(t, 0.4, tx.AnomalyScore())
}

func TestTransactionHasMerchant(t *testing.T) {
	assert.False(t, (&Transaction{}).HasMerchant())
	assert.False(t, (&Transaction{MerchantName: "Unknown"}).HasMerchant())
	assert.False(t, (&Transaction{MerchantName: "  "}).HasMerchant())
	assert.True(t, (&Transaction{MerchantName: "Tesco"}).HasMerchant())
}

func TestInsightValid(t *testing.T) {
	ok := Insight{Type: InsightTypeTip, Title: "Save", Message: "Save more", Severity: SeverityLow}
	assert.True(t, ok.Valid())

	bad := ok
	bad.Type = "advice"
	assert.False(t, bad.Valid())

	bad = ok
	bad.Severity = "critical"
	assert.False(t, bad.Valid())

	bad = ok
	bad.Title = ""
	assert.False(t, bad.Valid())
}

func TestInsightCacheEntryUsable(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	insights := []Insight{{Type: InsightTypeTip, Title: "t", Message: "m", Severity: SeverityLow}}

	entry := NewInsightCacheEntry("u1", insights, now)
	assert.Equal(t, now.Add(24*time.Hour), entry.ExpireAt)
	assert.True(t, entry.Usable(now.Add(23*time.Hour)))
	assert.False(t, entry.Usable(now.Add(24*time.Hour)))

	empty := NewInsightCacheEntry("u1", nil, now)
	assert.False(t, empty.Usable(now))

	var missing *InsightCacheEntry
	assert.False(t, missing.Usable(now))
}

func TestSavingsGoalValidate(t *testing.T) {
	g := SavingsGoal{Name: "Car", TargetAmount: 5000, Priority: 3, DeadlineMonths: 12}
	assert.NoError(t, g.Validate())

	g.Priority = 6
	assert.ErrorIs(t, g.Validate(), ErrInvalidInput)
}

func TestUserValidate(t *testing.T) {
	assert.NoError(t, (&User{UserID: "u1", MonthlyIncome: 3000}).Validate())
	assert.Error(t, (&User{UserID: "u1", MonthlyIncome: -1}).Validate())
	assert.Error(t, (&User{}).Validate())
}
