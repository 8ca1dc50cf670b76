package transactions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnricher struct {
	created []*domain.Transaction
}

func (r *recordingEnricher) OnCreate(ctx context.Context, tx *domain.Transaction) {
	r.created = append(r.created, tx)
}

func newService(store *memory.Store, enricher Enricher) *Service {
	s := NewService(store, enricher, zerolog.Nop())
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("tx-%d", n)
	}
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestCreate_StoresAndNotifiesEnrichment(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	enricher := &recordingEnricher{}
	svc := newService(store, enricher)

	tx, err := svc.Create(ctx, "u1", CreateInput{
		Date:         time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC),
		Amount:       42.5,
		Type:         domain.TransactionTypeExpense,
		Category:     " Food ",
		MerchantName: "Cafe",
		Description:  "lunch",
	})
	require.NoError(t, err)

	assert.Equal(t, "tx-1", tx.TransactionID)
	assert.Equal(t, "Food", tx.Category)
	assert.Equal(t, domain.PaymentModeOther, tx.PaymentMode)
	assert.Nil(t, tx.Categorization)
	assert.Nil(t, tx.Anomaly)

	stored, err := store.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, 42.5, stored.Amount)

	require.Len(t, enricher.created, 1)
	assert.Equal(t, "tx-1", enricher.created[0].TransactionID)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   CreateInput
	}{
		{"negative amount", CreateInput{Date: time.Now(), Amount: -1, Type: domain.TransactionTypeExpense}},
		{"bad type", CreateInput{Date: time.Now(), Amount: 1, Type: "Transfer"}},
		{"missing date", CreateInput{Amount: 1, Type: domain.TransactionTypeIncome}},
		{"bad payment mode", CreateInput{Date: time.Now(), Amount: 1, Type: domain.TransactionTypeIncome, PaymentMode: "Cheque"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			enricher := &recordingEnricher{}
			_, err := newService(store, enricher).Create(context.Background(), "u1", tt.in)

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Empty(t, enricher.created)
		})
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(store, nil)

	for d := 1; d <= 3; d++ {
		_, err := svc.Create(ctx, "u1", CreateInput{
			Date:   time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC),
			Amount: float64(d),
			Type:   domain.TransactionTypeExpense,
		})
		require.NoError(t, err)
	}

	txs, err := svc.List(ctx, "u1", nil, nil, 0)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "tx-3", txs[0].TransactionID)

	start := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	txs, err = svc.List(ctx, "u1", &start, nil, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	require.NoError(t, svc.Delete(ctx, "u1", "tx-3"))
	assert.ErrorIs(t, svc.Delete(ctx, "u1", "tx-3"), domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "u2", "tx-2"), domain.ErrNotFound)

	_, err = svc.List(ctx, "", nil, nil, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpsertUser_KeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(store, nil)

	first, err := svc.UpsertUser(ctx, &domain.User{UserID: "u1", MonthlyIncome: 3000})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) }
	second, err := svc.UpsertUser(ctx, &domain.User{UserID: "u1", MonthlyIncome: 4000})
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	got, err := svc.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4000.0, got.MonthlyIncome)

	_, err = svc.UpsertUser(ctx, &domain.User{UserID: "u1", MonthlyIncome: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
