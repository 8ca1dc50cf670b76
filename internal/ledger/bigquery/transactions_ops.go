package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"google.golang.org/api/iterator"
)

// InsertTransaction writes a single transaction with a DML INSERT so that the
// enrichment UPDATE that follows is not blocked by the streaming buffer.
func (s *Store) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	amount := new(big.Rat).SetFloat64(tx.Amount)
	if amount == nil {
		return fmt.Errorf("InsertTransaction: amount %v is not a finite number", tx.Amount)
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (
			transaction_id, user_id, transaction_date, amount, type, category,
			merchant_name, description, payment_mode, is_recurring,
			suggested_category, category_confidence, anomaly_score, is_anomaly, anomaly_reason,
			created_ts
		)
		VALUES (
			@transaction_id, @user_id, @transaction_date, @amount, @type, @category,
			@merchant_name, @description, @payment_mode, @is_recurring,
			@suggested_category, @category_confidence, @anomaly_score, @is_anomaly, @anomaly_reason,
			@created_ts
		)
	`, s.table(transactionsTable))

	params := []bigquery.QueryParameter{
		{Name: "transaction_id", Value: tx.TransactionID},
		{Name: "user_id", Value: tx.UserID},
		{Name: "transaction_date", Value: tx.Date},
		{Name: "amount", Value: amount},
		{Name: "type", Value: string(tx.Type)},
		{Name: "category", Value: tx.Category},
		{Name: "merchant_name", Value: nullString(tx.MerchantName)},
		{Name: "description", Value: nullString(tx.Description)},
		{Name: "payment_mode", Value: string(tx.PaymentMode)},
		{Name: "is_recurring", Value: tx.Recurring},
		{Name: "created_ts", Value: tx.CreatedAt},
	}
	params = append(params, enrichmentParams(tx)...)

	return s.runDML(ctx, "InsertTransaction", sql, params)
}

// UpdateEnrichment fills the enrichment columns of one transaction that are
// still unset. suggested_category and anomaly_reason mark their groups as
// stored; SET expressions read the row as it was before the update.
func (s *Store) UpdateEnrichment(ctx context.Context, tx *domain.Transaction) error {
	params := append(enrichmentParams(tx),
		bigquery.QueryParameter{Name: "updated_ts", Value: time.Now()},
		bigquery.QueryParameter{Name: "transaction_id", Value: tx.TransactionID},
	)
	return s.runDML(ctx, "UpdateEnrichment", updateEnrichmentSQL(s.table(transactionsTable)), params)
}

func updateEnrichmentSQL(table string) string {
	return fmt.Sprintf(`
		UPDATE %s
		SET suggested_category = COALESCE(suggested_category, @suggested_category),
		    category_confidence = IF(suggested_category IS NULL, @category_confidence, category_confidence),
		    anomaly_score = IF(anomaly_reason IS NULL AND @anomaly_reason IS NOT NULL, @anomaly_score, anomaly_score),
		    is_anomaly = IF(anomaly_reason IS NULL AND @anomaly_reason IS NOT NULL, @is_anomaly, is_anomaly),
		    anomaly_reason = COALESCE(anomaly_reason, @anomaly_reason),
		    updated_ts = @updated_ts
		WHERE transaction_id = @transaction_id
	`, table)
}

// DeleteTransaction removes a transaction owned by userID.
func (s *Store) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	existing, err := s.GetTransaction(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	if existing.UserID != userID {
		return fmt.Errorf("DeleteTransaction: transaction %s: %w", transactionID, domain.ErrNotFound)
	}

	sql := fmt.Sprintf(`
		DELETE FROM %s
		WHERE transaction_id = @transaction_id AND user_id = @user_id
	`, s.table(transactionsTable))

	return s.runDML(ctx, "DeleteTransaction", sql, []bigquery.QueryParameter{
		{Name: "transaction_id", Value: transactionID},
		{Name: "user_id", Value: userID},
	})
}

// GetTransaction reads one transaction by id.
func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE transaction_id = @transaction_id
		LIMIT 1
	`, transactionColumns, s.table(transactionsTable))

	rows, err := s.queryTransactions(ctx, "GetTransaction", sql, []bigquery.QueryParameter{
		{Name: "transaction_id", Value: transactionID},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("GetTransaction: transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	return rows[0], nil
}

// ListTransactions returns matching transactions newest first.
func (s *Store) ListTransactions(ctx context.Context, filter ledger.Filter, limit int) ([]*domain.Transaction, error) {
	where, params := buildWhere(filter)
	sql := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s
		ORDER BY transaction_date DESC, transaction_id
	`, transactionColumns, s.table(transactionsTable), where)
	if limit > 0 {
		sql += "LIMIT @limit"
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: limit})
	}

	return s.queryTransactions(ctx, "ListTransactions", sql, params)
}

// CountTransactions counts matching transactions.
func (s *Store) CountTransactions(ctx context.Context, filter ledger.Filter) (int64, error) {
	where, params := buildWhere(filter)
	q := s.client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s
		%s
	`, s.table(transactionsTable), where))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountTransactions: query read: %w", err)
	}
	var row struct {
		N int64 `bigquery:"n"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("CountTransactions: iter next: %w", err)
	}
	return row.N, nil
}

func (s *Store) queryTransactions(ctx context.Context, op, sql string, params []bigquery.QueryParameter) ([]*domain.Transaction, error) {
	q := s.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", op, err)
	}

	var txs []*domain.Transaction
	for {
		var r transactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iter next: %w", op, err)
		}
		txs = append(txs, r.toDomain())
	}
	return txs, nil
}
