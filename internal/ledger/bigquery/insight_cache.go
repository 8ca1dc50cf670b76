package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"google.golang.org/api/iterator"
)

// Insights are stored as a JSON STRING column.
type insightCacheRow struct {
	UserID      string    `bigquery:"user_id"`
	Insights    string    `bigquery:"insights"`
	GeneratedAt time.Time `bigquery:"generated_at"`
	ExpireAt    time.Time `bigquery:"expire_at"`
}

// GetInsightCache returns nil, nil when the user has no cached entry.
func (s *Store) GetInsightCache(ctx context.Context, userID string) (*domain.InsightCacheEntry, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT user_id, insights, generated_at, expire_at
		FROM %s
		WHERE user_id = @user_id
		LIMIT 1
	`, s.table(insightCacheTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetInsightCache: query read: %w", err)
	}

	var r insightCacheRow
	err = it.Next(&r)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetInsightCache: iter next: %w", err)
	}

	var insights []domain.Insight
	if err := json.Unmarshal([]byte(r.Insights), &insights); err != nil {
		return nil, fmt.Errorf("GetInsightCache: decoding insights: %w", err)
	}
	return &domain.InsightCacheEntry{
		UserID:      r.UserID,
		Insights:    insights,
		GeneratedAt: r.GeneratedAt,
		ExpireAt:    r.ExpireAt,
	}, nil
}

// UpsertInsightCache replaces the user's cached entry.
func (s *Store) UpsertInsightCache(ctx context.Context, entry *domain.InsightCacheEntry) error {
	payload, err := json.Marshal(entry.Insights)
	if err != nil {
		return fmt.Errorf("UpsertInsightCache: encoding insights: %w", err)
	}

	sql := fmt.Sprintf(`
		MERGE %s T
		USING (SELECT @user_id AS user_id) S
		ON T.user_id = S.user_id
		WHEN MATCHED THEN
		  UPDATE SET insights = @insights, generated_at = @generated_at, expire_at = @expire_at
		WHEN NOT MATCHED THEN
		  INSERT (user_id, insights, generated_at, expire_at)
		  VALUES (@user_id, @insights, @generated_at, @expire_at)
	`, s.table(insightCacheTable))

	return s.runDML(ctx, "UpsertInsightCache", sql, []bigquery.QueryParameter{
		{Name: "user_id", Value: entry.UserID},
		{Name: "insights", Value: string(payload)},
		{Name: "generated_at", Value: entry.GeneratedAt},
		{Name: "expire_at", Value: entry.ExpireAt},
	})
}
