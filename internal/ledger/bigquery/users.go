package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"google.golang.org/api/iterator"
)

type userRow struct {
	UserID        string                 `bigquery:"user_id"`
	Name          bigquery.NullString    `bigquery:"name"`
	Email         bigquery.NullString    `bigquery:"email"`
	MonthlyIncome bigquery.NullFloat64   `bigquery:"monthly_income"`
	CreatedTS     time.Time              `bigquery:"created_ts"`
	UpdatedTS     bigquery.NullTimestamp `bigquery:"updated_ts"`
}

// GetUser reads a user profile.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT user_id, name, email, monthly_income, created_ts, updated_ts
		FROM %s
		WHERE user_id = @user_id
		LIMIT 1
	`, s.table(usersTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetUser: query read: %w", err)
	}

	var r userRow
	err = it.Next(&r)
	if err == iterator.Done {
		return nil, fmt.Errorf("GetUser: user %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetUser: iter next: %w", err)
	}

	u := &domain.User{
		UserID:        r.UserID,
		Name:          r.Name.StringVal,
		Email:         r.Email.StringVal,
		MonthlyIncome: r.MonthlyIncome.Float64,
		CreatedAt:     r.CreatedTS,
	}
	if r.UpdatedTS.Valid {
		u.UpdatedAt = r.UpdatedTS.Timestamp
	}
	return u, nil
}

// UpsertUser inserts or replaces a user profile with a MERGE.
func (s *Store) UpsertUser(ctx context.Context, user *domain.User) error {
	sql := fmt.Sprintf(`
		MERGE %s T
		USING (SELECT @user_id AS user_id) S
		ON T.user_id = S.user_id
		WHEN MATCHED THEN
		  UPDATE SET name = @name, email = @email, monthly_income = @monthly_income, updated_ts = @now
		WHEN NOT MATCHED THEN
		  INSERT (user_id, name, email, monthly_income, created_ts, updated_ts)
		  VALUES (@user_id, @name, @email, @monthly_income, @now, @now)
	`, s.table(usersTable))

	return s.runDML(ctx, "UpsertUser", sql, []bigquery.QueryParameter{
		{Name: "user_id", Value: user.UserID},
		{Name: "name", Value: nullString(user.Name)},
		{Name: "email", Value: nullString(user.Email)},
		{Name: "monthly_income", Value: user.MonthlyIncome},
		{Name: "now", Value: time.Now()},
	})
}
