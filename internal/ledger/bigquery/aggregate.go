package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"google.golang.org/api/iterator"
)

// Aggregate runs a grouped summation in BigQuery.
func (s *Store) Aggregate(ctx context.Context, aq ledger.AggregateQuery) ([]ledger.Group, error) {
	sql, params, err := buildAggregateSQL(s.table(transactionsTable), aq)
	if err != nil {
		return nil, fmt.Errorf("Aggregate: %w", err)
	}

	q := s.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Aggregate: query read: %w", err)
	}

	var groups []ledger.Group
	for {
		row := map[string]bigquery.Value{}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Aggregate: iter next: %w", err)
		}
		groups = append(groups, groupFromRow(row))
	}
	return groups, nil
}
