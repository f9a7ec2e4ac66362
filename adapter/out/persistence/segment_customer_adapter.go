package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"segment_server/core/port/out"
)

// CustomerAdapter enumerates customers using pgx directly.
type CustomerAdapter struct {
	pool *pgxpool.Pool
}

var _ out.CustomerLister = (*CustomerAdapter)(nil)

func NewCustomerAdapter(pool *pgxpool.Pool) *CustomerAdapter {
	return &CustomerAdapter{pool: pool}
}

// ListCustomerIDs returns every customer ID in insertion order.
func (a *CustomerAdapter) ListCustomerIDs(ctx context.Context) ([]string, error) {
	rows, err := a.pool.Query(ctx, `SELECT id FROM customers ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan customers: %w", err)
	}
	return ids, nil
}
