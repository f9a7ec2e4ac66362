// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"segment_server/core/domain"
	"segment_server/core/port/out"
)

// PurchaseAdapter reads purchase history from PostgreSQL.
type PurchaseAdapter struct {
	db *sqlx.DB
}

var _ out.BatchPurchaseAccessor = (*PurchaseAdapter)(nil)

func NewPurchaseAdapter(db *sqlx.DB) *PurchaseAdapter {
	return &PurchaseAdapter{db: db}
}

// purchaseRow represents the database row for purchases.
type purchaseRow struct {
	CustomerID   string         `db:"customer_id"`
	ProductID    string         `db:"product_id"`
	ProductName  sql.NullString `db:"product_name"`
	Category     string         `db:"category"`
	Quantity     int            `db:"quantity"`
	Price        float64        `db:"price"`
	PurchaseDate time.Time      `db:"purchase_date"`
}

func (r *purchaseRow) toEntity() domain.Purchase {
	p := domain.Purchase{
		ProductID:    r.ProductID,
		Category:     r.Category,
		Quantity:     r.Quantity,
		Price:        r.Price,
		PurchaseDate: r.PurchaseDate.UTC(),
	}
	if r.ProductName.Valid {
		p.ProductName = r.ProductName.String
	}
	return p
}

const purchaseColumns = `customer_id, product_id, product_name, category, quantity, price, purchase_date`

// GetPurchases returns the history of one customer, oldest first. A customer
// with no row in customers is reported as out.ErrCustomerNotFound.
func (a *PurchaseAdapter) GetPurchases(ctx context.Context, customerID string) ([]domain.Purchase, error) {
	if customerID == "" {
		return nil, ErrInvalidInput
	}

	var rows []purchaseRow
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE customer_id = $1 ORDER BY purchase_date ASC`
	if err := a.db.SelectContext(ctx, &rows, query, customerID); err != nil {
		return nil, fmt.Errorf("failed to get purchases: %w", err)
	}

	if len(rows) == 0 {
		var exists bool
		if err := a.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)`, customerID); err != nil {
			return nil, fmt.Errorf("failed to check customer: %w", err)
		}
		if !exists {
			return nil, out.ErrCustomerNotFound
		}
	}

	purchases := make([]domain.Purchase, len(rows))
	for i := range rows {
		purchases[i] = rows[i].toEntity()
	}
	return purchases, nil
}

// GetPurchasesBatch loads many histories with a single query per table.
// Unknown customers are absent from the result.
func (a *PurchaseAdapter) GetPurchasesBatch(ctx context.Context, customerIDs []string) (map[string][]domain.Purchase, error) {
	result := make(map[string][]domain.Purchase, len(customerIDs))
	if len(customerIDs) == 0 {
		return result, nil
	}

	var known []string
	if err := a.db.SelectContext(ctx, &known, `SELECT id FROM customers WHERE id = ANY($1)`, pq.Array(customerIDs)); err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	for _, id := range known {
		result[id] = []domain.Purchase{}
	}

	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE customer_id = ANY($1) ORDER BY customer_id, purchase_date ASC`
	rows, err := a.db.QueryxContext(ctx, query, pq.Array(customerIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get purchases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row purchaseRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		result[row.CustomerID] = append(result[row.CustomerID], row.toEntity())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read purchases: %w", err)
	}

	return result, nil
}
