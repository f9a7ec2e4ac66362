package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func TestPurchaseRowToEntity(t *testing.T) {
	local := time.FixedZone("KST", 9*3600)
	row := purchaseRow{
		CustomerID:   "c-1",
		ProductID:    "p-1",
		ProductName:  sql.NullString{String: "Oat milk", Valid: true},
		Category:     "Dairy",
		Quantity:     2,
		Price:        3.5,
		PurchaseDate: time.Date(2024, 5, 1, 9, 0, 0, 0, local),
	}

	p := row.toEntity()
	if p.ProductName != "Oat milk" || p.Amount() != 7 {
		t.Errorf("unexpected purchase %+v", p)
	}
	if p.PurchaseDate.Location() != time.UTC || p.PurchaseDate.Hour() != 0 {
		t.Errorf("purchase date should be normalized to UTC, got %v", p.PurchaseDate)
	}

	row.ProductName = sql.NullString{}
	if got := row.toEntity(); got.ProductName != "" {
		t.Errorf("null product name should map to empty, got %q", got.ProductName)
	}
}

func TestGetPurchasesRejectsEmptyID(t *testing.T) {
	a := NewPurchaseAdapter(nil)
	if _, err := a.GetPurchases(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}
