package out

import (
	"context"
	"errors"

	"segment_server/core/domain"
)

// ErrCustomerNotFound is returned by accessors for unknown customer IDs.
var ErrCustomerNotFound = errors.New("customer not found")

// PurchaseAccessor loads a customer's purchase history.
type PurchaseAccessor interface {
	GetPurchases(ctx context.Context, customerID string) ([]domain.Purchase, error)
}

// CustomerLister enumerates every known customer for "segment all" runs.
type CustomerLister interface {
	ListCustomerIDs(ctx context.Context) ([]string, error)
}

// BatchPurchaseAccessor is optionally implemented by accessors that can load
// many histories in one round trip. IDs missing from the result are unknown.
type BatchPurchaseAccessor interface {
	PurchaseAccessor
	GetPurchasesBatch(ctx context.Context, customerIDs []string) (map[string][]domain.Purchase, error)
}
