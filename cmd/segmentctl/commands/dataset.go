package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"

	"segment_server/core/domain"
	"segment_server/core/port/out"
)

// datasetFile is the on-disk layout:
//
//	customers:
//	  - customer_id: c-1
//	    purchases:
//	      - product_id: p-1
//	        category: grocery
//	        quantity: 2
//	        price: 4.5
//	        purchase_date: 2024-03-01T10:00:00Z
type datasetFile struct {
	Customers []customerRecord `json:"customers" yaml:"customers"`
}

type customerRecord struct {
	CustomerID string           `json:"customer_id" yaml:"customer_id"`
	Purchases  []purchaseRecord `json:"purchases" yaml:"purchases"`
}

type purchaseRecord struct {
	ProductID    string  `json:"product_id" yaml:"product_id"`
	ProductName  string  `json:"product_name" yaml:"product_name"`
	Category     string  `json:"category" yaml:"category"`
	Quantity     int     `json:"quantity" yaml:"quantity"`
	Price        float64 `json:"price" yaml:"price"`
	PurchaseDate string  `json:"purchase_date" yaml:"purchase_date"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Dataset is an in-memory purchase store loaded from a file.
type Dataset struct {
	order     []string
	purchases map[string][]domain.Purchase
}

var (
	_ out.BatchPurchaseAccessor = (*Dataset)(nil)
	_ out.CustomerLister        = (*Dataset)(nil)
)

// LoadDataset reads a JSON or YAML dataset, choosing the parser by extension.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	var file datasetFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	return newDataset(file)
}

func newDataset(file datasetFile) (*Dataset, error) {
	ds := &Dataset{purchases: make(map[string][]domain.Purchase, len(file.Customers))}
	for _, c := range file.Customers {
		id := strings.TrimSpace(c.CustomerID)
		if id == "" {
			return nil, fmt.Errorf("customer without customer_id")
		}
		if _, dup := ds.purchases[id]; dup {
			return nil, fmt.Errorf("duplicate customer %s", id)
		}

		history := make([]domain.Purchase, 0, len(c.Purchases))
		for i, p := range c.Purchases {
			at, err := parseDate(p.PurchaseDate)
			if err != nil {
				return nil, fmt.Errorf("customer %s purchase %d: %w", id, i, err)
			}
			history = append(history, domain.Purchase{
				ProductID:    p.ProductID,
				ProductName:  p.ProductName,
				Category:     p.Category,
				Quantity:     p.Quantity,
				Price:        p.Price,
				PurchaseDate: at,
			})
		}
		sort.Slice(history, func(i, j int) bool {
			return history[i].PurchaseDate.Before(history[j].PurchaseDate)
		})

		ds.order = append(ds.order, id)
		ds.purchases[id] = history
	}
	return ds, nil
}

func (d *Dataset) Len() int { return len(d.order) }

func (d *Dataset) GetPurchases(_ context.Context, customerID string) ([]domain.Purchase, error) {
	history, ok := d.purchases[customerID]
	if !ok {
		return nil, out.ErrCustomerNotFound
	}
	return history, nil
}

func (d *Dataset) GetPurchasesBatch(_ context.Context, customerIDs []string) (map[string][]domain.Purchase, error) {
	result := make(map[string][]domain.Purchase, len(customerIDs))
	for _, id := range customerIDs {
		if history, ok := d.purchases[id]; ok {
			result[id] = history
		}
	}
	return result, nil
}

func (d *Dataset) ListCustomerIDs(context.Context) ([]string, error) {
	return append([]string(nil), d.order...), nil
}
