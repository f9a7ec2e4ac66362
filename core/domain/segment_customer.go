package domain

import "time"

// Purchase is a single line of a customer's purchase history.
type Purchase struct {
	ProductID    string    `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	Category     string    `json:"category"`
	Quantity     int       `json:"quantity"`
	Price        float64   `json:"price"`
	PurchaseDate time.Time `json:"purchase_date"`
}

// Amount is price times quantity.
func (p Purchase) Amount() float64 {
	return p.Price * float64(p.Quantity)
}

type ChurnRisk string

const (
	ChurnRiskLow    ChurnRisk = "low"
	ChurnRiskMedium ChurnRisk = "medium"
	ChurnRiskHigh   ChurnRisk = "high"
)

// Ordinal is the numeric encoding used in feature vectors.
func (r ChurnRisk) Ordinal() float64 {
	switch r {
	case ChurnRiskHigh:
		return 2
	case ChurnRiskMedium:
		return 1
	default:
		return 0
	}
}

// CustomerFeatures is derived from purchase history on every classification call.
// It is never stored on its own; assignments carry a snapshot.
type CustomerFeatures struct {
	CustomerID            string    `json:"customer_id"`
	TotalPurchases        int       `json:"total_purchases"`
	TotalSpent            float64   `json:"total_spent"`
	AverageOrderValue     float64   `json:"average_order_value"`
	PurchaseFrequency     float64   `json:"purchase_frequency"`
	DaysSinceLastPurchase int       `json:"days_since_last_purchase"`
	FavoriteCategories    []string  `json:"favorite_categories"`
	LifetimeValue         float64   `json:"lifetime_value"`
	ChurnRisk             ChurnRisk `json:"churn_risk"`
	EngagementLevel       int       `json:"engagement_level"`

	PreferredShoppingDays  []string `json:"preferred_shopping_days"`
	PreferredShoppingTimes []string `json:"preferred_shopping_times"`
}

type AnalysisDepth string

const (
	AnalysisBasic         AnalysisDepth = "basic"
	AnalysisDetailed      AnalysisDepth = "detailed"
	AnalysisComprehensive AnalysisDepth = "comprehensive"
)

// ParseAnalysisDepth falls back to detailed for unknown values.
func ParseAnalysisDepth(s string) AnalysisDepth {
	switch AnalysisDepth(s) {
	case AnalysisBasic, AnalysisDetailed, AnalysisComprehensive:
		return AnalysisDepth(s)
	default:
		return AnalysisDetailed
	}
}
