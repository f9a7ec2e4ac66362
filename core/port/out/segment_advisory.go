package out

import (
	"context"

	"segment_server/core/domain"
)

const AnalysisCustomerProfiling = "customer_profiling"

// AdvisoryRequest is sent to the external profiling model.
type AdvisoryRequest struct {
	AnalysisType string                   `json:"analysis_type"`
	CustomerID   string                   `json:"customer_id"`
	Purchases    []domain.Purchase        `json:"purchase_history"`
	Features     *domain.CustomerFeatures `json:"features,omitempty"`
}

type SpendingPatterns struct {
	AverageOrderValue   float64  `json:"averageOrderValue"`
	PreferredCategories []string `json:"preferredCategories"`
	ShoppingFrequency   string   `json:"shoppingFrequency"`
	PricePreference     string   `json:"pricePreference"`
}

type BehavioralInsights struct {
	PlannedShopper  bool `json:"plannedShopper"`
	BrandLoyal      bool `json:"brandLoyal"`
	SeasonalShopper bool `json:"seasonalShopper"`
	BulkBuyer       bool `json:"bulkBuyer"`
}

type CustomerProfile struct {
	SpendingPatterns   *SpendingPatterns   `json:"spendingPatterns"`
	BehavioralInsights *BehavioralInsights `json:"behavioralInsights"`
}

// AdvisoryResult mirrors the model's JSON answer.
type AdvisoryResult struct {
	Success    bool             `json:"success"`
	Profile    *CustomerProfile `json:"customerProfile"`
	Confidence float64          `json:"confidence"`
	Error      string           `json:"error,omitempty"`
}

// AdvisoryClassifier is an optional external model that profiles a customer.
type AdvisoryClassifier interface {
	Analyze(ctx context.Context, req *AdvisoryRequest) (*AdvisoryResult, error)
}
