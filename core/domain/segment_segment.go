package domain

import "time"

const (
	SegmentChampions          = "champions"
	SegmentLoyal              = "loyal"
	SegmentPotentialLoyalists = "potential-loyalists"
	SegmentNew                = "new"
	SegmentNeedAttention      = "need-attention"
	SegmentAtRisk             = "at-risk"
	SegmentCantLose           = "cant-lose"
	SegmentHibernating        = "hibernating"
	SegmentLost               = "lost"
)

// SegmentIDs lists every catalog segment in display order.
var SegmentIDs = []string{
	SegmentChampions,
	SegmentLoyal,
	SegmentPotentialLoyalists,
	SegmentNew,
	SegmentNeedAttention,
	SegmentAtRisk,
	SegmentCantLose,
	SegmentHibernating,
	SegmentLost,
}

// IsSegmentID reports whether id names a catalog segment.
func IsSegmentID(id string) bool {
	for _, s := range SegmentIDs {
		if s == id {
			return true
		}
	}
	return false
}

// Range is an inclusive bound; a nil side is open.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// SegmentCriteria are the descriptive RFM thresholds of a segment.
type SegmentCriteria struct {
	Recency   Range `json:"recency"`
	Frequency Range `json:"frequency"`
	Monetary  Range `json:"monetary"`
}

type SegmentCharacteristics struct {
	CategoryAffinities   []string `json:"category_affinities"`
	BrandAffinity        string   `json:"brand_affinity"`
	PricePreference      string   `json:"price_preference"`
	ShoppingPattern      string   `json:"shopping_pattern"`
	LoyaltyTier          string   `json:"loyalty_tier"`
	SeasonalBehavior     bool     `json:"seasonal_behavior"`
	BulkBuyer            bool     `json:"bulk_buyer"`
	PromotionSensitivity string   `json:"promotion_sensitivity"`
}

type RecommendationStrategy struct {
	Priority           string   `json:"priority"`
	RecommendationType string   `json:"recommendation_type"`
	Cadence            string   `json:"cadence"`
	Channels           []string `json:"channels"`
	IncentiveType      string   `json:"incentive_type"`
	ContentTone        string   `json:"content_tone"`
}

// Segment is a catalog entry. Statistics are running means over every
// assignment made since startup.
type Segment struct {
	ID          string          `json:"segment_id"`
	Name        string          `json:"segment_name"`
	Description string          `json:"description"`
	Criteria    SegmentCriteria `json:"criteria"`

	CustomerCount            int     `json:"customer_count"`
	AverageOrderValue        float64 `json:"average_order_value"`
	AveragePurchaseFrequency float64 `json:"average_purchase_frequency"`
	AverageEngagement        float64 `json:"average_engagement"`
	Departures               int     `json:"departures"`

	Characteristics SegmentCharacteristics `json:"characteristics"`
	Recommendations RecommendationStrategy `json:"recommendations"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SegmentPerformanceMetrics is derived from a segment's running statistics.
type SegmentPerformanceMetrics struct {
	SegmentID                string    `json:"segment_id"`
	CustomerCount            int       `json:"customer_count"`
	ConversionRate           float64   `json:"conversion_rate"`
	AverageRevenue           float64   `json:"average_revenue"`
	CustomerRetention        float64   `json:"customer_retention"`
	GrowthRate               float64   `json:"growth_rate"`
	ChurnRate                float64   `json:"churn_rate"`
	EngagementScore          float64   `json:"engagement_score"`
	RecommendationAcceptance float64   `json:"recommendation_acceptance"`
	ComputedAt               time.Time `json:"computed_at"`
}
