package segmentation

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"segment_server/core/domain"
)

var ErrUnknownSegment = errors.New("unknown segment")

type segmentDefinition struct {
	id          string
	name        string
	description string
	criteria    domain.SegmentCriteria
	retention   float64
}

func bound(v float64) *float64 { return &v }

var segmentDefinitions = []segmentDefinition{
	{
		id:          domain.SegmentChampions,
		name:        "Champions",
		description: "Bought recently, buy often and spend the most",
		criteria: domain.SegmentCriteria{
			Recency:   domain.Range{Max: bound(30)},
			Frequency: domain.Range{Min: bound(4)},
			Monetary:  domain.Range{Min: bound(1000)},
		},
		retention: 0.92,
	},
	{
		id:          domain.SegmentLoyal,
		name:        "Loyal Customers",
		description: "Spend good money and buy regularly",
		criteria: domain.SegmentCriteria{
			Frequency: domain.Range{Min: bound(2)},
			Monetary:  domain.Range{Min: bound(500)},
		},
		retention: 0.85,
	},
	{
		id:          domain.SegmentPotentialLoyalists,
		name:        "Potential Loyalists",
		description: "Recent customers with average frequency",
		criteria: domain.SegmentCriteria{
			Recency:   domain.Range{Max: bound(60)},
			Frequency: domain.Range{Min: bound(1)},
		},
		retention: 0.72,
	},
	{
		id:          domain.SegmentNew,
		name:        "New Customers",
		description: "Bought for the first time recently",
		criteria: domain.SegmentCriteria{
			Recency:   domain.Range{Max: bound(30)},
			Frequency: domain.Range{Max: bound(2)},
		},
		retention: 0.6,
	},
	{
		id:          domain.SegmentNeedAttention,
		name:        "Need Attention",
		description: "Above average value but have not bought very recently",
		criteria: domain.SegmentCriteria{
			Recency:   domain.Range{Min: bound(30), Max: bound(90)},
			Frequency: domain.Range{Min: bound(1)},
			Monetary:  domain.Range{Min: bound(300)},
		},
		retention: 0.65,
	},
	{
		id:          domain.SegmentAtRisk,
		name:        "At Risk",
		description: "Spent good money but have not purchased for a while",
		criteria: domain.SegmentCriteria{
			Recency:  domain.Range{Min: bound(90)},
			Monetary: domain.Range{Min: bound(300)},
		},
		retention: 0.45,
	},
	{
		id:          domain.SegmentCantLose,
		name:        "Can't Lose Them",
		description: "Made the biggest purchases but have not returned for a long time",
		criteria: domain.SegmentCriteria{
			Recency:  domain.Range{Min: bound(120)},
			Monetary: domain.Range{Min: bound(800)},
		},
		retention: 0.4,
	},
	{
		id:          domain.SegmentHibernating,
		name:        "Hibernating",
		description: "Last purchase was long ago",
		criteria: domain.SegmentCriteria{
			Recency: domain.Range{Min: bound(180)},
		},
		retention: 0.25,
	},
	{
		id:          domain.SegmentLost,
		name:        "Lost",
		description: "No purchase for over a year",
		criteria: domain.SegmentCriteria{
			Recency: domain.Range{Min: bound(365)},
		},
		retention: 0.1,
	},
}

type segmentProfile struct {
	characteristics domain.SegmentCharacteristics
	strategy        domain.RecommendationStrategy
}

var segmentProfiles = map[string]segmentProfile{
	domain.SegmentChampions: {
		characteristics: domain.SegmentCharacteristics{
			CategoryAffinities:   []string{"Premium", "Organic", "Gourmet"},
			BrandAffinity:        "high",
			PricePreference:      "premium",
			ShoppingPattern:      "frequent",
			LoyaltyTier:          "champion",
			SeasonalBehavior:     true,
			BulkBuyer:            true,
			PromotionSensitivity: "low",
		},
		strategy: domain.RecommendationStrategy{
			Priority:           "retention",
			RecommendationType: "personalized",
			Cadence:            "weekly",
			Channels:           []string{"email", "push", "in-app"},
			IncentiveType:      "loyalty-points",
			ContentTone:        "personalized",
		},
	},
	domain.SegmentLoyal: {
		characteristics: domain.SegmentCharacteristics{
			CategoryAffinities:   []string{"Essentials", "Family", "Health"},
			BrandAffinity:        "high",
			PricePreference:      "mid-range",
			ShoppingPattern:      "regular",
			LoyaltyTier:          "loyal",
			BulkBuyer:            true,
			PromotionSensitivity: "medium",
		},
		strategy: domain.RecommendationStrategy{
			Priority:           "upsell",
			RecommendationType: "complementary",
			Cadence:            "bi-weekly",
			Channels:           []string{"email", "in-app"},
			IncentiveType:      "bundle",
			ContentTone:        "informative",
		},
	},
	domain.SegmentPotentialLoyalists: {
		characteristics: domain.SegmentCharacteristics{
			CategoryAffinities:   []string{"Variety", "Trending", "Seasonal"},
			BrandAffinity:        "medium",
			PricePreference:      "mid-range",
			ShoppingPattern:      "occasional",
			LoyaltyTier:          "returning",
			SeasonalBehavior:     true,
			PromotionSensitivity: "high",
		},
		strategy: domain.RecommendationStrategy{
			Priority:           "cross-sell",
			RecommendationType: "discovery",
			Cadence:            "weekly",
			Channels:           []string{"email", "push"},
			IncentiveType:      "discount",
			ContentTone:        "promotional",
		},
	},
	domain.SegmentNew: {
		characteristics: domain.SegmentCharacteristics{
			CategoryAffinities:   []string{"Popular", "Essentials", "Promotions"},
			BrandAffinity:        "low",
			PricePreference:      "budget",
			ShoppingPattern:      "rare",
			LoyaltyTier:          "new",
			PromotionSensitivity: "high",
		},
		strategy: domain.RecommendationStrategy{
			Priority:           "acquisition",
			RecommendationType: "trending",
			Cadence:            "weekly",
			Channels:           []string{"email", "push"},
			IncentiveType:      "discount",
			ContentTone:        "promotional",
		},
	},
	domain.SegmentAtRisk: {
		characteristics: domain.SegmentCharacteristics{
			CategoryAffinities:   []string{"Essentials", "Staples"},
			BrandAffinity:        "medium",
			PricePreference:      "mid-range",
			ShoppingPattern:      "occasional",
			LoyaltyTier:          "returning",
			PromotionSensitivity: "high",
		},
		strategy: domain.RecommendationStrategy{
			Priority:           "reactivation",
			RecommendationType: "replenishment",
			Cadence:            "bi-weekly",
			Channels:           []string{"email", "sms"},
			IncentiveType:      "free-shipping",
			ContentTone:        "urgent",
		},
	},
}

func profileFor(id string) segmentProfile {
	if p, ok := segmentProfiles[id]; ok {
		return p
	}
	return segmentProfiles[domain.SegmentPotentialLoyalists]
}

type catalogEntry struct {
	mu        sync.Mutex
	seg       domain.Segment
	retention float64
}

// Catalog holds the fixed segment definitions and their running statistics.
// Each entry has its own lock, so updates to different segments never contend.
type Catalog struct {
	entries map[string]*catalogEntry
	order   []string
}

func NewCatalog(now time.Time) *Catalog {
	c := &Catalog{
		entries: make(map[string]*catalogEntry, len(segmentDefinitions)),
		order:   make([]string, 0, len(segmentDefinitions)),
	}
	for _, def := range segmentDefinitions {
		p := profileFor(def.id)
		c.entries[def.id] = &catalogEntry{
			retention: def.retention,
			seg: domain.Segment{
				ID:              def.id,
				Name:            def.name,
				Description:     def.description,
				Criteria:        def.criteria,
				Characteristics: p.characteristics,
				Recommendations: p.strategy,
				CreatedAt:       now,
				UpdatedAt:       now,
			},
		}
		c.order = append(c.order, def.id)
	}
	return c
}

// Get returns a copy of the segment.
func (c *Catalog) Get(id string) (domain.Segment, bool) {
	e, ok := c.entries[id]
	if !ok {
		return domain.Segment{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seg, true
}

// Name returns the display name, or the id itself for unknown segments.
func (c *Catalog) Name(id string) string {
	if e, ok := c.entries[id]; ok {
		return e.seg.Name
	}
	return id
}

// List returns copies of every segment in catalog order.
func (c *Catalog) List() []domain.Segment {
	out := make([]domain.Segment, 0, len(c.order))
	for _, id := range c.order {
		seg, _ := c.Get(id)
		out = append(out, seg)
	}
	return out
}

// Order returns the segment ids in catalog order.
func (c *Catalog) Order() []string {
	return append([]string(nil), c.order...)
}

// Record folds one assignment into the segment's running means.
func (c *Catalog) Record(id string, f *domain.CustomerFeatures, at time.Time) {
	e, ok := c.entries[id]
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seg.CustomerCount++
	n := float64(e.seg.CustomerCount)
	e.seg.AverageOrderValue = runningMean(e.seg.AverageOrderValue, f.AverageOrderValue, n)
	e.seg.AveragePurchaseFrequency = runningMean(e.seg.AveragePurchaseFrequency, f.PurchaseFrequency, n)
	e.seg.AverageEngagement = runningMean(e.seg.AverageEngagement, float64(f.EngagementLevel), n)
	e.seg.UpdatedAt = at
}

// RecordDeparture counts a customer leaving the segment.
func (c *Catalog) RecordDeparture(id string, at time.Time) {
	e, ok := c.entries[id]
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seg.Departures++
	e.seg.UpdatedAt = at
}

func runningMean(avg, x, n float64) float64 {
	return (avg*(n-1) + x) / n
}

// Performance derives segment KPIs from the running statistics. Until a
// segment has seen any customer, churn falls back to the segment's baseline
// retention.
func (c *Catalog) Performance(id string, now time.Time) (*domain.SegmentPerformanceMetrics, error) {
	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSegment, id)
	}
	e.mu.Lock()
	seg := e.seg
	retention := e.retention
	e.mu.Unlock()

	churn := 1 - retention
	growth := 0.0
	if seen := seg.CustomerCount + seg.Departures; seen > 0 {
		churn = float64(seg.Departures) / float64(seen)
		growth = float64(seg.CustomerCount-seg.Departures) / float64(seen)
	}

	return &domain.SegmentPerformanceMetrics{
		SegmentID:                id,
		CustomerCount:            seg.CustomerCount,
		ConversionRate:           round4(seg.AveragePurchaseFrequency / (seg.AveragePurchaseFrequency + 4)),
		AverageRevenue:           round4(seg.AverageOrderValue * seg.AveragePurchaseFrequency),
		CustomerRetention:        round4(1 - churn),
		GrowthRate:               round4(growth),
		ChurnRate:                round4(churn),
		EngagementScore:          round4(seg.AverageEngagement),
		RecommendationAcceptance: acceptanceRate(seg.Characteristics.PromotionSensitivity),
		ComputedAt:               now,
	}, nil
}

func acceptanceRate(sensitivity string) float64 {
	switch sensitivity {
	case "high":
		return 0.45
	case "medium":
		return 0.3
	default:
		return 0.2
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
