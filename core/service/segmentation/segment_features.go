// Package segmentation classifies customers into behavioral segments.
//
// Single customers go through a classifier strategy (rules, optionally
// preceded by an advisory model). Large batches are clustered with K-means
// and every cluster is mapped onto a catalog segment.
package segmentation

import (
	"math"
	"sort"
	"time"

	"segment_server/core/domain"
)

const (
	daysPerMonth          = 30.0
	maxFavoriteCategories = 3
	maxPreferredBuckets   = 2

	churnHighDays   = 180
	churnMediumDays = 90
)

var weekdayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// ExtractFeatures derives behavioral features from a purchase history.
// The input slice is not modified.
func ExtractFeatures(customerID string, purchases []domain.Purchase, now time.Time) *domain.CustomerFeatures {
	f := &domain.CustomerFeatures{
		CustomerID:             customerID,
		ChurnRisk:              domain.ChurnRiskLow,
		FavoriteCategories:     []string{},
		PreferredShoppingDays:  []string{},
		PreferredShoppingTimes: []string{},
	}
	if len(purchases) == 0 {
		return f
	}

	sorted := make([]domain.Purchase, len(purchases))
	copy(sorted, purchases)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PurchaseDate.Before(sorted[j].PurchaseDate)
	})

	var total float64
	categories := make([]string, 0, len(sorted))
	days := make([]string, 0, len(sorted))
	times := make([]string, 0, len(sorted))
	for _, p := range sorted {
		total += p.Amount()
		if p.Category != "" {
			categories = append(categories, p.Category)
		}
		days = append(days, weekdayNames[p.PurchaseDate.Weekday()])
		times = append(times, timeBucket(p.PurchaseDate.Hour()))
	}

	n := len(sorted)
	f.TotalPurchases = n
	f.TotalSpent = total
	f.LifetimeValue = total
	f.AverageOrderValue = total / float64(n)

	if n >= 2 {
		span := sorted[n-1].PurchaseDate.Sub(sorted[0].PurchaseDate).Hours() / 24
		months := math.Max(1, span/daysPerMonth)
		f.PurchaseFrequency = float64(n) / months
	}

	since := int(math.Floor(now.Sub(sorted[n-1].PurchaseDate).Hours() / 24))
	if since < 0 {
		since = 0
	}
	f.DaysSinceLastPurchase = since

	f.FavoriteCategories = topLabels(categories, maxFavoriteCategories)
	f.PreferredShoppingDays = topLabels(days, maxPreferredBuckets)
	f.PreferredShoppingTimes = topLabels(times, maxPreferredBuckets)
	f.ChurnRisk = churnRisk(since)
	f.EngagementLevel = engagementLevel(f.PurchaseFrequency, since, len(f.FavoriteCategories))

	return f
}

func churnRisk(daysSince int) domain.ChurnRisk {
	switch {
	case daysSince > churnHighDays:
		return domain.ChurnRiskHigh
	case daysSince > churnMediumDays:
		return domain.ChurnRiskMedium
	default:
		return domain.ChurnRiskLow
	}
}

func engagementLevel(frequency float64, daysSince, favorites int) int {
	score := frequency*10 + math.Max(0, float64(100-daysSince))/2 + float64(favorites*5)
	return int(math.Min(100, math.Round(score)))
}

func timeBucket(hour int) string {
	switch {
	case hour < 6:
		return "Early Morning"
	case hour < 12:
		return "Morning"
	case hour < 17:
		return "Afternoon"
	case hour < 21:
		return "Evening"
	default:
		return "Night"
	}
}

// topLabels returns up to n labels ordered by descending count. Ties keep
// the order in which labels were first seen.
func topLabels(labels []string, n int) []string {
	counts := make(map[string]int, len(labels))
	var order []string
	for _, l := range labels {
		if _, ok := counts[l]; !ok {
			order = append(order, l)
		}
		counts[l]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	if order == nil {
		return []string{}
	}
	return order
}

// FeatureVector encodes features in the fixed order used by the cluster engine:
// total purchases, total spent, average order value, purchase frequency,
// days since last purchase, lifetime value, engagement, churn risk ordinal.
func FeatureVector(f *domain.CustomerFeatures) []float64 {
	return []float64{
		float64(f.TotalPurchases),
		f.TotalSpent,
		f.AverageOrderValue,
		f.PurchaseFrequency,
		float64(f.DaysSinceLastPurchase),
		f.LifetimeValue,
		float64(f.EngagementLevel),
		f.ChurnRisk.Ordinal(),
	}
}
