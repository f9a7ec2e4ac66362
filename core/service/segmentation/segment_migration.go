package segmentation

import (
	"strings"

	"segment_server/core/domain"
)

const defaultMigrationReason = "Behavioral pattern change detected"

// MigrationReason explains a move from one segment to another. All matching
// reasons are joined with "; ".
func MigrationReason(from, to string, f *domain.CustomerFeatures) string {
	var reasons []string
	if f.DaysSinceLastPurchase > 90 {
		reasons = append(reasons, "Extended period without purchase")
	}
	if from == domain.SegmentChampions && to == domain.SegmentAtRisk {
		reasons = append(reasons, "Champion customer showing signs of churn")
	}
	if from == domain.SegmentNew && to == domain.SegmentLoyal {
		reasons = append(reasons, "New customer successfully converted to loyal")
	}
	if f.PurchaseFrequency < 1 {
		reasons = append(reasons, "Decreased purchase frequency")
	}
	if f.ChurnRisk == domain.ChurnRiskHigh {
		reasons = append(reasons, "High churn risk detected")
	}
	if len(reasons) == 0 {
		return defaultMigrationReason
	}
	return strings.Join(reasons, "; ")
}

// ReasonCodes tags an assignment for downstream consumers.
func ReasonCodes(a *domain.SegmentAssignment) []string {
	var codes []string
	f := a.Features
	if f != nil {
		if f.TotalSpent > 1000 {
			codes = append(codes, "high_value_customer")
		}
		if f.PurchaseFrequency > 10 {
			codes = append(codes, "frequent_purchaser")
		}
		if f.AverageOrderValue > 100 {
			codes = append(codes, "high_order_value")
		}
		if f.DaysSinceLastPurchase < 7 {
			codes = append(codes, "recent_activity")
		} else if f.DaysSinceLastPurchase > 90 {
			codes = append(codes, "inactive_period")
		}
		if f.TotalPurchases > 20 {
			codes = append(codes, "loyal_customer")
		}
	}
	if a.PreviousSegmentID != nil && a.MigrationReason != nil {
		codes = append(codes, "migration_"+strings.Join(strings.Fields(strings.ToLower(*a.MigrationReason)), "_"))
	}
	if len(codes) == 0 {
		codes = append(codes, "standard_classification")
	}
	return codes
}
