package segmentation

import "segment_server/core/domain"

// ClassifyByRules maps features to a segment with a fixed, ordered rule list.
// The first matching rule wins.
func ClassifyByRules(f *domain.CustomerFeatures) string {
	days := f.DaysSinceLastPurchase
	ltv := f.LifetimeValue
	freq := f.PurchaseFrequency

	switch {
	case days > 365:
		return domain.SegmentLost
	case days > 180:
		return domain.SegmentHibernating
	case ltv >= 800 && days > 120:
		return domain.SegmentCantLose
	case ltv >= 300 && days > 90:
		return domain.SegmentAtRisk
	case freq >= 4 && ltv >= 1000 && days <= 30:
		return domain.SegmentChampions
	case freq >= 2 && ltv >= 500:
		return domain.SegmentLoyal
	case f.TotalPurchases <= 2 && days <= 30:
		return domain.SegmentNew
	case freq >= 1 && days <= 60:
		return domain.SegmentPotentialLoyalists
	default:
		return domain.SegmentPotentialLoyalists
	}
}
