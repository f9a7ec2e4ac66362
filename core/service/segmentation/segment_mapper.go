package segmentation

import "segment_server/core/domain"

// MapClusterToSegment picks a segment from the cluster's average frequency,
// lifetime value and recency. Members missing from features are ignored.
func MapClusterToSegment(c *domain.Cluster, features map[string]*domain.CustomerFeatures) string {
	var freq, ltv, days float64
	var n int
	for _, id := range c.Members {
		f, ok := features[id]
		if !ok {
			continue
		}
		freq += f.PurchaseFrequency
		ltv += f.LifetimeValue
		days += float64(f.DaysSinceLastPurchase)
		n++
	}
	if n == 0 {
		return domain.SegmentPotentialLoyalists
	}
	freq /= float64(n)
	ltv /= float64(n)
	days /= float64(n)

	switch {
	case freq >= 4 && ltv >= 1000:
		return domain.SegmentChampions
	case freq >= 2 && ltv >= 500:
		return domain.SegmentLoyal
	case days > 180:
		return domain.SegmentHibernating
	case days > 90 && ltv >= 300:
		return domain.SegmentAtRisk
	case freq <= 1 && days <= 30:
		return domain.SegmentNew
	default:
		return domain.SegmentPotentialLoyalists
	}
}

// ClusterConfidence is the confidence given to every member of c.
func ClusterConfidence(c *domain.Cluster) float64 {
	return 0.75 + 0.25*c.Cohesion
}
