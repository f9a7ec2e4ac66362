package segmentation

import (
	"math"
	"time"

	"segment_server/core/domain"
)

// ComputeStatistics summarizes a set of assignments. Segments with no
// customers are left out of the distribution.
func ComputeStatistics(assignments []*domain.SegmentAssignment, catalog *Catalog, now time.Time) *domain.SegmentationStatistics {
	stats := &domain.SegmentationStatistics{
		TotalCustomers:      len(assignments),
		SegmentDistribution: []domain.SegmentShare{},
		LastUpdated:         now,
	}
	if len(assignments) == 0 {
		return stats
	}

	counts := make(map[string]int)
	var extra []string
	var confidence float64
	for _, a := range assignments {
		if _, ok := counts[a.SegmentID]; !ok && !domain.IsSegmentID(a.SegmentID) {
			extra = append(extra, a.SegmentID)
		}
		counts[a.SegmentID]++
		confidence += a.Confidence
		if a.PreviousSegmentID != nil {
			stats.MigrationCount++
		}
	}

	total := float64(len(assignments))
	for _, id := range append(catalog.Order(), extra...) {
		n := counts[id]
		if n == 0 {
			continue
		}
		stats.SegmentDistribution = append(stats.SegmentDistribution, domain.SegmentShare{
			SegmentID:   id,
			SegmentName: catalog.Name(id),
			Count:       n,
			Percentage:  math.Round(float64(n)/total*10000) / 100,
		})
	}
	stats.AverageConfidence = confidence / total
	return stats
}
