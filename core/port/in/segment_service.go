package in

import (
	"context"

	"segment_server/core/domain"
)

// SegmentationService is the inbound port used by HTTP handlers, the stream
// worker and the CLI.
type SegmentationService interface {
	SegmentCustomers(ctx context.Context, req *domain.SegmentationRequest) *domain.SegmentationResponse
	GetSegmentPerformance(ctx context.Context, segmentID string) (*domain.SegmentPerformanceMetrics, error)
	Segments() []domain.Segment
	TrackMigration(ctx context.Context, m domain.SegmentMigration) error
}
