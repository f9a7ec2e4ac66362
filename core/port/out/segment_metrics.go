package out

import (
	"context"

	"segment_server/core/domain"
)

type MetricsSink interface {
	Record(ctx context.Context, m domain.SegmentationMetrics) error
	RecordMigration(ctx context.Context, m domain.SegmentMigration) error
}

// MigrationHistory keeps the customer to segment migration trail.
type MigrationHistory interface {
	SaveMigration(ctx context.Context, m domain.SegmentMigration) error
}

// SnapshotRepository stores statistics of completed runs.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, s *domain.SegmentationSnapshot) error
	LatestSnapshot(ctx context.Context) (*domain.SegmentationSnapshot, error)
}

// MigrationReader reads back a customer's migration trail, newest first.
type MigrationReader interface {
	CustomerMigrations(ctx context.Context, customerID string, limit int) ([]domain.SegmentMigration, error)
}
