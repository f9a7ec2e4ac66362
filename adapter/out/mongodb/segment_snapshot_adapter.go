package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"segment_server/core/domain"
	"segment_server/core/port/out"
)

const collectionSnapshots = "segmentation_snapshots"

// SnapshotAdapter implements out.SnapshotRepository using MongoDB.
type SnapshotAdapter struct {
	collection *mongo.Collection
}

var _ out.SnapshotRepository = (*SnapshotAdapter)(nil)

func NewSnapshotAdapter(db *mongo.Database) *SnapshotAdapter {
	return &SnapshotAdapter{collection: db.Collection(collectionSnapshots)}
}

func (a *SnapshotAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "analysis_depth", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (a *SnapshotAdapter) SaveSnapshot(ctx context.Context, s *domain.SegmentationSnapshot) error {
	if _, err := a.collection.InsertOne(ctx, s); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns nil without error when no run has been recorded.
func (a *SnapshotAdapter) LatestSnapshot(ctx context.Context) (*domain.SegmentationSnapshot, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var snapshot domain.SegmentationSnapshot
	err := a.collection.FindOne(ctx, bson.D{}, opts).Decode(&snapshot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	return &snapshot, nil
}
