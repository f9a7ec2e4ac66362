package segmentation

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"segment_server/core/domain"
	"segment_server/core/port/out"
	"segment_server/pkg/logger"
)

const (
	cacheKeyPrefix  = "segmentation:"
	DefaultCacheTTL = time.Hour
)

func cacheKey(customerID string) string {
	return cacheKeyPrefix + customerID
}

// AssignmentCache stores the latest assignment per customer as JSON.
// Store failures are logged and treated as misses.
type AssignmentCache struct {
	store out.CacheStore
	ttl   time.Duration
}

func NewAssignmentCache(store out.CacheStore, ttl time.Duration) *AssignmentCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &AssignmentCache{store: store, ttl: ttl}
}

// Get returns nil on a miss.
func (c *AssignmentCache) Get(ctx context.Context, customerID string) *domain.SegmentAssignment {
	if c == nil || c.store == nil {
		return nil
	}
	raw, found, err := c.store.Get(ctx, cacheKey(customerID))
	if err != nil {
		logger.WithField("customer_id", customerID).WithError(err).Warn("segment cache read failed")
		return nil
	}
	if !found {
		return nil
	}
	var a domain.SegmentAssignment
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		logger.WithField("customer_id", customerID).WithError(err).Warn("discarding undecodable cached assignment")
		return nil
	}
	return &a
}

func (c *AssignmentCache) Put(ctx context.Context, a *domain.SegmentAssignment) {
	if c == nil || c.store == nil {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		logger.WithField("customer_id", a.CustomerID).WithError(err).Error("failed to encode assignment")
		return
	}
	if err := c.store.Set(ctx, cacheKey(a.CustomerID), string(data), c.ttl); err != nil {
		logger.WithField("customer_id", a.CustomerID).WithError(err).Warn("segment cache write failed")
	}
}

func (c *AssignmentCache) Invalidate(ctx context.Context, customerID string) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, cacheKey(customerID)); err != nil {
		logger.WithField("customer_id", customerID).WithError(err).Warn("segment cache delete failed")
	}
}
