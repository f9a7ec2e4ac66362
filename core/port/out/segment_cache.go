package out

import (
	"context"
	"time"
)

// CacheStore is a string key-value store with per-entry expiry.
// A missing or expired key is reported as found=false with a nil error.
type CacheStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
