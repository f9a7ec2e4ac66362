// Package messaging provides message queue adapters.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"segment_server/core/domain"
	"segment_server/core/port/out"
)

// Stream names
const (
	StreamSegmentUpdate = "segment:update"
	StreamSegmentBatch  = "segment:batch"
)

// updateStreamMaxLen caps the update stream; consumers are expected to keep up.
const updateStreamMaxLen = 100000

// RedisProducer publishes segment events and batch jobs to Redis Streams.
type RedisProducer struct {
	client *redis.Client
}

var (
	_ out.NotificationSink = (*RedisProducer)(nil)
	_ out.JobProducer      = (*RedisProducer)(nil)
)

func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client}
}

// Publish implements out.NotificationSink.
func (p *RedisProducer) Publish(ctx context.Context, event *domain.SegmentUpdateEvent) error {
	return p.publish(ctx, StreamSegmentUpdate, updateStreamMaxLen, event)
}

// PublishSegmentationJob implements out.JobProducer.
func (p *RedisProducer) PublishSegmentationJob(ctx context.Context, job *out.SegmentationJob) error {
	return p.publish(ctx, StreamSegmentBatch, 0, job)
}

// publish publishes a payload to a stream using go-redis.
func (p *RedisProducer) publish(ctx context.Context, stream string, maxLen int64, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}
