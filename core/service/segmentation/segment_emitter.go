package segmentation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"segment_server/core/domain"
	"segment_server/core/port/out"
)

const (
	defaultQueueSize   = 256
	defaultSinkTimeout = 5 * time.Second
)

type emission struct {
	event     *domain.SegmentUpdateEvent
	migration *domain.SegmentMigration
	metrics   *domain.SegmentationMetrics
}

// EmitterSinks are the downstream consumers. Any of them may be nil.
type EmitterSinks struct {
	Notifier out.NotificationSink
	Metrics  out.MetricsSink
	History  out.MigrationHistory
}

type EmitterConfig struct {
	QueueSize   int
	SinkTimeout time.Duration
}

// Emitter delivers side effects on a single background goroutine. Enqueueing
// never blocks: when the queue is full the emission is dropped and counted.
// Delivery is at most once.
type Emitter struct {
	sinks   EmitterSinks
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan emission
	done   chan struct{}

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

func NewEmitter(cfg EmitterConfig, sinks EmitterSinks, log zerolog.Logger) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	e := &Emitter{
		sinks:   sinks,
		timeout: cfg.SinkTimeout,
		log:     log.With().Str("component", "segment-emitter").Logger(),
		queue:   make(chan emission, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	go e.run()
	return e
}

// EmitUpdate enqueues a segment update event and, when the customer moved
// between segments, the migration record.
func (e *Emitter) EmitUpdate(event *domain.SegmentUpdateEvent, migration *domain.SegmentMigration) {
	e.enqueue(emission{event: event, migration: migration})
}

func (e *Emitter) EmitMigration(migration domain.SegmentMigration) {
	e.enqueue(emission{migration: &migration})
}

func (e *Emitter) EmitMetrics(m domain.SegmentationMetrics) {
	e.enqueue(emission{metrics: &m})
}

func (e *Emitter) enqueue(em emission) {
	if e == nil {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.dropped.Add(1)
		return
	}
	select {
	case e.queue <- em:
	default:
		e.dropped.Add(1)
		e.log.Warn().Int("queue_size", cap(e.queue)).Msg("emitter queue full, dropping emission")
	}
}

// Dropped returns how many emissions were discarded.
func (e *Emitter) Dropped() uint64 { return e.dropped.Load() }

// Delivered returns how many emissions were handed to the sinks.
func (e *Emitter) Delivered() uint64 { return e.delivered.Load() }

// Close stops accepting emissions and waits for the queue to drain or ctx to end.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Emitter) run() {
	defer close(e.done)
	for em := range e.queue {
		e.deliver(em)
		e.delivered.Add(1)
	}
}

func (e *Emitter) deliver(em emission) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	if em.event != nil && e.sinks.Notifier != nil {
		if err := e.sinks.Notifier.Publish(ctx, em.event); err != nil {
			e.log.Error().Err(err).Str("customer_id", em.event.CustomerID).Msg("failed to publish segment update")
		}
	}
	if em.migration != nil {
		if e.sinks.Metrics != nil {
			if err := e.sinks.Metrics.RecordMigration(ctx, *em.migration); err != nil {
				e.log.Warn().Err(err).Msg("failed to record migration metric")
			}
		}
		if e.sinks.History != nil {
			if err := e.sinks.History.SaveMigration(ctx, *em.migration); err != nil {
				e.log.Warn().Err(err).Str("customer_id", em.migration.CustomerID).Msg("failed to save migration history")
			}
		}
	}
	if em.metrics != nil && e.sinks.Metrics != nil {
		if err := e.sinks.Metrics.Record(ctx, *em.metrics); err != nil {
			e.log.Warn().Err(err).Msg("failed to record segmentation metrics")
		}
	}
}
