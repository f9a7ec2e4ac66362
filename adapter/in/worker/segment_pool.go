package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"segment_server/adapter/out/messaging"
	"segment_server/core/port/out"
)

// ErrPoolFull is returned by Handle when the job queue has no room.
var ErrPoolFull = errors.New("worker pool queue is full")

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Workers      int
	QueueSize    int
	JobTimeout   time.Duration
	MaxRetries   int
	RetryBackoff time.Duration // base delay, doubled per attempt
}

func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:      4,
		QueueSize:    100,
		JobTimeout:   10 * time.Minute,
		MaxRetries:   3,
		RetryBackoff: time.Second,
	}
}

// Pool runs batch segmentation jobs on a go-pkgz/pool worker group.
type Pool struct {
	handler *Handler
	config  *PoolConfig
	log     zerolog.Logger

	pool   *pool.WorkerGroup[*Message]
	ctx    context.Context
	cancel context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	dropped   atomic.Int64
	queued    atomic.Int32
	avgMs     atomic.Int64

	started bool
	mu      sync.Mutex
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Workers      int   `json:"workers"`
	Queued       int32 `json:"queued"`
	Processed    int64 `json:"processed"`
	Failed       int64 `json:"failed"`
	Retried      int64 `json:"retried"`
	Dropped      int64 `json:"dropped"`
	AvgProcessMs int64 `json:"avg_process_ms"`
}

var _ messaging.JobHandler = (*Pool)(nil)

// messageWorker implements pool.Worker for Message processing.
type messageWorker struct {
	pool *Pool
}

func (w *messageWorker) Do(ctx context.Context, msg *Message) error {
	return w.pool.processJob(ctx, msg)
}

func NewPool(handler *Handler, config *PoolConfig, log zerolog.Logger) *Pool {
	def := DefaultPoolConfig()
	if config == nil {
		config = def
	}
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = def.JobTimeout
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = def.RetryBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		handler: handler,
		config:  config,
		log:     log.With().Str("component", "worker_pool").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	// Jobs are long-running, so each is dispatched on its own. Each worker
	// channel can hold the whole queue, so Submit never blocks once the
	// queued counter has admitted a job.
	p.pool = pool.New[*Message](p.config.Workers, &messageWorker{pool: p}).
		WithBatchSize(1).
		WithWorkerChanSize(p.config.QueueSize).
		WithContinueOnError()

	if err := p.pool.Go(p.ctx); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}
	p.started = true

	p.log.Info().
		Int("workers", p.config.Workers).
		Int("queue_size", p.config.QueueSize).
		Msg("worker pool started")
	return nil
}

// Stop waits for queued jobs up to ctx's deadline, then cancels the rest.
func (p *Pool) Stop(ctx context.Context) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	if err := p.pool.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.log.Warn().Err(err).Msg("error closing worker pool")
	}
	p.cancel()

	p.log.Info().
		Int64("processed", p.processed.Load()).
		Int64("failed", p.failed.Load()).
		Msg("worker pool stopped")
}

// Submit enqueues msg, reporting false when the pool is stopped or full.
func (p *Pool) Submit(msg *Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return false
	}
	if int(p.queued.Load()) >= p.config.QueueSize {
		p.dropped.Add(1)
		p.log.Warn().Str("job_id", msg.JobID()).Msg("job dropped, queue full")
		return false
	}

	p.queued.Add(1)
	p.pool.Submit(msg)
	return true
}

// Handle decodes a job from the batch stream and queues it. It implements
// messaging.JobHandler.
func (p *Pool) Handle(_ context.Context, stream string, data []byte) error {
	var job out.SegmentationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	msg := &Message{Job: &job, Stream: stream, ReceivedAt: time.Now()}
	if !p.Submit(msg) {
		return ErrPoolFull
	}
	return nil
}

func (p *Pool) processJob(ctx context.Context, msg *Message) error {
	start := time.Now()
	defer p.queued.Add(-1)

	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	err := p.handler.Process(jobCtx, msg)
	p.updateAvgProcessTime(time.Since(start).Milliseconds())

	if err == nil {
		p.processed.Add(1)
		return nil
	}

	p.log.Error().
		Err(err).
		Str("job_id", msg.JobID()).
		Int("retries", msg.Retries).
		Msg("job processing failed")

	if errors.Is(err, ErrInvalidJob) || msg.Retries >= p.config.MaxRetries || ctx.Err() != nil {
		p.failed.Add(1)
		return err
	}

	msg.Retries++
	p.retried.Add(1)
	time.AfterFunc(p.backoff(msg.Retries), func() {
		if !p.Submit(msg) {
			p.failed.Add(1)
		}
	})
	return err
}

// backoff is base * 2^(attempt-1) plus up to half of base as jitter.
func (p *Pool) backoff(attempt int) time.Duration {
	base := p.config.RetryBackoff
	d := base << (attempt - 1)
	if half := int64(base / 2); half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

func (p *Pool) updateAvgProcessTime(elapsed int64) {
	current := p.avgMs.Load()
	if current == 0 {
		p.avgMs.Store(elapsed)
		return
	}
	p.avgMs.Store((current*9 + elapsed) / 10)
}

func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:      p.config.Workers,
		Queued:       p.queued.Load(),
		Processed:    p.processed.Load(),
		Failed:       p.failed.Load(),
		Retried:      p.retried.Load(),
		Dropped:      p.dropped.Load(),
		AvgProcessMs: p.avgMs.Load(),
	}
}
