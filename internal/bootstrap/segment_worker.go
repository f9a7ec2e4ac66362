package bootstrap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"segment_server/adapter/in/worker"
	"segment_server/adapter/out/messaging"
	"segment_server/pkg/logger"
)

// Worker consumes batch segmentation jobs from Redis Streams.
type Worker struct {
	pool     *worker.Pool
	consumer *messaging.Consumer
	deps     *Dependencies
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	zlog     zerolog.Logger
}

func NewWorker(deps *Dependencies) (*Worker, error) {
	cfg := deps.Config
	zlog := componentLogger("worker")

	poolConfig := worker.DefaultPoolConfig()
	if cfg.WorkerMax > 0 {
		poolConfig.Workers = cfg.WorkerMax
	}
	if cfg.WorkerQueueSize > 0 {
		poolConfig.QueueSize = cfg.WorkerQueueSize
	}
	if cfg.ConsumerMaxRetries > 0 {
		poolConfig.MaxRetries = cfg.ConsumerMaxRetries
	}

	pool := worker.NewPool(worker.NewHandler(deps.Segmentation), poolConfig, zlog)

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		pool:   pool,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		zlog:   zlog,
	}

	deps.Metrics.WatchCounter("segment_worker_jobs_processed_total",
		"Batch jobs completed by the worker pool.",
		func() float64 { return float64(pool.Stats().Processed) })
	deps.Metrics.WatchCounter("segment_worker_jobs_failed_total",
		"Batch jobs that failed after every retry.",
		func() float64 { return float64(pool.Stats().Failed) })

	if deps.Redis != nil {
		streams := []string{messaging.StreamSegmentBatch}
		w.consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
			Group:      "segment-workers",
			Consumer:   cfg.WorkerID,
			Streams:    streams,
			Handler:    pool,
			Logger:     zlog,
			Block:      time.Duration(cfg.ConsumerBlockMS) * time.Millisecond,
			MaxRetries: cfg.ConsumerMaxRetries,
		})
		logger.Info("Redis Stream Consumer configured for %d streams", len(streams))
	} else {
		logger.Warn("Redis not available, worker will only process direct submissions")
	}

	return w, nil
}

// Start runs the pool and the consumer and blocks until Stop is called.
func (w *Worker) Start() error {
	if err := w.pool.Start(); err != nil {
		return err
	}

	if w.consumer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.zlog.Info().Msg("Starting Redis Stream Consumer...")
			if err := w.consumer.Run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.zlog.Error().Err(err).Msg("Redis Stream Consumer error")
			}
		}()
	}

	<-w.ctx.Done()
	return nil
}

// Stop stops consuming and waits for in-flight jobs until ctx expires.
func (w *Worker) Stop(ctx context.Context) {
	w.cancel()
	w.wg.Wait()
	w.pool.Stop(ctx)
}

func (w *Worker) Submit(msg *worker.Message) bool {
	return w.pool.Submit(msg)
}

func (w *Worker) Stats() worker.PoolStats {
	return w.pool.Stats()
}
