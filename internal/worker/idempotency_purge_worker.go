package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/idempotency"
	"github.com/richboost/boosting-core/internal/observability"
)

// IdempotencyPurgeWorker deletes idempotency records older than the store
// TTL. Redis entries expire on their own; this covers the Postgres copy.
type IdempotencyPurgeWorker struct {
	store    *idempotency.Store
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewIdempotencyPurgeWorker constructs a worker with a default hourly
// interval.
func NewIdempotencyPurgeWorker(store *idempotency.Store) *IdempotencyPurgeWorker {
	return &IdempotencyPurgeWorker{
		store:    store,
		interval: time.Hour,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the purge interval.
func (w *IdempotencyPurgeWorker) WithInterval(interval time.Duration) *IdempotencyPurgeWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and purges at the configured interval.
func (w *IdempotencyPurgeWorker) Start(ctx context.Context) {
	zap.L().Info("idempotency purge worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("idempotency purge worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("idempotency purge worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *IdempotencyPurgeWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *IdempotencyPurgeWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *IdempotencyPurgeWorker) runOnce(ctx context.Context) {
	purged, err := w.store.PurgeExpired(ctx)
	if err != nil {
		observability.IncrementWorkerRun("idempotency_purge", "failed")
		zap.L().Error("idempotency purge failed", zap.Error(err))
		return
	}
	if purged > 0 {
		zap.L().Info("idempotency records purged", zap.Int64("count", purged))
	}
	observability.IncrementWorkerRun("idempotency_purge", "success")
}
