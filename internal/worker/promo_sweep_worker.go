package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/observability"
	"github.com/richboost/boosting-core/internal/service"
)

// PromoSweepWorker deactivates promo codes whose expiry has passed, so
// expired codes stop matching without waiting for an activation attempt.
type PromoSweepWorker struct {
	svc      *service.PromoService
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPromoSweepWorker constructs a worker with a default hourly interval.
func NewPromoSweepWorker(svc *service.PromoService) *PromoSweepWorker {
	return &PromoSweepWorker{
		svc:      svc,
		interval: time.Hour,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the sweep interval.
func (w *PromoSweepWorker) WithInterval(interval time.Duration) *PromoSweepWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and sweeps at the configured interval.
func (w *PromoSweepWorker) Start(ctx context.Context) {
	zap.L().Info("promo sweep worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("promo sweep worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("promo sweep worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *PromoSweepWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *PromoSweepWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *PromoSweepWorker) runOnce(ctx context.Context) {
	swept, err := w.svc.SweepExpired(ctx)
	if err != nil {
		observability.IncrementWorkerRun("promo_sweep", "failed")
		zap.L().Error("promo sweep failed", zap.Error(err))
		return
	}
	if swept > 0 {
		zap.L().Info("expired promo codes deactivated", zap.Int64("count", swept))
	}
	observability.IncrementWorkerRun("promo_sweep", "success")
}
