package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/observability"
	"github.com/richboost/boosting-core/internal/service"
)

// SettingsReloadWorker refreshes the in-memory pricing snapshot from the
// settings table so admin edits take effect without a restart.
type SettingsReloadWorker struct {
	svc      *service.SettingsService
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSettingsReloadWorker constructs a worker with a default one-minute
// interval.
func NewSettingsReloadWorker(svc *service.SettingsService) *SettingsReloadWorker {
	return &SettingsReloadWorker{
		svc:      svc,
		interval: time.Minute,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the reload interval.
func (w *SettingsReloadWorker) WithInterval(interval time.Duration) *SettingsReloadWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and reloads at the configured interval.
func (w *SettingsReloadWorker) Start(ctx context.Context) {
	zap.L().Info("settings reload worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("settings reload worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("settings reload worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *SettingsReloadWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *SettingsReloadWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *SettingsReloadWorker) runOnce(ctx context.Context) {
	if err := w.svc.Reload(ctx); err != nil {
		observability.IncrementWorkerRun("settings_reload", "failed")
		zap.L().Error("settings reload failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("settings_reload", "success")
}
