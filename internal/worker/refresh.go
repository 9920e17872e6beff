package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/puzzle-leaderboard/internal/config"
)

// Refresher recomputes and republishes standings
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshWorker periodically rebuilds the cached standings so month
// boundaries and expired cache entries are picked up without a write.
type RefreshWorker struct {
	refresher Refresher
	config    *config.RefreshConfig
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewRefreshWorker creates a new refresh worker
func NewRefreshWorker(refresher Refresher, cfg *config.RefreshConfig, logger *slog.Logger) *RefreshWorker {
	return &RefreshWorker{
		refresher: refresher,
		config:    cfg,
		logger:    logger,
	}
}

// Start runs one refresh immediately and then one per interval
func (w *RefreshWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	w.logger.Info("refresh worker started", "interval", w.config.Interval)
	go w.run(ctx, w.stopCh, w.doneCh)
}

// Stop waits for the current refresh to finish
func (w *RefreshWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	w.logger.Info("refresh worker stopped")
}

func (w *RefreshWorker) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single refresh and logs the outcome
func (w *RefreshWorker) RunOnce(ctx context.Context) {
	start := time.Now()
	if err := w.refresher.Refresh(ctx); err != nil {
		w.logger.Error("standings refresh failed", "error", err)
		return
	}
	w.logger.Debug("standings refreshed", "duration", time.Since(start))
}
