package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PendingExpirer declines sessions that waited too long for an agent.
type PendingExpirer interface {
	ExpirePending(ctx context.Context, timeout time.Duration, expiryAdminID uint) (int, error)
}

// PendingExpiryWorker runs the pending-session expiry policy on a ticker.
type PendingExpiryWorker struct {
	expirer  PendingExpirer
	timeout  time.Duration
	adminID  uint
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPendingExpiryWorker(expirer PendingExpirer, timeout time.Duration, adminID uint, interval time.Duration, logger *slog.Logger) *PendingExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingExpiryWorker{
		expirer:  expirer,
		timeout:  timeout,
		adminID:  adminID,
		interval: interval,
		logger:   logger,
	}
}

func (w *PendingExpiryWorker) Start(ctx context.Context) {
	if w.cancel != nil {
		return
	}
	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				w.sweep(workerCtx)
			}
		}
	}()
}

func (w *PendingExpiryWorker) sweep(ctx context.Context) {
	n, err := w.expirer.ExpirePending(ctx, w.timeout, w.adminID)
	if err != nil {
		w.logger.Error("expire pending sessions failed", "error", err)
		return
	}
	if n > 0 {
		w.logger.Info("expired pending sessions", "count", n, "timeout", w.timeout)
	}
}

func (w *PendingExpiryWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
