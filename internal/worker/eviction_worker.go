package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/fincore/xs2a-consent-gateway/internal/idempotency"
)

// EvictionWorker periodically removes idempotency records whose access or
// modify expiry has elapsed, so stale response snapshots do not pile up.
type EvictionWorker struct {
	store     idempotency.Store
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewEvictionWorker(
	store idempotency.Store,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *EvictionWorker {
	return &EvictionWorker{
		store:     store,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (w *EvictionWorker) Start(ctx context.Context) {
	w.logger.Info("eviction worker started", "interval", w.interval, "batch_size", w.batchSize)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.evictExpired(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("eviction worker stopping")
			return
		case <-ticker.C:
			if err := w.evictExpired(ctx); err != nil {
				w.logger.Error("idempotency eviction failed", "error", err)
			}
		}
	}
}

func (w *EvictionWorker) evictExpired(ctx context.Context) error {
	evicted, err := w.store.Evict(ctx, w.batchSize)
	if err != nil {
		return err
	}

	if evicted > 0 {
		w.logger.Info("evicted expired idempotency records", "count", evicted)
	}

	return nil
}
