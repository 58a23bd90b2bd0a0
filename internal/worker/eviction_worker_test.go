package worker_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fincore/xs2a-consent-gateway/internal/idempotency"
	"github.com/fincore/xs2a-consent-gateway/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictionWorkerRemovesExpiredRecords(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := idempotency.NewMemoryStore(50*time.Millisecond, time.Hour)

	require.NoError(t, store.Put(ctx, "stale-1", idempotency.Record{}))
	require.NoError(t, store.Put(ctx, "stale-2", idempotency.Record{}))

	w := worker.NewEvictionWorker(store, 30*time.Millisecond, 100, logger)
	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		w.Start(workerCtx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return storeEmpty(ctx, store)
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func storeEmpty(ctx context.Context, store idempotency.Store) bool {
	for _, key := range []string{"stale-1", "stale-2"} {
		if _, found, err := store.Get(ctx, key); err != nil || found {
			return false
		}
	}
	return true
}
