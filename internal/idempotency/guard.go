package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Outcome of an idempotency check.
type Outcome int

const (
	// OutcomeProceed means this is the first request for the key; the caller
	// must invoke Store (or Abort on failure) after executing the handler.
	OutcomeProceed Outcome = iota
	// OutcomeReplay means a byte-identical request was already processed and
	// the cached response must be returned without re-executing side effects.
	OutcomeReplay
	// OutcomeConflict means the key was reused with a different body hash.
	OutcomeConflict
)

// Result of a Check call. Response fields are set only for OutcomeReplay.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Response   []byte
}

// ErrPendingTimeout is returned when a concurrent duplicate request exceeded
// the bounded wait for the first request's result.
var ErrPendingTimeout = errors.New("timed out waiting for in-flight request with same idempotency key")

// Guard enforces at-most-once processing of a (client, X-Request-ID) pair.
//
// The check-then-store sequence for one key is made effectively atomic with a
// per-key pending marker: the first request claims the key and later requests
// wait, bounded by pendingWait, until the result is stored. Pending markers
// live outside the record store so TTL eviction can never remove a key whose
// first request is still mid-flight. A marker whose holder neither stored nor
// aborted within pendingWait is treated as abandoned and may be taken over by
// a later request, so a crashed winner cannot poison its key.
type Guard struct {
	store       Store
	pendingWait time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingClaim
}

// pendingClaim marks a key whose first request is between Check and
// Store/Abort. The claim timestamp bounds how long the marker stays valid.
type pendingClaim struct {
	done      chan struct{}
	claimedAt time.Time
}

func NewGuard(store Store, pendingWait time.Duration, logger *slog.Logger) *Guard {
	return &Guard{
		store:       store,
		pendingWait: pendingWait,
		logger:      logger,
		pending:     make(map[string]*pendingClaim),
	}
}

// Check looks up the record for (clientID, requestID). Exactly one caller per
// key observes OutcomeProceed; concurrent duplicates block until the winner
// stores its result, then observe OutcomeReplay or OutcomeConflict.
func (g *Guard) Check(ctx context.Context, clientID, requestID, bodyHash string) (Result, error) {
	key := RecordKey(clientID, requestID)
	deadline := time.Now().Add(g.pendingWait)

	for {
		g.mu.Lock()
		claim, inflight := g.pending[key]
		if inflight && time.Since(claim.claimedAt) >= g.pendingWait {
			// The claim holder never stored or aborted within the bounded
			// wait window; treat its marker as expired and take over the key.
			close(claim.done)
			inflight = false
			g.logger.Warn("reclaimed stale idempotency pending marker",
				"request_id", requestID,
				"client_id", clientID,
			)
		}
		if !inflight {
			g.pending[key] = &pendingClaim{done: make(chan struct{}), claimedAt: time.Now()}
			g.mu.Unlock()

			record, found, err := g.store.Get(ctx, key)
			if err != nil {
				g.release(key)
				return Result{}, fmt.Errorf("idempotency lookup failed: %w", err)
			}
			if found {
				// Someone finished between our claim and now, or an earlier
				// request within the TTL window; the claim is not needed.
				g.release(key)
				return compare(record, bodyHash), nil
			}
			return Result{Outcome: OutcomeProceed}, nil
		}
		g.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Result{}, ErrPendingTimeout
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{}, ctx.Err()
		case <-timer.C:
			// One more pass over the map: the marker may itself be stale and
			// reclaimable, so expiry of the wait is not yet a timeout.
			g.mu.Lock()
			current, stillPending := g.pending[key]
			stale := stillPending && time.Since(current.claimedAt) >= g.pendingWait
			g.mu.Unlock()
			if stale || !stillPending {
				continue
			}
			return Result{}, ErrPendingTimeout
		case <-claim.done:
			timer.Stop()
			// The winner stored, aborted or was reclaimed; re-check from the top.
		}
	}
}

// Store records the winner's response and wakes any duplicate requests
// blocked on the key. Must be called exactly once after OutcomeProceed.
func (g *Guard) Store(ctx context.Context, clientID, requestID, bodyHash string, statusCode int, response []byte) error {
	key := RecordKey(clientID, requestID)
	err := g.store.Put(ctx, key, Record{
		BodyHash:   bodyHash,
		StatusCode: statusCode,
		Response:   response,
	})
	g.release(key)
	if err != nil {
		return fmt.Errorf("failed to store idempotency record: %w", err)
	}
	return nil
}

// Abort drops the pending claim without storing a record, letting blocked
// duplicates retry as first-time requests. Used when the handler fails.
func (g *Guard) Abort(clientID, requestID string) {
	g.release(RecordKey(clientID, requestID))
}

func (g *Guard) release(key string) {
	g.mu.Lock()
	if claim, ok := g.pending[key]; ok {
		close(claim.done)
		delete(g.pending, key)
	}
	g.mu.Unlock()
}

func compare(record *Record, bodyHash string) Result {
	if record.BodyHash != bodyHash {
		return Result{Outcome: OutcomeConflict}
	}
	return Result{
		Outcome:    OutcomeReplay,
		StatusCode: record.StatusCode,
		Response:   record.Response,
	}
}
