package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fincore/xs2a-consent-gateway/internal/application"
	"github.com/fincore/xs2a-consent-gateway/internal/domain"
	"github.com/fincore/xs2a-consent-gateway/internal/metrics"
)

// Aggregator combines the individual statuses of all authorisation legs of a
// consent into one aggregated status and notifies the state-change hook when
// that aggregate changes.
//
// Recomputation is serialized per consent: two PSUs reporting status updates
// concurrently never interleave, and every recomputation reads the full
// authoritative set from storage rather than merging deltas.
type Aggregator struct {
	storage application.ConsentStorage
	hook    application.StateChangeHook
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	last  map[string]domain.AggregatedStatus
}

func NewAggregator(storage application.ConsentStorage, hook application.StateChangeHook,
	m *metrics.Metrics, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		storage: storage,
		hook:    hook,
		metrics: m,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
		last:    make(map[string]domain.AggregatedStatus),
	}
}

// AggregationResult reports the outcome of one recomputation.
type AggregationResult struct {
	Status      domain.AggregatedStatus
	Changed     bool
	RedirectURL string
}

// OnStatusChange recomputes the aggregate after one authorisation leg
// changed. The triggering authorisation's status must already be persisted.
// When the aggregate differs from the previous value the hook is invoked
// exactly once, synchronously, before control returns. A hook failure is
// logged but never invalidates the already-committed authorisation write.
func (a *Aggregator) OnStatusChange(ctx context.Context, consentID string, triggering *domain.AuthorisationResource) (AggregationResult, error) {
	lock := a.consentLock(consentID)
	lock.Lock()
	defer lock.Unlock()

	authorisations, err := a.storage.GetAuthorisations(ctx, consentID)
	if err != nil {
		return AggregationResult{}, fmt.Errorf("failed to load authorisations for consent %s: %w", consentID, err)
	}

	// Only legs of the same type participate: cancellation sign-offs never
	// influence the creation aggregate and vice versa.
	sameType := authorisations[:0:0]
	for _, auth := range authorisations {
		if auth.AuthType == triggering.AuthType {
			sameType = append(sameType, auth)
		}
	}

	status := ComputeAggregatedStatus(sameType)
	if status == domain.AggregatedNone {
		return AggregationResult{Status: status}, nil
	}

	stateKey := consentID + "/" + string(triggering.AuthType)
	if a.last[stateKey] == status {
		return AggregationResult{Status: status}, nil
	}
	a.last[stateKey] = status
	a.metrics.ObserveAggregateTransition(string(status))
	if status.Terminal() {
		// No further leg updates are accepted once the aggregate is final,
		// so the per-consent bookkeeping can be dropped immediately.
		defer a.forget(consentID, stateKey)
	}

	redirect, hookErr := a.hook.OnAuthorisationStateChange(ctx, consentID, triggering.AuthType, status, triggering)
	if hookErr != nil {
		// The leg's status write is already committed; the hook is a
		// best-effort notification outside that atomicity boundary.
		a.logger.Error("authorisation state change hook failed",
			"consent_id", consentID,
			"auth_type", triggering.AuthType,
			"aggregated_status", status,
			"error", hookErr,
		)
	}

	return AggregationResult{Status: status, Changed: true, RedirectURL: redirect}, nil
}

// ComputeAggregatedStatus derives the consent-level status from the full set
// of authorisation legs of one type. Rejection or failure of a single leg
// short-circuits the aggregate regardless of the remaining legs.
func ComputeAggregatedStatus(authorisations []domain.AuthorisationResource) domain.AggregatedStatus {
	if len(authorisations) == 0 {
		return domain.AggregatedNone
	}

	anyRejected := false
	anyFailed := false
	anyFinalised := false
	allFinalised := true

	for _, auth := range authorisations {
		switch {
		case auth.Status == domain.ScaRevokedByPsu:
			anyRejected = true
		case auth.Status == domain.ScaFailed || auth.Status == domain.ScaExpired:
			anyFailed = true
		case auth.Status.Succeeded():
			anyFinalised = true
		}
		if !auth.Status.Succeeded() {
			allFinalised = false
		}
	}

	switch {
	case anyRejected:
		return domain.AggregatedRejected
	case anyFailed:
		return domain.AggregatedFailed
	case allFinalised:
		return domain.AggregatedFullyAuthorised
	case anyFinalised:
		return domain.AggregatedPartiallyAuthorised
	default:
		return domain.AggregatedNone
	}
}

// forget drops the dedup entry for a finished consent/type pair and, when no
// other entries remain for the consent, its lock as well, keeping both maps
// bounded by the number of in-flight consents rather than all consents ever
// seen.
func (a *Aggregator) forget(consentID, stateKey string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.last, stateKey)
	for key := range a.last {
		if strings.HasPrefix(key, consentID+"/") {
			return
		}
	}
	delete(a.locks, consentID)
}

func (a *Aggregator) consentLock(consentID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[consentID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[consentID] = lock
	}
	return lock
}
