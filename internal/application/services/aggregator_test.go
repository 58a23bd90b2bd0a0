package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/fincore/xs2a-consent-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedAuthorisations(t *testing.T, storage *MockConsentStorage, consentID string,
	authType domain.AuthType, statuses ...domain.ScaStatus) []*domain.AuthorisationResource {
	t.Helper()
	ctx := context.Background()
	auths := make([]*domain.AuthorisationResource, 0, len(statuses))
	for i, status := range statuses {
		auth := &domain.AuthorisationResource{
			AuthorisationID: consentID + "-" + string(authType) + "-" + string(rune('a'+i)),
			ConsentID:       consentID,
			AuthType:        authType,
			Status:          status,
		}
		require.NoError(t, storage.CreateAuthorisation(ctx, auth))
		auths = append(auths, auth)
	}
	return auths
}

func TestComputeAggregatedStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []domain.ScaStatus
		expected domain.AggregatedStatus
	}{
		{
			name:     "no authorisations",
			statuses: nil,
			expected: domain.AggregatedNone,
		},
		{
			name:     "single finalised",
			statuses: []domain.ScaStatus{domain.ScaFinalised},
			expected: domain.AggregatedFullyAuthorised,
		},
		{
			name:     "exempted counts as success",
			statuses: []domain.ScaStatus{domain.ScaFinalised, domain.ScaExempted},
			expected: domain.AggregatedFullyAuthorised,
		},
		{
			name:     "one finalised one pending",
			statuses: []domain.ScaStatus{domain.ScaFinalised, domain.ScaPsuAuthenticated},
			expected: domain.AggregatedPartiallyAuthorised,
		},
		{
			name:     "all pending",
			statuses: []domain.ScaStatus{domain.ScaReceived, domain.ScaPsuIdentified},
			expected: domain.AggregatedNone,
		},
		{
			name:     "revocation short-circuits everything else",
			statuses: []domain.ScaStatus{domain.ScaFinalised, domain.ScaRevokedByPsu, domain.ScaFailed},
			expected: domain.AggregatedRejected,
		},
		{
			name:     "failure short-circuits successes",
			statuses: []domain.ScaStatus{domain.ScaFinalised, domain.ScaFailed},
			expected: domain.AggregatedFailed,
		},
		{
			name:     "expired counts as failure",
			statuses: []domain.ScaStatus{domain.ScaFinalised, domain.ScaExpired},
			expected: domain.AggregatedFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auths := make([]domain.AuthorisationResource, 0, len(tt.statuses))
			for _, status := range tt.statuses {
				auths = append(auths, domain.AuthorisationResource{Status: status})
			}
			assert.Equal(t, tt.expected, ComputeAggregatedStatus(auths))
		})
	}
}

func TestAggregatorNotifiesHookOnTransition(t *testing.T) {
	ctx := context.Background()
	storage := NewMockConsentStorage()
	hook := NewMockStateChangeHook()
	aggregator := NewAggregator(storage, hook, nil, testLogger())

	auths := seedAuthorisations(t, storage, "c-1", domain.AuthTypeCreate,
		domain.ScaFinalised, domain.ScaFinalised)

	result, err := aggregator.OnStatusChange(ctx, "c-1", auths[1])
	require.NoError(t, err)

	assert.Equal(t, domain.AggregatedFullyAuthorised, result.Status)
	assert.True(t, result.Changed)

	calls := hook.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "c-1", calls[0].ConsentID)
	assert.Equal(t, domain.AuthTypeCreate, calls[0].AuthType)
	assert.Equal(t, domain.AggregatedFullyAuthorised, calls[0].Aggregated)
}

func TestAggregatorSkipsHookWhenAggregateUnchanged(t *testing.T) {
	ctx := context.Background()
	storage := NewMockConsentStorage()
	hook := NewMockStateChangeHook()
	aggregator := NewAggregator(storage, hook, nil, testLogger())

	auths := seedAuthorisations(t, storage, "c-1", domain.AuthTypeCreate,
		domain.ScaFinalised, domain.ScaReceived)

	// First recomputation transitions to partially authorised.
	result, err := aggregator.OnStatusChange(ctx, "c-1", auths[0])
	require.NoError(t, err)
	assert.Equal(t, domain.AggregatedPartiallyAuthorised, result.Status)
	assert.True(t, result.Changed)

	// A second leg update that leaves the aggregate unchanged is a no-op.
	result, err = aggregator.OnStatusChange(ctx, "c-1", auths[1])
	require.NoError(t, err)
	assert.Equal(t, domain.AggregatedPartiallyAuthorised, result.Status)
	assert.False(t, result.Changed)

	assert.Len(t, hook.Calls(), 1)
}

func TestAggregatorSkipsHookWhenNothingDecided(t *testing.T) {
	ctx := context.Background()
	storage := NewMockConsentStorage()
	hook := NewMockStateChangeHook()
	aggregator := NewAggregator(storage, hook, nil, testLogger())

	auths := seedAuthorisations(t, storage, "c-1", domain.AuthTypeCreate,
		domain.ScaReceived, domain.ScaPsuAuthenticated)

	result, err := aggregator.OnStatusChange(ctx, "c-1", auths[1])
	require.NoError(t, err)
	assert.Equal(t, domain.AggregatedNone, result.Status)
	assert.Empty(t, hook.Calls())
}

func TestAggregatorDropsBookkeepingForFinishedConsents(t *testing.T) {
	ctx := context.Background()
	storage := NewMockConsentStorage()
	hook := NewMockStateChangeHook()
	aggregator := NewAggregator(storage, hook, nil, testLogger())

	// In-flight consents are tracked.
	pending := seedAuthorisations(t, storage, "c-pending", domain.AuthTypeCreate,
		domain.ScaFinalised, domain.ScaReceived)
	_, err := aggregator.OnStatusChange(ctx, "c-pending", pending[0])
	require.NoError(t, err)

	aggregator.mu.Lock()
	assert.Len(t, aggregator.last, 1)
	assert.Len(t, aggregator.locks, 1)
	aggregator.mu.Unlock()

	// A terminal aggregate drops the consent from both maps so they stay
	// bounded by the number of unfinished consents.
	for i, consentID := range []string{"c-full", "c-rejected", "c-failed"} {
		status := []domain.ScaStatus{domain.ScaFinalised, domain.ScaRevokedByPsu, domain.ScaFailed}[i]
		auths := seedAuthorisations(t, storage, consentID, domain.AuthTypeCreate, status)
		_, err := aggregator.OnStatusChange(ctx, consentID, auths[0])
		require.NoError(t, err)
	}

	aggregator.mu.Lock()
	assert.Len(t, aggregator.last, 1, "only the unfinished consent remains tracked")
	assert.Len(t, aggregator.locks, 1)
	_, tracked := aggregator.locks["c-pending"]
	aggregator.mu.Unlock()
	assert.True(t, tracked)
}

func TestAggregatorKeepsConsentLockWhileOtherLegTypePending(t *testing.T) {
	ctx := context.Background()
	storage := NewMockConsentStorage()
	hook := NewMockStateChangeHook()
	aggregator := NewAggregator(storage, hook, nil, testLogger())

	createLegs := seedAuthorisations(t, storage, "c-1", domain.AuthTypeCreate, domain.ScaFinalised)
	cancelLegs := seedAuthorisations(t, storage, "c-1", domain.AuthTypeCancel,
		domain.ScaFinalised, domain.ScaReceived)

	_, err := aggregator.OnStatusChange(ctx, "c-1", cancelLegs[0])
	require.NoError(t, err)

	// The creation aggregate goes terminal but the cancellation flow is
	// still open, so the consent lock must survive.
	_, err = aggregator.OnStatusChange(ctx, "c-1", createLegs[0])
	require.NoError(t, err)

	aggregator.mu.Lock()
	_, tracked := aggregator.locks["c-1"]
	_, createTracked := aggregator.last["c-1/"+string(domain.AuthTypeCreate)]
	_, cancelTracked := aggregator.last["c-1/"+string(domain.AuthTypeCancel)]
	aggregator.mu.Unlock()

	assert.True(t, tracked)
	assert.False(t, createTracked)
	assert.True(t, cancelTracked)
}

func TestAggregatorFiltersByAuthType(t *testing.T) {
	ctx := context.Background()
	storage := NewMockConsentStorage()
	hook := NewMockStateChangeHook()
	aggregator := NewAggregator(storage, hook, nil, testLogger())

	// The creation legs are all finalised; the cancellation leg is not.
	seedAuthorisations(t, storage, "c-1", domain.AuthTypeCreate,
		domain.ScaFinalised, domain.ScaFinalised)
	cancel := seedAuthorisations(t, storage, "c-1", domain.AuthTypeCancel, domain.ScaFinalised)

	result, err := aggregator.OnStatusChange(ctx, "c-1", cancel[0])
	require.NoError(t, err)

	// Only the single cancellation leg participates.
	assert.Equal(t, domain.AggregatedFullyAuthorised, result.Status)
	calls := hook.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.AuthTypeCancel, calls[0].AuthType)
}

func TestAggregatorHookFailureDoesNotFailUpdate(t *testing.T) {
	ctx := context.Background()
	storage := NewMockConsentStorage()
	hook := NewMockStateChangeHook()
	hook.OnAuthorisationStateChangeFn = func(ctx context.Context, consentID string,
		authType domain.AuthType, aggregated domain.AggregatedStatus,
		triggering *domain.AuthorisationResource) (string, error) {
		return "", errors.New("downstream unavailable")
	}
	aggregator := NewAggregator(storage, hook, nil, testLogger())

	auths := seedAuthorisations(t, storage, "c-1", domain.AuthTypeCreate, domain.ScaFinalised)

	result, err := aggregator.OnStatusChange(ctx, "c-1", auths[0])
	require.NoError(t, err)
	assert.Equal(t, domain.AggregatedFullyAuthorised, result.Status)
	assert.True(t, result.Changed)
}

func TestAggregatorPropagatesRedirectURL(t *testing.T) {
	ctx := context.Background()
	storage := NewMockConsentStorage()
	hook := NewMockStateChangeHook()
	hook.OnAuthorisationStateChangeFn = func(ctx context.Context, consentID string,
		authType domain.AuthType, aggregated domain.AggregatedStatus,
		triggering *domain.AuthorisationResource) (string, error) {
		return "https://bank.example/sca/redirect", nil
	}
	aggregator := NewAggregator(storage, hook, nil, testLogger())

	auths := seedAuthorisations(t, storage, "c-1", domain.AuthTypeCreate, domain.ScaFinalised)

	result, err := aggregator.OnStatusChange(ctx, "c-1", auths[0])
	require.NoError(t, err)
	assert.Equal(t, "https://bank.example/sca/redirect", result.RedirectURL)
}

func TestAggregatorStorageFailure(t *testing.T) {
	ctx := context.Background()
	storage := NewMockConsentStorage()
	storage.GetAuthorisationsFn = func(ctx context.Context, consentID string) ([]domain.AuthorisationResource, error) {
		return nil, errors.New("connection reset")
	}
	aggregator := NewAggregator(storage, NewMockStateChangeHook(), nil, testLogger())

	_, err := aggregator.OnStatusChange(ctx, "c-1", &domain.AuthorisationResource{
		ConsentID: "c-1",
		AuthType:  domain.AuthTypeCreate,
	})
	assert.Error(t, err)
}
