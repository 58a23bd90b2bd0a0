package services

import (
	"context"
	"sort"
	"sync"

	"github.com/fincore/xs2a-consent-gateway/internal/domain"
)

// MockConsentStorage
type MockConsentStorage struct {
	mu             sync.RWMutex
	consents       map[string]*domain.Consent
	authorisations map[string]*domain.AuthorisationResource

	CreateConsentFn             func(ctx context.Context, consent *domain.Consent) error
	GetConsentFn                func(ctx context.Context, consentID string) (*domain.Consent, error)
	UpdateConsentStatusFn       func(ctx context.Context, consentID string, status domain.ConsentStatus) error
	CreateAuthorisationFn       func(ctx context.Context, auth *domain.AuthorisationResource) error
	GetAuthorisationFn          func(ctx context.Context, authorisationID string) (*domain.AuthorisationResource, error)
	GetAuthorisationsFn         func(ctx context.Context, consentID string) ([]domain.AuthorisationResource, error)
	UpdateAuthorisationStatusFn func(ctx context.Context, authorisationID string, status domain.ScaStatus) error
}

func NewMockConsentStorage() *MockConsentStorage {
	return &MockConsentStorage{
		consents:       make(map[string]*domain.Consent),
		authorisations: make(map[string]*domain.AuthorisationResource),
	}
}

func (m *MockConsentStorage) CreateConsent(ctx context.Context, consent *domain.Consent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateConsentFn != nil {
		return m.CreateConsentFn(ctx, consent)
	}
	copied := *consent
	m.consents[consent.ConsentID] = &copied
	return nil
}

func (m *MockConsentStorage) GetConsent(ctx context.Context, consentID string) (*domain.Consent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetConsentFn != nil {
		return m.GetConsentFn(ctx, consentID)
	}
	if c, ok := m.consents[consentID]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, domain.ErrConsentNotFound
}

func (m *MockConsentStorage) UpdateConsentStatus(ctx context.Context, consentID string, status domain.ConsentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateConsentStatusFn != nil {
		return m.UpdateConsentStatusFn(ctx, consentID, status)
	}
	c, ok := m.consents[consentID]
	if !ok {
		return domain.ErrConsentNotFound
	}
	c.Status = status
	return nil
}

func (m *MockConsentStorage) CreateAuthorisation(ctx context.Context, auth *domain.AuthorisationResource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateAuthorisationFn != nil {
		return m.CreateAuthorisationFn(ctx, auth)
	}
	copied := *auth
	m.authorisations[auth.AuthorisationID] = &copied
	return nil
}

func (m *MockConsentStorage) GetAuthorisation(ctx context.Context, authorisationID string) (*domain.AuthorisationResource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetAuthorisationFn != nil {
		return m.GetAuthorisationFn(ctx, authorisationID)
	}
	if a, ok := m.authorisations[authorisationID]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, domain.ErrAuthorisationNotFound
}

func (m *MockConsentStorage) GetAuthorisations(ctx context.Context, consentID string) ([]domain.AuthorisationResource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetAuthorisationsFn != nil {
		return m.GetAuthorisationsFn(ctx, consentID)
	}
	var result []domain.AuthorisationResource
	for _, a := range m.authorisations {
		if a.ConsentID == consentID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AuthorisationID < result[j].AuthorisationID
	})
	return result, nil
}

func (m *MockConsentStorage) UpdateAuthorisationStatus(ctx context.Context, authorisationID string, status domain.ScaStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateAuthorisationStatusFn != nil {
		return m.UpdateAuthorisationStatusFn(ctx, authorisationID, status)
	}
	a, ok := m.authorisations[authorisationID]
	if !ok {
		return domain.ErrAuthorisationNotFound
	}
	a.Status = status
	return nil
}

// MockStateChangeHook records every aggregate transition it is notified of.
type MockStateChangeHook struct {
	mu    sync.Mutex
	calls []HookCall

	OnAuthorisationStateChangeFn func(ctx context.Context, consentID string, authType domain.AuthType,
		aggregated domain.AggregatedStatus, triggering *domain.AuthorisationResource) (string, error)
}

type HookCall struct {
	ConsentID  string
	AuthType   domain.AuthType
	Aggregated domain.AggregatedStatus
}

func NewMockStateChangeHook() *MockStateChangeHook {
	return &MockStateChangeHook{}
}

func (m *MockStateChangeHook) OnAuthorisationStateChange(ctx context.Context, consentID string,
	authType domain.AuthType, aggregated domain.AggregatedStatus,
	triggering *domain.AuthorisationResource) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, HookCall{ConsentID: consentID, AuthType: authType, Aggregated: aggregated})
	m.mu.Unlock()
	if m.OnAuthorisationStateChangeFn != nil {
		return m.OnAuthorisationStateChangeFn(ctx, consentID, authType, aggregated, triggering)
	}
	return "", nil
}

func (m *MockStateChangeHook) Calls() []HookCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HookCall(nil), m.calls...)
}
