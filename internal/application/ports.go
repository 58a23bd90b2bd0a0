package application

import (
	"context"

	"github.com/fincore/xs2a-consent-gateway/internal/domain"
)

// Handler processes one classified gateway request. Implementations must be
// stateless; the registry constructs a fresh handler per request.
type Handler interface {
	Handle(ctx context.Context, req *domain.Request) (*domain.Response, error)
}

// ConsentStorage is the consent persistence collaborator. It is the source
// of truth for consents and their authorisation resources; the gateway never
// caches its results beyond a single recomputation.
type ConsentStorage interface {
	CreateConsent(ctx context.Context, consent *domain.Consent) error
	GetConsent(ctx context.Context, consentID string) (*domain.Consent, error)
	UpdateConsentStatus(ctx context.Context, consentID string, status domain.ConsentStatus) error

	CreateAuthorisation(ctx context.Context, auth *domain.AuthorisationResource) error
	GetAuthorisation(ctx context.Context, authorisationID string) (*domain.AuthorisationResource, error)
	GetAuthorisations(ctx context.Context, consentID string) ([]domain.AuthorisationResource, error)
	UpdateAuthorisationStatus(ctx context.Context, authorisationID string, status domain.ScaStatus) error
}

// StateChangeHook is notified when the aggregated authorisation status of a
// consent changes. The hook owns any resulting consent-status persistence and
// may return a redirect URL which is passed back to the caller unchanged.
// Hook failures are reported but never roll back the authorisation write that
// triggered the recomputation.
type StateChangeHook interface {
	OnAuthorisationStateChange(ctx context.Context, consentID string, authType domain.AuthType,
		aggregated domain.AggregatedStatus, triggering *domain.AuthorisationResource) (redirectURL string, err error)
}

// StateChangeHookFunc adapts a function to the StateChangeHook interface.
type StateChangeHookFunc func(ctx context.Context, consentID string, authType domain.AuthType,
	aggregated domain.AggregatedStatus, triggering *domain.AuthorisationResource) (string, error)

func (f StateChangeHookFunc) OnAuthorisationStateChange(ctx context.Context, consentID string,
	authType domain.AuthType, aggregated domain.AggregatedStatus,
	triggering *domain.AuthorisationResource) (string, error) {
	return f(ctx, consentID, authType, aggregated, triggering)
}
