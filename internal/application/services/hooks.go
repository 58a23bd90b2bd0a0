package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fincore/xs2a-consent-gateway/internal/application"
	"github.com/fincore/xs2a-consent-gateway/internal/domain"
)

// ConsentEventPublisher streams consent status changes to interested
// consumers. The NATS publisher in infrastructure/events satisfies this.
type ConsentEventPublisher interface {
	PublishConsentStatusChanged(ctx context.Context, consentID string, authType domain.AuthType,
		status domain.ConsentStatus, aggregated domain.AggregatedStatus) error
}

// ConsentStateChangeHook is the default StateChangeHook: it maps the
// aggregated authorisation status to a consent status, persists the
// transition and publishes a status-changed event.
type ConsentStateChangeHook struct {
	storage   application.ConsentStorage
	publisher ConsentEventPublisher
	logger    *slog.Logger
}

var _ application.StateChangeHook = (*ConsentStateChangeHook)(nil)

func NewConsentStateChangeHook(storage application.ConsentStorage, publisher ConsentEventPublisher, logger *slog.Logger) *ConsentStateChangeHook {
	return &ConsentStateChangeHook{
		storage:   storage,
		publisher: publisher,
		logger:    logger,
	}
}

func (h *ConsentStateChangeHook) OnAuthorisationStateChange(ctx context.Context, consentID string,
	authType domain.AuthType, aggregated domain.AggregatedStatus,
	triggering *domain.AuthorisationResource) (string, error) {

	status, ok := consentStatusFor(authType, aggregated)
	if !ok {
		return "", nil
	}

	if err := h.storage.UpdateConsentStatus(ctx, consentID, status); err != nil {
		return "", fmt.Errorf("failed to persist consent status %s: %w", status, err)
	}

	h.logger.Info("consent status updated from aggregate",
		"consent_id", consentID,
		"auth_type", authType,
		"aggregated_status", aggregated,
		"consent_status", status,
	)

	if h.publisher != nil {
		if err := h.publisher.PublishConsentStatusChanged(ctx, consentID, authType, status, aggregated); err != nil {
			// Event streaming is best effort; the status write stands.
			h.logger.Warn("failed to publish consent status change",
				"consent_id", consentID,
				"error", err,
			)
		}
	}

	return "", nil
}

// consentStatusFor maps an aggregated authorisation status to the consent
// status the hook persists. Cancellation legs only act on full sign-off.
func consentStatusFor(authType domain.AuthType, aggregated domain.AggregatedStatus) (domain.ConsentStatus, bool) {
	if authType == domain.AuthTypeCancel {
		if aggregated == domain.AggregatedFullyAuthorised {
			return domain.ConsentRevokedByPsu, true
		}
		return "", false
	}

	switch aggregated {
	case domain.AggregatedFullyAuthorised:
		return domain.ConsentValid, true
	case domain.AggregatedPartiallyAuthorised:
		return domain.ConsentPartiallyAuthorised, true
	case domain.AggregatedRejected, domain.AggregatedFailed:
		return domain.ConsentRejected, true
	default:
		return "", false
	}
}
