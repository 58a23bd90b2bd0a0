package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fincore/xs2a-consent-gateway/internal/application"
	"github.com/fincore/xs2a-consent-gateway/internal/domain"
)

// ServiceHandler serves retrieval (GET) and revocation (DELETE) of an
// existing consent or payment resource.
type ServiceHandler struct {
	storage application.ConsentStorage
	logger  *slog.Logger
}

func NewServiceHandler(storage application.ConsentStorage, logger *slog.Logger) *ServiceHandler {
	return &ServiceHandler{storage: storage, logger: logger}
}

func (h *ServiceHandler) Handle(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	consentID := resourceID(req.Params)
	if consentID == "" {
		return nil, application.NewFormatError("Resource identifier missing from request path")
	}

	consent, err := h.storage.GetConsent(ctx, consentID)
	if err != nil {
		if errors.Is(err, domain.ErrConsentNotFound) {
			return nil, application.NewResourceUnknownError(err)
		}
		return nil, application.NewInternalError(err)
	}

	switch req.Method {
	case http.MethodGet:
		return h.handleGet(consent)
	case http.MethodDelete:
		return h.handleDelete(ctx, consent)
	default:
		return nil, application.NewMethodNotAllowedError(req.Method)
	}
}

func (h *ServiceHandler) handleGet(consent *domain.Consent) (*domain.Response, error) {
	body, err := json.Marshal(map[string]any{
		"consentId":     consent.ConsentID,
		"consentStatus": consent.Status,
	})
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return &domain.Response{StatusCode: http.StatusOK, Body: body}, nil
}

func (h *ServiceHandler) handleDelete(ctx context.Context, consent *domain.Consent) (*domain.Response, error) {
	switch consent.Status {
	case domain.ConsentRevokedByPsu, domain.ConsentTerminatedByTpp, domain.ConsentExpired:
		return nil, application.NewStatusInvalidError(
			fmt.Errorf("consent %s is already %s", consent.ConsentID, consent.Status))
	}

	switch consent.Type {
	case domain.ConsentTypePayments, domain.ConsentTypeBulkPayments, domain.ConsentTypePeriodicPayments:
		// Payment cancellation needs its own authorisation round; the DELETE
		// only parks the resource until the cancellation legs finalise.
		if err := h.storage.UpdateConsentStatus(ctx, consent.ConsentID, domain.ConsentCancellationPending); err != nil {
			return nil, application.NewInternalError(err)
		}
		h.logger.Info("payment cancellation requested", "payment_id", consent.ConsentID)
		body, err := json.Marshal(map[string]any{
			"transactionStatus": "CANC",
			"_links": map[string]any{
				"startAuthorisationWithPsuIdentification": map[string]string{
					"href": fmt.Sprintf("/v1/%s/%s/cancellation-authorisations", consent.Type, consent.ConsentID),
				},
			},
		})
		if err != nil {
			return nil, application.NewInternalError(err)
		}
		return &domain.Response{StatusCode: http.StatusAccepted, Body: body}, nil
	default:
		if err := h.storage.UpdateConsentStatus(ctx, consent.ConsentID, domain.ConsentTerminatedByTpp); err != nil {
			return nil, application.NewInternalError(err)
		}
		h.logger.Info("consent terminated by TPP", "consent_id", consent.ConsentID)
		return &domain.Response{StatusCode: http.StatusNoContent}, nil
	}
}

// SubmissionValidator guards PUT submissions against a payment resource: the
// consent must exist and every required authorisation must have finalised.
type SubmissionValidator struct {
	storage application.ConsentStorage
	logger  *slog.Logger
}

func NewSubmissionValidator(storage application.ConsentStorage, logger *slog.Logger) *SubmissionValidator {
	return &SubmissionValidator{storage: storage, logger: logger}
}

func (h *SubmissionValidator) Handle(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	consentID := resourceID(req.Params)
	if consentID == "" {
		return nil, application.NewFormatError("Resource identifier missing from request path")
	}

	consent, err := h.storage.GetConsent(ctx, consentID)
	if err != nil {
		if errors.Is(err, domain.ErrConsentNotFound) {
			return nil, application.NewResourceUnknownError(err)
		}
		return nil, application.NewInternalError(err)
	}

	authorisations, err := h.storage.GetAuthorisations(ctx, consentID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	creating := authorisations[:0:0]
	for _, auth := range authorisations {
		if auth.AuthType == domain.AuthTypeCreate {
			creating = append(creating, auth)
		}
	}
	if ComputeAggregatedStatus(creating) != domain.AggregatedFullyAuthorised {
		return nil, application.NewStatusInvalidError(
			fmt.Errorf("consent %s is not fully authorised", consent.ConsentID))
	}

	body, err := json.Marshal(map[string]any{
		"consentId":     consent.ConsentID,
		"consentStatus": consent.Status,
	})
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return &domain.Response{StatusCode: http.StatusOK, Body: body}, nil
}

// resourceID returns the consent identifier regardless of which service
// surface the path named it through.
func resourceID(params map[string]string) string {
	if id, ok := params["consentId"]; ok {
		return id
	}
	return params["paymentId"]
}
