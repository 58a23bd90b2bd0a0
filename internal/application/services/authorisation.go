package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fincore/xs2a-consent-gateway/internal/application"
	"github.com/fincore/xs2a-consent-gateway/internal/domain"
	"github.com/oklog/ulid/v2"
)

// AuthorisationHandler serves the explicit-authorisation sub-resources of a
// consent: starting an authorisation (POST), reading authorisation state
// (GET) and advancing a PSU's SCA status (PUT). PUT drives the aggregator.
type AuthorisationHandler struct {
	storage    application.ConsentStorage
	aggregator *Aggregator
	authType   domain.AuthType
	logger     *slog.Logger
}

func NewAuthorisationHandler(storage application.ConsentStorage, aggregator *Aggregator,
	authType domain.AuthType, logger *slog.Logger) *AuthorisationHandler {
	return &AuthorisationHandler{
		storage:    storage,
		aggregator: aggregator,
		authType:   authType,
		logger:     logger,
	}
}

func (h *AuthorisationHandler) Handle(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	consentID := resourceID(req.Params)
	if consentID == "" {
		return nil, application.NewFormatError("Resource identifier missing from request path")
	}

	if _, err := h.storage.GetConsent(ctx, consentID); err != nil {
		if errors.Is(err, domain.ErrConsentNotFound) {
			return nil, application.NewResourceUnknownError(err)
		}
		return nil, application.NewInternalError(err)
	}

	switch req.Method {
	case http.MethodPost:
		return h.startAuthorisation(ctx, consentID, req)
	case http.MethodGet:
		return h.getAuthorisations(ctx, consentID, req)
	case http.MethodPut:
		return h.updateAuthorisation(ctx, consentID, req)
	default:
		return nil, application.NewMethodNotAllowedError(req.Method)
	}
}

func (h *AuthorisationHandler) startAuthorisation(ctx context.Context, consentID string, req *domain.Request) (*domain.Response, error) {
	auth := &domain.AuthorisationResource{
		AuthorisationID: ulid.Make().String(),
		ConsentID:       consentID,
		AuthType:        h.authType,
		UserID:          req.PsuID,
		Status:          domain.ScaReceived,
		UpdatedAt:       time.Now().UTC(),
	}

	if err := h.storage.CreateAuthorisation(ctx, auth); err != nil {
		return nil, application.NewInternalError(fmt.Errorf("failed to start authorisation: %w", err))
	}

	h.logger.Info("authorisation started",
		"consent_id", consentID,
		"authorisation_id", auth.AuthorisationID,
		"auth_type", auth.AuthType,
	)

	body, err := json.Marshal(map[string]any{
		"authorisationId": auth.AuthorisationID,
		"scaStatus":       auth.Status,
	})
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return &domain.Response{StatusCode: http.StatusCreated, Body: body}, nil
}

func (h *AuthorisationHandler) getAuthorisations(ctx context.Context, consentID string, req *domain.Request) (*domain.Response, error) {
	if authID, ok := req.Params["authorisationId"]; ok {
		auth, err := h.storage.GetAuthorisation(ctx, authID)
		if err != nil {
			if errors.Is(err, domain.ErrAuthorisationNotFound) {
				return nil, application.NewResourceUnknownError(err)
			}
			return nil, application.NewInternalError(err)
		}
		if auth.ConsentID != consentID {
			return nil, application.NewResourceUnknownError(domain.ErrConsentMismatch)
		}
		body, err := json.Marshal(map[string]any{"scaStatus": auth.Status})
		if err != nil {
			return nil, application.NewInternalError(err)
		}
		return &domain.Response{StatusCode: http.StatusOK, Body: body}, nil
	}

	authorisations, err := h.storage.GetAuthorisations(ctx, consentID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	ids := make([]string, 0, len(authorisations))
	for _, auth := range authorisations {
		if auth.AuthType == h.authType {
			ids = append(ids, auth.AuthorisationID)
		}
	}
	body, err := json.Marshal(map[string]any{"authorisationIds": ids})
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return &domain.Response{StatusCode: http.StatusOK, Body: body}, nil
}

type authorisationUpdatePayload struct {
	ScaStatus             domain.ScaStatus `json:"scaStatus"`
	ScaAuthenticationData string           `json:"scaAuthenticationData"`
	PsuData               *struct {
		Password string `json:"password"`
	} `json:"psuData"`
}

func (h *AuthorisationHandler) updateAuthorisation(ctx context.Context, consentID string, req *domain.Request) (*domain.Response, error) {
	authID, ok := req.Params["authorisationId"]
	if !ok {
		return nil, application.NewFormatError("Authorisation identifier missing from request path")
	}

	var payload authorisationUpdatePayload
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return nil, application.NewFormatError("Request body is not valid JSON")
	}

	auth, err := h.storage.GetAuthorisation(ctx, authID)
	if err != nil {
		if errors.Is(err, domain.ErrAuthorisationNotFound) {
			return nil, application.NewResourceUnknownError(err)
		}
		return nil, application.NewInternalError(err)
	}
	if auth.ConsentID != consentID {
		return nil, application.NewResourceUnknownError(domain.ErrConsentMismatch)
	}

	newStatus := nextScaStatus(auth.Status, payload)
	if !domain.IsValidScaStatus(newStatus) {
		return nil, application.NewFormatError(fmt.Sprintf("Unknown scaStatus %q", newStatus))
	}

	if err := h.storage.UpdateAuthorisationStatus(ctx, authID, newStatus); err != nil {
		return nil, application.NewInternalError(err)
	}
	auth.Status = newStatus

	result, err := h.aggregator.OnStatusChange(ctx, consentID, auth)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	h.logger.Info("authorisation updated",
		"consent_id", consentID,
		"authorisation_id", authID,
		"sca_status", newStatus,
		"aggregated_status", result.Status,
	)

	respBody := map[string]any{"scaStatus": newStatus}
	if result.RedirectURL != "" {
		respBody["_links"] = map[string]any{
			"scaRedirect": map[string]string{"href": result.RedirectURL},
		}
	}
	body, err := json.Marshal(respBody)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return &domain.Response{StatusCode: http.StatusOK, Body: body}, nil
}

// nextScaStatus picks the status an update moves the authorisation leg to.
// An explicit scaStatus wins; otherwise supplying credentials authenticates
// the PSU and supplying an SCA OTP finalises the leg.
func nextScaStatus(current domain.ScaStatus, payload authorisationUpdatePayload) domain.ScaStatus {
	if payload.ScaStatus != "" {
		return payload.ScaStatus
	}
	if payload.ScaAuthenticationData != "" {
		return domain.ScaFinalised
	}
	if payload.PsuData != nil {
		return domain.ScaPsuAuthenticated
	}
	return current
}
