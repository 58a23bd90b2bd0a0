package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fincore/xs2a-consent-gateway/internal/application"
	"github.com/fincore/xs2a-consent-gateway/internal/domain"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// InitiationHandler creates a new consent of one service type together with
// its implicit first authorisation.
type InitiationHandler struct {
	storage     application.ConsentStorage
	consentType domain.ConsentType
	logger      *slog.Logger
}

func NewInitiationHandler(storage application.ConsentStorage, consentType domain.ConsentType, logger *slog.Logger) *InitiationHandler {
	return &InitiationHandler{
		storage:     storage,
		consentType: consentType,
		logger:      logger,
	}
}

type initiationPayload struct {
	RecurringIndicator bool `json:"recurringIndicator"`
}

func (h *InitiationHandler) Handle(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	if len(req.Body) > 0 && !json.Valid(req.Body) {
		return nil, application.NewFormatError("Request body is not valid JSON")
	}

	var payload initiationPayload
	if len(req.Body) > 0 {
		// Structural schema validation is the gateway host's concern; only
		// the fields the consent record needs are read here.
		_ = json.Unmarshal(req.Body, &payload)
	}

	consent := &domain.Consent{
		ConsentID: uuid.New().String(),
		ClientID:  req.ClientID,
		Type:      h.consentType,
		Status:    domain.ConsentReceived,
		Payload:   req.Body,
		Recurring: payload.RecurringIndicator,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.storage.CreateConsent(ctx, consent); err != nil {
		return nil, application.NewInternalError(fmt.Errorf("failed to create consent: %w", err))
	}

	auth := &domain.AuthorisationResource{
		AuthorisationID: ulid.Make().String(),
		ConsentID:       consent.ConsentID,
		AuthType:        domain.AuthTypeCreate,
		UserID:          req.PsuID,
		Status:          domain.ScaReceived,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := h.storage.CreateAuthorisation(ctx, auth); err != nil {
		return nil, application.NewInternalError(fmt.Errorf("failed to create implicit authorisation: %w", err))
	}

	h.logger.Info("consent initiated",
		"consent_id", consent.ConsentID,
		"consent_type", consent.Type,
		"client_id", consent.ClientID,
	)

	body, err := json.Marshal(initiationResponse(consent, auth))
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	return &domain.Response{StatusCode: http.StatusCreated, Body: body}, nil
}

func initiationResponse(consent *domain.Consent, auth *domain.AuthorisationResource) map[string]any {
	resp := map[string]any{
		"consentStatus":   consent.Status,
		"authorisationId": auth.AuthorisationID,
	}

	switch consent.Type {
	case domain.ConsentTypePayments, domain.ConsentTypeBulkPayments, domain.ConsentTypePeriodicPayments:
		resp["paymentId"] = consent.ConsentID
		resp["transactionStatus"] = "RCVD"
	default:
		resp["consentId"] = consent.ConsentID
	}
	return resp
}
