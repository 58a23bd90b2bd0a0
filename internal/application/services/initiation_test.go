package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/fincore/xs2a-consent-gateway/internal/application"
	"github.com/fincore/xs2a-consent-gateway/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiationCreatesConsentWithImplicitAuthorisation(t *testing.T) {
	ctx := context.Background()
	storage := NewMockConsentStorage()
	handler := NewInitiationHandler(storage, domain.ConsentTypeAccounts, testLogger())

	resp, err := handler.Handle(ctx, &domain.Request{
		Method:   http.MethodPost,
		Path:     "/consents",
		ClientID: "tpp-1",
		PsuID:    "psu-1",
		Body:     []byte(`{"recurringIndicator":true,"access":{"balances":[]}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ConsentID       string `json:"consentId"`
		ConsentStatus   string `json:"consentStatus"`
		AuthorisationID string `json:"authorisationId"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &body))

	_, err = uuid.Parse(body.ConsentID)
	assert.NoError(t, err, "consent id should be a UUID")
	assert.Equal(t, "received", body.ConsentStatus)
	assert.NotEmpty(t, body.AuthorisationID)

	consent, err := storage.GetConsent(ctx, body.ConsentID)
	require.NoError(t, err)
	assert.Equal(t, "tpp-1", consent.ClientID)
	assert.Equal(t, domain.ConsentReceived, consent.Status)
	assert.True(t, consent.Recurring)

	auths, err := storage.GetAuthorisations(ctx, body.ConsentID)
	require.NoError(t, err)
	require.Len(t, auths, 1)
	assert.Equal(t, domain.AuthTypeCreate, auths[0].AuthType)
	assert.Equal(t, domain.ScaReceived, auths[0].Status)
	assert.Equal(t, "psu-1", auths[0].UserID)
}

func TestInitiationPaymentResponseShape(t *testing.T) {
	ctx := context.Background()
	storage := NewMockConsentStorage()
	handler := NewInitiationHandler(storage, domain.ConsentTypePayments, testLogger())

	resp, err := handler.Handle(ctx, &domain.Request{
		Method:   http.MethodPost,
		Path:     "/payments/sepa-credit-transfers",
		ClientID: "tpp-1",
		Body:     []byte(`{"instructedAmount":{"currency":"EUR","amount":"12.00"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	assert.Contains(t, body, "paymentId")
	assert.Equal(t, "RCVD", body["transactionStatus"])
	assert.NotContains(t, body, "consentId")
}

func TestInitiationRejectsMalformedBody(t *testing.T) {
	storage := NewMockConsentStorage()
	handler := NewInitiationHandler(storage, domain.ConsentTypeAccounts, testLogger())

	_, err := handler.Handle(context.Background(), &domain.Request{
		Method:   http.MethodPost,
		ClientID: "tpp-1",
		Body:     []byte(`{"recurringIndicator": tru`),
	})

	var svcErr *application.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "FORMAT_ERROR", svcErr.Code)
	assert.Equal(t, http.StatusBadRequest, svcErr.HTTPStatus)
}

func TestInitiationStorageFailure(t *testing.T) {
	storage := NewMockConsentStorage()
	storage.CreateConsentFn = func(ctx context.Context, consent *domain.Consent) error {
		return errors.New("insert failed")
	}
	handler := NewInitiationHandler(storage, domain.ConsentTypeAccounts, testLogger())

	_, err := handler.Handle(context.Background(), &domain.Request{
		Method:   http.MethodPost,
		ClientID: "tpp-1",
		Body:     []byte(`{}`),
	})

	var svcErr *application.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusInternalServerError, svcErr.HTTPStatus)
}
