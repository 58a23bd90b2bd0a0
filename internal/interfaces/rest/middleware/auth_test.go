package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureClientID(t *testing.T, secret string, decorate func(r *http.Request)) string {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var captured string
	handler := ClientID(secret, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = ClientIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/consents", nil)
	decorate(req)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return captured
}

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestClientIDFromSignedToken(t *testing.T) {
	token := sign(t, "secret", jwt.MapClaims{
		"client_id": "tpp-1",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	clientID := captureClientID(t, "secret", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	assert.Equal(t, "tpp-1", clientID)
}

func TestClientIDFallsBackToSubject(t *testing.T) {
	token := sign(t, "secret", jwt.MapClaims{
		"sub": "tpp-sub",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	clientID := captureClientID(t, "secret", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	assert.Equal(t, "tpp-sub", clientID)
}

func TestClientIDRejectsBadSignature(t *testing.T) {
	token := sign(t, "wrong-secret", jwt.MapClaims{
		"client_id": "tpp-1",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	clientID := captureClientID(t, "secret", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	assert.Equal(t, AnonymousClient, clientID)
}

func TestClientIDNoToken(t *testing.T) {
	clientID := captureClientID(t, "secret", func(r *http.Request) {})
	assert.Equal(t, AnonymousClient, clientID)
}

func TestClientIDUnverifiedModeWithoutSecret(t *testing.T) {
	// With no configured secret the signature is not checked; the upstream
	// host gateway is trusted to have validated the token.
	token := sign(t, "whatever", jwt.MapClaims{"client_id": "tpp-9"})

	clientID := captureClientID(t, "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	assert.Equal(t, "tpp-9", clientID)
}

func TestClientIDFromContextDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, AnonymousClient, ClientIDFromContext(req.Context()))
}
