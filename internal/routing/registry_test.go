package routing_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/fincore/xs2a-consent-gateway/internal/application"
	"github.com/fincore/xs2a-consent-gateway/internal/domain"
	"github.com/fincore/xs2a-consent-gateway/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct{ id int }

func (h *stubHandler) Handle(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	return &domain.Response{StatusCode: http.StatusOK}, nil
}

func TestRegistryResolve(t *testing.T) {
	registry := routing.NewRegistry()
	registry.Register(domain.CategoryAccounts, http.MethodPost, func() application.Handler {
		return &stubHandler{}
	})

	handler, err := registry.Resolve(domain.CategoryAccounts, http.MethodPost)
	require.NoError(t, err)
	assert.NotNil(t, handler)
}

func TestRegistryResolveUnregisteredRoute(t *testing.T) {
	registry := routing.NewRegistry()
	registry.Register(domain.CategoryAccounts, http.MethodPost, func() application.Handler {
		return &stubHandler{}
	})

	_, err := registry.Resolve(domain.CategoryAccounts, http.MethodDelete)
	assert.ErrorIs(t, err, routing.ErrHandlerNotFound)

	_, err = registry.Resolve(domain.CategoryPayments, http.MethodPost)
	assert.ErrorIs(t, err, routing.ErrHandlerNotFound)

	_, err = registry.Resolve(domain.CategoryUnknown, http.MethodGet)
	assert.ErrorIs(t, err, routing.ErrHandlerNotFound)
}

func TestRegistryPatchAlwaysRejected(t *testing.T) {
	registry := routing.NewRegistry()
	registry.Register(domain.CategoryAccounts, http.MethodPost, func() application.Handler {
		return &stubHandler{}
	})

	_, err := registry.Resolve(domain.CategoryAccounts, http.MethodPatch)
	assert.ErrorIs(t, err, routing.ErrMethodNotAllowed)
}

func TestRegistryRegisterPatchPanics(t *testing.T) {
	registry := routing.NewRegistry()
	assert.Panics(t, func() {
		registry.Register(domain.CategoryAccounts, http.MethodPatch, func() application.Handler {
			return &stubHandler{}
		})
	})
}

func TestRegistryConstructsFreshHandlerPerResolve(t *testing.T) {
	registry := routing.NewRegistry()
	next := 0
	registry.Register(domain.CategoryPayments, http.MethodPost, func() application.Handler {
		next++
		return &stubHandler{id: next}
	})

	first, err := registry.Resolve(domain.CategoryPayments, http.MethodPost)
	require.NoError(t, err)
	second, err := registry.Resolve(domain.CategoryPayments, http.MethodPost)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
}
