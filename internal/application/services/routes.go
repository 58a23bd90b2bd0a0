package services

import (
	"log/slog"
	"net/http"

	"github.com/fincore/xs2a-consent-gateway/internal/application"
	"github.com/fincore/xs2a-consent-gateway/internal/domain"
	"github.com/fincore/xs2a-consent-gateway/internal/routing"
)

// NewRouteRegistry builds the whitelist of (category, verb) routes the
// gateway serves. Each factory constructs a fresh handler per request so no
// handler carries cross-request state.
func NewRouteRegistry(storage application.ConsentStorage, aggregator *Aggregator, logger *slog.Logger) *routing.Registry {
	registry := routing.NewRegistry()

	initiation := func(consentType domain.ConsentType) routing.HandlerFactory {
		return func() application.Handler {
			return NewInitiationHandler(storage, consentType, logger)
		}
	}
	service := func() application.Handler {
		return NewServiceHandler(storage, logger)
	}
	authorisation := func(authType domain.AuthType) routing.HandlerFactory {
		return func() application.Handler {
			return NewAuthorisationHandler(storage, aggregator, authType, logger)
		}
	}

	registry.Register(domain.CategoryAccounts, http.MethodPost, initiation(domain.ConsentTypeAccounts))
	registry.Register(domain.CategoryAccounts, http.MethodGet, service)
	registry.Register(domain.CategoryAccounts, http.MethodDelete, service)

	registry.Register(domain.CategoryCardAccounts, http.MethodGet, service)

	for _, route := range []struct {
		category    domain.ServiceCategory
		consentType domain.ConsentType
	}{
		{domain.CategoryPayments, domain.ConsentTypePayments},
		{domain.CategoryBulkPayments, domain.ConsentTypeBulkPayments},
		{domain.CategoryPeriodicPayments, domain.ConsentTypePeriodicPayments},
	} {
		registry.Register(route.category, http.MethodPost, initiation(route.consentType))
		registry.Register(route.category, http.MethodGet, service)
		registry.Register(route.category, http.MethodDelete, service)
		registry.Register(route.category, http.MethodPut, func() application.Handler {
			return NewSubmissionValidator(storage, logger)
		})
	}

	registry.Register(domain.CategoryFundsConfirmations, http.MethodPost, initiation(domain.ConsentTypeFundsConfirmation))
	registry.Register(domain.CategoryFundsConfirmations, http.MethodGet, service)
	registry.Register(domain.CategoryFundsConfirmations, http.MethodDelete, service)

	for _, method := range []string{http.MethodPost, http.MethodGet, http.MethodPut} {
		registry.Register(domain.CategoryExplicitAuthorisation, method, authorisation(domain.AuthTypeCreate))
		registry.Register(domain.CategoryCancellationAuthorisation, method, authorisation(domain.AuthTypeCancel))
	}

	return registry
}
