package routing

import (
	"errors"
	"net/http"

	"github.com/fincore/xs2a-consent-gateway/internal/application"
	"github.com/fincore/xs2a-consent-gateway/internal/domain"
)

var (
	// ErrHandlerNotFound means no handler is whitelisted for the
	// (category, method) combination.
	ErrHandlerNotFound = errors.New("no handler registered for route")

	// ErrMethodNotAllowed is returned for PATCH on every category.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// HandlerFactory constructs a fresh, stateless handler for one request.
type HandlerFactory func() application.Handler

type routeKey struct {
	category domain.ServiceCategory
	method   string
}

// Registry is a static whitelist of (category, method) routes. Anything not
// registered resolves to ErrHandlerNotFound; PATCH always resolves to
// ErrMethodNotAllowed regardless of registration.
type Registry struct {
	table map[routeKey]HandlerFactory
}

func NewRegistry() *Registry {
	return &Registry{table: make(map[routeKey]HandlerFactory)}
}

// Register adds a route to the whitelist. Registering PATCH panics since the
// method is globally disallowed.
func (r *Registry) Register(category domain.ServiceCategory, method string, factory HandlerFactory) {
	if method == http.MethodPatch {
		panic("routing: PATCH routes are not allowed")
	}
	r.table[routeKey{category: category, method: method}] = factory
}

// Resolve returns a freshly constructed handler for the route.
func (r *Registry) Resolve(category domain.ServiceCategory, method string) (application.Handler, error) {
	if method == http.MethodPatch {
		return nil, ErrMethodNotAllowed
	}
	factory, ok := r.table[routeKey{category: category, method: method}]
	if !ok {
		return nil, ErrHandlerNotFound
	}
	return factory(), nil
}
