package domain

import "strings"

// ServiceCategory is the canonical banking service a request path resolves to.
type ServiceCategory string

const (
	CategoryAccounts                  ServiceCategory = "accounts"
	CategoryCardAccounts              ServiceCategory = "card-accounts"
	CategoryPayments                  ServiceCategory = "payments"
	CategoryBulkPayments              ServiceCategory = "bulk-payments"
	CategoryPeriodicPayments          ServiceCategory = "periodic-payments"
	CategoryFundsConfirmations        ServiceCategory = "funds-confirmations"
	CategoryExplicitAuthorisation     ServiceCategory = "explicit-authorisation"
	CategoryCancellationAuthorisation ServiceCategory = "cancellation-authorisation"
	CategoryUnknown                   ServiceCategory = "unknown"
)

// Request is the transport-agnostic view of one inbound gateway request.
// It is derived per call and never persisted.
type Request struct {
	Method    string
	Path      string
	RequestID string
	ClientID  string
	PsuID     string
	Body      []byte

	Category ServiceCategory
	Params   map[string]string
}

// PathSegments splits a raw request path into its segments.
func PathSegments(path string) []string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Response is the transport-agnostic result of handling a request.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// WithHeader sets a response header, allocating the map on first use.
func (r *Response) WithHeader(key, value string) *Response {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}
