package application

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError carries the gateway error taxonomy together with the HTTP
// status it maps to at the edge.
type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodePathInvalid         = "PATH_INVALID"
	ErrCodeMethodNotAllowed    = "SERVICE_INVALID"
	ErrCodeFormatError         = "FORMAT_ERROR"
	ErrCodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	ErrCodeIdempotencyPending  = "IDEMPOTENCY_PENDING_TIMEOUT"
	ErrCodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	ErrCodeResourceUnknown     = "RESOURCE_UNKNOWN"
	ErrCodeStatusInvalid       = "STATUS_INVALID"
	ErrCodeInternal            = "INTERNAL_SERVER_ERROR"
)

func NewPathInvalidError(path string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePathInvalid,
		Message:    fmt.Sprintf("No matching service found for path %q", path),
		HTTPStatus: http.StatusNotFound,
	}
}

func NewMethodNotAllowedError(method string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeMethodNotAllowed,
		Message:    fmt.Sprintf("The %s method is not supported", method),
		HTTPStatus: http.StatusMethodNotAllowed,
	}
}

func NewFormatError(message string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeFormatError,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewPayloadTooLargeError(limit int64) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePayloadTooLarge,
		Message:    fmt.Sprintf("Request body exceeds the %d byte limit", limit),
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
}

func NewIdempotencyConflictError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeIdempotencyConflict,
		Message:    "X-Request-ID reused with a different request payload",
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewIdempotencyPendingTimeoutError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeIdempotencyPending,
		Message:    "A request with the same X-Request-ID is still being processed",
		HTTPStatus: http.StatusConflict,
	}
}

func NewResourceUnknownError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeResourceUnknown,
		Message:    "The addressed resource is unknown",
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}

func NewStatusInvalidError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeStatusInvalid,
		Message:    "The resource is not in a status that permits this operation",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
