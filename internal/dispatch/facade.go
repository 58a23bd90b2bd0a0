package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fincore/xs2a-consent-gateway/internal/application"
	"github.com/fincore/xs2a-consent-gateway/internal/domain"
	"github.com/fincore/xs2a-consent-gateway/internal/idempotency"
	"github.com/fincore/xs2a-consent-gateway/internal/metrics"
	"github.com/fincore/xs2a-consent-gateway/internal/routing"
	"github.com/google/uuid"
)

// XRequestIDHeader is the client correlation header every request must carry
// and every response echoes back, regardless of outcome.
const XRequestIDHeader = "X-Request-ID"

// Facade orchestrates classification, handler resolution, idempotency
// enforcement and handler invocation for each inbound verb.
type Facade struct {
	registry *routing.Registry
	guard    *idempotency.Guard
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewFacade(registry *routing.Registry, guard *idempotency.Guard, m *metrics.Metrics, logger *slog.Logger) *Facade {
	return &Facade{
		registry: registry,
		guard:    guard,
		metrics:  m,
		logger:   logger,
	}
}

// Handle processes one request. The returned response always carries the
// echoed X-Request-ID header; on error the caller is responsible for echoing
// it onto the error envelope.
func (f *Facade) Handle(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	if err := validateRequestID(req.RequestID); err != nil {
		return nil, err
	}

	if req.Method == http.MethodPatch {
		f.logger.Warn("PATCH request rejected", "path", req.Path)
		return nil, application.NewMethodNotAllowedError(http.MethodPatch)
	}

	req.Category = routing.Classify(req.Path)
	req.Params = routing.ExtractParams(req.Path)

	handler, err := f.registry.Resolve(req.Category, req.Method)
	if err != nil {
		if errors.Is(err, routing.ErrMethodNotAllowed) {
			return nil, application.NewMethodNotAllowedError(req.Method)
		}
		f.logger.Warn("no handler for request",
			"path", req.Path,
			"method", req.Method,
			"category", req.Category,
		)
		return nil, application.NewPathInvalidError(req.Path)
	}

	var resp *domain.Response
	if req.Method == http.MethodPost {
		resp, err = f.handlePost(ctx, handler, req)
	} else {
		resp, err = handler.Handle(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	resp.WithHeader(XRequestIDHeader, req.RequestID)
	return resp, nil
}

// handlePost gates resource creation behind the idempotency guard so a
// repeated POST with the same X-Request-ID never re-executes side effects.
func (f *Facade) handlePost(ctx context.Context, handler application.Handler, req *domain.Request) (*domain.Response, error) {
	bodyHash := idempotency.HashBody(req.Body)

	result, err := f.guard.Check(ctx, req.ClientID, req.RequestID, bodyHash)
	if err != nil {
		if errors.Is(err, idempotency.ErrPendingTimeout) {
			f.metrics.ObserveIdempotency("pending_timeout")
			return nil, application.NewIdempotencyPendingTimeoutError()
		}
		return nil, application.NewInternalError(err)
	}

	switch result.Outcome {
	case idempotency.OutcomeConflict:
		f.metrics.ObserveIdempotency("conflict")
		f.logger.Warn("idempotency key reused with different payload",
			"request_id", req.RequestID,
			"client_id", req.ClientID,
		)
		return nil, application.NewIdempotencyConflictError()

	case idempotency.OutcomeReplay:
		f.metrics.ObserveIdempotency("replay")
		f.logger.Info("replaying cached response",
			"request_id", req.RequestID,
			"client_id", req.ClientID,
		)
		return &domain.Response{StatusCode: result.StatusCode, Body: result.Response}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			// A panicking handler must not leave the key claimed; release it
			// before the recovery middleware turns the panic into a 500.
			f.guard.Abort(req.ClientID, req.RequestID)
			panic(r)
		}
	}()

	resp, err := handler.Handle(ctx, req)
	if err != nil {
		// Failed requests are not cached; a retry starts over.
		f.guard.Abort(req.ClientID, req.RequestID)
		return nil, err
	}

	f.metrics.ObserveIdempotency("stored")
	if err := f.guard.Store(ctx, req.ClientID, req.RequestID, bodyHash, resp.StatusCode, resp.Body); err != nil {
		// The handler already ran; losing the cache entry only costs replay
		// protection for this key, so the response still goes out.
		f.logger.Error("failed to store idempotency record",
			"request_id", req.RequestID,
			"error", err,
		)
	}
	return resp, nil
}

func validateRequestID(requestID string) error {
	if requestID == "" {
		return application.NewFormatError("X-Request-ID header is missing")
	}
	if _, err := uuid.Parse(requestID); err != nil {
		return application.NewFormatError("X-Request-ID header must be a valid UUID")
	}
	return nil
}
