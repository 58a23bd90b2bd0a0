package rest

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fincore/xs2a-consent-gateway/internal/application"
	"github.com/fincore/xs2a-consent-gateway/internal/dispatch"
	"github.com/fincore/xs2a-consent-gateway/internal/domain"
	"github.com/fincore/xs2a-consent-gateway/internal/interfaces/rest/middleware"
)

// maxBodyBytes caps inbound payloads; consent and payment initiation bodies
// are small JSON documents.
const maxBodyBytes = 1 << 20

// Server adapts inbound HTTP requests onto the dispatch facade.
type Server struct {
	facade *dispatch.Facade
	logger *slog.Logger
}

func NewServer(facade *dispatch.Facade, logger *slog.Logger) *Server {
	return &Server{facade: facade, logger: logger}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, r, application.NewPayloadTooLargeError(tooLarge.Limit), s.logger)
			return
		}
		WriteError(w, r, application.NewFormatError("Failed to read request body"), s.logger)
		return
	}

	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	req := &domain.Request{
		Method:    r.Method,
		Path:      path,
		RequestID: r.Header.Get(dispatch.XRequestIDHeader),
		ClientID:  middleware.ClientIDFromContext(r.Context()),
		PsuID:     r.Header.Get("PSU-ID"),
		Body:      body,
	}

	resp, err := s.facade.Handle(r.Context(), req)
	if err != nil {
		WriteError(w, r, err, s.logger)
		return
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if len(resp.Body) > 0 {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			s.logger.Error("failed to write response", "error", err)
		}
	}
}
