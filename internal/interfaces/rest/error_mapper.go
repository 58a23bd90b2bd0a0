package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fincore/xs2a-consent-gateway/internal/application"
)

// TPPMessage is the Berlin Group error envelope entry.
type TPPMessage struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Path     string `json:"path,omitempty"`
	Text     string `json:"text"`
}

type ErrorResponse struct {
	TPPMessages []TPPMessage `json:"tppMessages"`
}

// WriteError maps a gateway error onto the Berlin error envelope. The
// X-Request-ID header is echoed even on failure.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	statusCode := http.StatusInternalServerError
	code := application.ErrCodeInternal
	message := "An internal error occurred"

	if svcErr, ok := application.IsServiceError(err); ok {
		statusCode = svcErr.HTTPStatus
		code = svcErr.Code
		message = svcErr.Message
	} else {
		logger.Error("unhandled error reached the edge", "error", err, "path", r.URL.Path)
	}

	if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}

	response := ErrorResponse{
		TPPMessages: []TPPMessage{{
			Category: "ERROR",
			Code:     code,
			Path:     r.URL.Path,
			Text:     message,
		}},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		logger.Error("failed to encode error response", "error", encodeErr)
	}
}
