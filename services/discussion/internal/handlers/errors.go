package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/discussion-platform/internal/platform/api"
	"github.com/example/discussion-platform/internal/platform/httpserver"
	"github.com/example/discussion-platform/services/discussion/internal/domain"
)

// Logger receives 5xx-class failures. Replaced in main.
var Logger = zap.NewNop()

func requestID(r *http.Request) string {
	return httpserver.RequestIDFromContext(r.Context())
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	rid := requestID(r)
	detail := ""
	var de *domain.Error
	if errors.As(err, &de) {
		detail = de.Detail
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		if detail == "" {
			detail = "invalid input"
		}
		api.BadRequest(w, "INVALID_INPUT", detail, rid, nil)
	case errors.Is(err, domain.ErrPermissionDenied):
		api.Forbidden(w, "FORBIDDEN", "only the author may modify this comment", rid)
	case errors.Is(err, domain.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "content no longer available", rid)
	case errors.Is(err, domain.ErrConflictExhausted):
		api.Retryable(w, http.StatusConflict, "CONFLICT", "too many concurrent updates, retry", rid, time.Second, nil)
	default:
		Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", rid),
			zap.Error(err),
		)
		api.Retryable(w, http.StatusServiceUnavailable, "UNAVAILABLE", "service temporarily unavailable, retry", rid, time.Second, nil)
	}
}
