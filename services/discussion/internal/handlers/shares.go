package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/discussion-platform/internal/platform/api"
	"github.com/example/discussion-platform/services/discussion/internal/shares"
)

type shareRequest struct {
	Platform string `json:"platform"`
}

// GetShares handles GET /v1/shares/{content_id}
func GetShares(sc shares.Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sc.Get(r.Context(), strings.TrimSpace(chi.URLParam(r, "content_id")))
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, s)
	}
}

// RecordShare handles POST /v1/shares/{content_id}
func RecordShare(sc shares.Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req shareRequest
		if err := api.DecodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", requestID(r), nil)
			return
		}
		s, err := sc.IncrementShare(r.Context(), strings.TrimSpace(chi.URLParam(r, "content_id")), req.Platform)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, s)
	}
}
