package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flemzord/recall/internal/memory"
	"github.com/go-chi/chi/v5"
)

// handleMemory serves GET /api/users/{id}/memory.
func (g *Gateway) handleMemory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "id")

		snap, err := g.chat.Snapshot(r.Context(), userID)
		switch {
		case errors.Is(err, memory.ErrUnknownUser):
			writeJSONError(w, http.StatusNotFound, "unknown user")
			return
		case err != nil:
			g.logger.Error("memory snapshot failed", "user", userID, "error", err)
			writeJSONError(w, http.StatusServiceUnavailable, "memory unavailable")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
