package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/recall/internal/chat"
	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/pkg/message"
)

// HistoryResponse is the body of GET /api/users/{id}/messages.
type HistoryResponse struct {
	UserID   string            `json:"user_id"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
	Messages []message.Message `json:"messages"`
}

// handleHistory serves GET /api/users/{id}/messages?limit=&offset=.
func (g *Gateway) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "id")

		limit, err := queryInt(r, "limit")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		offset, err := queryInt(r, "offset")
		if err != nil || offset < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid offset")
			return
		}

		msgs, err := g.chat.History(r.Context(), userID, limit, offset)
		switch {
		case errors.Is(err, memory.ErrUnknownUser):
			writeJSONError(w, http.StatusNotFound, "unknown user")
			return
		case err != nil:
			g.logger.Error("history read failed", "user", userID, "error", err)
			writeJSONError(w, http.StatusServiceUnavailable, "history unavailable")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HistoryResponse{
			UserID:   userID,
			Limit:    chat.HistoryLimit(limit),
			Offset:   offset,
			Messages: msgs,
		})
	}
}

// queryInt parses an optional integer query parameter; absent is zero.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
