package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/flemzord/recall/internal/memory"
)

// Chat frame texts sent to clients.
const (
	turnFailedText  = "An error occurred while processing your message."
	rateLimitedText = "Too many messages. Please wait a moment and try again."
)

// userHeader carries the user ID when the query parameter is absent.
const userHeader = "X-User-ID"

// inboundFrame is a client turn. Plain text frames are accepted as well.
type inboundFrame struct {
	Content string `json:"content"`
}

// replyFrame carries the assistant reply.
type replyFrame struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// errorFrame reports a failed turn without closing the socket.
type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// handleChat runs one chat session: accept, bootstrap, then one turn per
// inbound text frame until the client leaves.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = r.Header.Get(userHeader)
	}
	if userID == "" {
		http.Error(w, "missing user", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.config.AllowedOrigins,
	})
	if err != nil {
		g.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()

	ctx := r.Context()
	if err := g.chat.Connect(ctx, userID); err != nil {
		if errors.Is(err, memory.ErrUnknownUser) {
			g.logger.Warn("rejected unknown user", "user", userID)
			_ = conn.Close(websocket.StatusPolicyViolation, "unknown user")
			return
		}
		g.logger.Error("session open failed", "user", userID, "error", err)
		_ = conn.Close(websocket.StatusInternalError, "session unavailable")
		return
	}
	defer g.chat.Disconnect(userID)

	g.track(conn, userID)
	defer g.untrack(conn)

	g.readLoop(ctx, conn, userID)
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, userID string) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				g.logger.Debug("chat socket closed", "user", userID)
			default:
				g.logger.Debug("chat read ended", "user", userID, "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			_ = conn.Close(websocket.StatusUnsupportedData, "text frames only")
			return
		}

		input := parseFrame(data)
		if input == "" {
			continue
		}

		if err := g.turnLimiter.Allow(userID); err != nil {
			g.metrics.RateLimited("turn")
			g.write(ctx, conn, errorFrame{Type: "error", Message: rateLimitedText})
			continue
		}

		reply, err := g.chat.HandleTurn(ctx, userID, input)
		if err != nil {
			g.logger.Error("chat turn failed", "user", userID, "error", err)
			g.write(ctx, conn, errorFrame{Type: "error", Message: turnFailedText})
			continue
		}
		g.write(ctx, conn, replyFrame{Type: "message", Role: "assistant", Content: reply})
	}
}

// parseFrame extracts the user input from {"content": ...} or raw text.
func parseFrame(data []byte) string {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err == nil && f.Content != "" {
		return strings.TrimSpace(f.Content)
	}
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") && json.Valid(data) {
		// A JSON object without content is not a turn.
		return ""
	}
	return text
}

func (g *Gateway) write(ctx context.Context, conn *websocket.Conn, v any) {
	ctx, cancel := context.WithTimeout(ctx, g.config.WriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, v); err != nil {
		g.logger.Warn("chat write failed", "error", err)
	}
}
