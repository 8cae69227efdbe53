package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func dialChat(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	if err := wsjson.Read(ctx, conn, v); err != nil {
		t.Fatalf("read frame: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestChat_JSONAndRawFrames(t *testing.T) {
	t.Parallel()

	svc := newFakeChat("alice")
	srv := httptest.NewServer(newTestGateway(t, Config{}, svc).Handler())
	defer srv.Close()

	conn := dialChat(t, srv, "?user=alice")

	if err := wsjson.Write(t.Context(), conn, map[string]string{"content": "I have a headache"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply replyFrame
	readJSON(t, conn, &reply)
	if reply.Type != "message" || reply.Role != "assistant" || reply.Content != "echo: I have a headache" {
		t.Errorf("reply = %+v", reply)
	}

	if err := conn.Write(t.Context(), websocket.MessageText, []byte("  plain text  ")); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	readJSON(t, conn, &reply)
	if reply.Content != "echo: plain text" {
		t.Errorf("raw reply = %+v", reply)
	}

	if got := svc.received(); len(got) != 2 {
		t.Errorf("turns = %v, want 2", got)
	}

	_ = conn.Close(websocket.StatusNormalClosure, "")
	waitFor(t, func() bool {
		connects, disconnects := svc.counts()
		return connects == 1 && disconnects == 1
	})
}

func TestChat_UserHeader(t *testing.T) {
	t.Parallel()

	svc := newFakeChat("bob")
	srv := httptest.NewServer(newTestGateway(t, Config{}, svc).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, _, err := websocket.Dial(t.Context(), url, &websocket.DialOptions{
		HTTPHeader: http.Header{userHeader: []string{"bob"}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.CloseNow() }()

	if err := wsjson.Write(t.Context(), conn, map[string]string{"content": "hi"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply replyFrame
	readJSON(t, conn, &reply)
	if reply.Content != "echo: hi" {
		t.Errorf("reply = %+v", reply)
	}
}

func TestChat_UnknownUserClosesWithPolicyViolation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestGateway(t, Config{}, newFakeChat()).Handler())
	defer srv.Close()

	conn := dialChat(t, srv, "?user=mallory")

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != websocket.StatusPolicyViolation {
		t.Fatalf("close status = %v (err %v), want %v", got, err, websocket.StatusPolicyViolation)
	}
}

func TestChat_MissingUser(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestGateway(t, Config{}, newFakeChat()).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	_, resp, err := websocket.Dial(t.Context(), url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("resp = %+v, want 400", resp)
	}
}

func TestChat_TurnFailureSendsErrorFrame(t *testing.T) {
	t.Parallel()

	svc := newFakeChat("alice")
	svc.turnErr = errors.New("provider down")
	srv := httptest.NewServer(newTestGateway(t, Config{}, svc).Handler())
	defer srv.Close()

	conn := dialChat(t, srv, "?user=alice")
	if err := wsjson.Write(t.Context(), conn, map[string]string{"content": "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var frame errorFrame
	readJSON(t, conn, &frame)
	if frame.Type != "error" || frame.Message != turnFailedText {
		t.Errorf("frame = %+v", frame)
	}

	// The socket stays usable after a failed turn.
	svc.mu.Lock()
	svc.turnErr = nil
	svc.mu.Unlock()
	if err := wsjson.Write(t.Context(), conn, map[string]string{"content": "again"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply replyFrame
	readJSON(t, conn, &reply)
	if reply.Content != "echo: again" {
		t.Errorf("reply = %+v", reply)
	}
}

func TestChat_RateLimited(t *testing.T) {
	t.Parallel()

	svc := newFakeChat("alice")
	srv := httptest.NewServer(newTestGateway(t, Config{RateLimit: RateLimitConfig{TurnsPerMinute: 1}}, svc).Handler())
	defer srv.Close()

	conn := dialChat(t, srv, "?user=alice")
	for range 2 {
		if err := wsjson.Write(t.Context(), conn, map[string]string{"content": "hi"}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	var reply replyFrame
	readJSON(t, conn, &reply)
	if reply.Type != "message" {
		t.Fatalf("first frame = %+v", reply)
	}
	var limited errorFrame
	readJSON(t, conn, &limited)
	if limited.Type != "error" || limited.Message != rateLimitedText {
		t.Errorf("second frame = %+v", limited)
	}
	if got := svc.received(); len(got) != 1 {
		t.Errorf("turns = %d, want 1", len(got))
	}
}

func TestChat_BinaryFrameCloses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestGateway(t, Config{}, newFakeChat("alice")).Handler())
	defer srv.Close()

	conn := dialChat(t, srv, "?user=alice")
	if err := conn.Write(t.Context(), websocket.MessageBinary, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != websocket.StatusUnsupportedData {
		t.Fatalf("close status = %v, want %v", got, websocket.StatusUnsupportedData)
	}
}

func TestParseFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{`{"content":"hello"}`, "hello"},
		{`{"content":"  padded  "}`, "padded"},
		{`{"type":"ping"}`, ""},
		{`plain words`, "plain words"},
		{`   `, ""},
		{`{not json`, "{not json"},
	}
	for _, tt := range tests {
		if got := parseFrame([]byte(tt.in)); got != tt.want {
			t.Errorf("parseFrame(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
