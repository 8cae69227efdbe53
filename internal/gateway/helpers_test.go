package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/flemzord/recall/internal/chat"
	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/pkg/message"
)

// fakeChat is a ChatService with scripted answers.
type fakeChat struct {
	mu          sync.Mutex
	known       map[string]bool
	inputs      []string
	connects    int
	disconnects int
	turnErr     error
	snapErr     error
	historyErr  error
	pages       [][2]int
}

func newFakeChat(users ...string) *fakeChat {
	f := &fakeChat{known: make(map[string]bool)}
	for _, u := range users {
		f.known[u] = true
	}
	return f
}

func (f *fakeChat) Connect(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.known[userID] {
		return memory.ErrUnknownUser
	}
	f.connects++
	return nil
}

func (f *fakeChat) Disconnect(string) {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
}

func (f *fakeChat) HandleTurn(_ context.Context, _, input string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.turnErr != nil {
		return "", f.turnErr
	}
	return "echo: " + input, nil
}

func (f *fakeChat) Snapshot(_ context.Context, userID string) (chat.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.known[userID] {
		return chat.Snapshot{}, memory.ErrUnknownUser
	}
	if f.snapErr != nil {
		return chat.Snapshot{}, f.snapErr
	}
	return chat.Snapshot{UserID: userID, Summary: "likes tea", Unsummarized: 4}, nil
}

// History returns one message per requested slot, with seqs counting down
// from 100 - offset.
func (f *fakeChat) History(_ context.Context, userID string, limit, offset int) ([]message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.known[userID] {
		return nil, memory.ErrUnknownUser
	}
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	f.pages = append(f.pages, [2]int{limit, offset})
	msgs := []message.Message{}
	for i := range min(chat.HistoryLimit(limit), 3) {
		msgs = append(msgs, message.Message{Seq: int64(100 - offset - i), Role: message.RoleUser, Content: "hi"})
	}
	return msgs, nil
}

func (f *fakeChat) counts() (connects, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects
}

func (f *fakeChat) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

var errDown = errors.New("connection refused")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newTestGateway(t *testing.T, cfg Config, svc ChatService, checks ...HealthCheck) *Gateway {
	t.Helper()
	cfg.Defaults()
	return New(Options{Config: cfg, Chat: svc, Checks: checks, Logger: testLogger()})
}

func jsonDecode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}
