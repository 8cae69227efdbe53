// Package message defines the chat message value shared by the cache,
// the durable store and the LLM collaborators.
package message

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

// Supported roles. Only user and assistant turns are persisted.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Validation errors.
var (
	ErrInvalidRole  = errors.New("message: invalid role")
	ErrEmptyContent = errors.New("message: empty content")
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ParseRole converts a stored role string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Message is a single persisted conversation turn.
// Seq is assigned by the durable store and is zero until the message is saved.
type Message struct {
	Seq       int64     `json:"seq,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// New builds a validated message that has not been persisted yet.
func New(role Role, content string) (Message, error) {
	m := Message{Role: role, Content: content}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Validate checks the role and rejects blank content.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
	}
	if strings.TrimSpace(m.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// Line renders the message as "role: content", the form used when a
// conversation range is handed to the summarizer.
func (m Message) Line() string {
	return string(m.Role) + ": " + m.Content
}

// Transcript joins messages as newline-separated Line values.
func Transcript(msgs []Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Line())
	}
	return b.String()
}
