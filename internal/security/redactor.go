// Package security holds log redaction and request throttling shared by the
// gateway and the process logger.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// Redactor replaces secret values in strings with RedactPlaceholder.
// Patterns catch known API key shapes, literals catch configured secrets
// such as the provider key and the gateway bearer token.
// All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor with DefaultPatterns and the given literals.
func NewRedactor(literals ...string) *Redactor {
	r := &Redactor{patterns: DefaultPatterns()}
	for _, lit := range literals {
		r.AddLiteral(lit)
	}
	return r
}

// AddLiteral registers a secret value. Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact masks every known pattern and literal in s.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	return s
}

// DefaultPatterns returns compiled patterns for the key formats an
// OpenAI-compatible deployment tends to carry around.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// OpenRouter: sk-or-v1-<hex>
		regexp.MustCompile(`sk-or-v1-[a-fA-F0-9]{20,}`),
		// OpenAI: sk-..., sk-proj-...
		regexp.MustCompile(`sk-(proj-)?[a-zA-Z0-9_\-]{20,}`),
		// Authorization header values.
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._\-]{16,}`),
		// Redis URLs with inline credentials.
		regexp.MustCompile(`rediss?://[^:@/\s]*:[^@/\s]+@`),
	}
}
