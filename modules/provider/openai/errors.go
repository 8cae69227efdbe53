package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/openai/openai-go"

	"github.com/flemzord/recall/internal/provider"
)

// mapError maps SDK and network errors to provider sentinel errors.
// Context errors pass through unchanged.
func mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Error()
		switch {
		case apiErr.StatusCode == 429:
			return fmt.Errorf("%w: %s", provider.ErrRateLimit, msg)
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return fmt.Errorf("%w: %s", provider.ErrAuthentication, msg)
		case apiErr.StatusCode == 400 && isContextLength(msg):
			return fmt.Errorf("%w: %s", provider.ErrContextLength, msg)
		case apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: %s", provider.ErrProviderDown, msg)
		default:
			return fmt.Errorf("provider.openai: HTTP %d: %s", apiErr.StatusCode, msg)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	return fmt.Errorf("provider.openai: %w", err)
}

func isContextLength(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "context_length") || strings.Contains(msg, "maximum context length")
}
