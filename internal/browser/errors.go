package browser

import (
	"context"
	"errors"
	"strings"
)

// Failure kinds of DOM interactions.
var (
	// ErrTimeout means a bounded wait elapsed without observing its condition.
	ErrTimeout = errors.New("timed out")
	// ErrElementNotFound means a control or option could not be located.
	ErrElementNotFound = errors.New("element not found")
	// ErrNotInteractable means the element exists but rejected the interaction.
	ErrNotInteractable = errors.New("element not interactable")
)

// IsTimeout reports whether err is a bounded wait running out.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsBrowserClosed reports whether err means the browser session is gone,
// as opposed to a page that is merely slow.
func IsBrowserClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}

	msg := strings.ToLower(err.Error())
	closedPatterns := []string{
		"websocket: close",
		"target closed",
		"browser: not connected",
		"session closed",
		"page closed",
		"connection refused",
		"broken pipe",
		"invalid context",
	}
	for _, pattern := range closedPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// IsContextCanceled checks whether ctx is done.
func IsContextCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
