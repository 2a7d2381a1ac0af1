package infra

import (
	"time"
)

const (
	// DefaultBaseDelay is the first reconnect delay.
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxAttempts caps reconnects before the stream is
	// declared offline.
	DefaultMaxAttempts = 5
)

// ReconnectDelay returns the delay before the given reconnect attempt
// (1-based). Delays grow linearly: baseDelay * attempt, so attempts
// 1,2,3 wait 1s,2s,3s with the default base.
func ReconnectDelay(attempt int, baseDelay time.Duration) time.Duration {
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if attempt < 1 {
		attempt = 1
	}
	return baseDelay * time.Duration(attempt)
}
