package infra

import (
	"testing"
	"time"
)

func TestReconnectDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 3 * time.Second},
		{4, 4 * time.Second},
		{5, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := ReconnectDelay(tt.attempt, DefaultBaseDelay); got != tt.want {
			t.Errorf("ReconnectDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestReconnectDelay_CustomBase(t *testing.T) {
	base := 250 * time.Millisecond
	for attempt := 1; attempt <= 5; attempt++ {
		want := time.Duration(attempt) * base
		if got := ReconnectDelay(attempt, base); got != want {
			t.Errorf("ReconnectDelay(%d, %v) = %v, want %v", attempt, base, got, want)
		}
	}
}

func TestReconnectDelay_InvalidAttempt(t *testing.T) {
	if got := ReconnectDelay(0, DefaultBaseDelay); got != DefaultBaseDelay {
		t.Errorf("ReconnectDelay(0) = %v, want %v", got, DefaultBaseDelay)
	}
	if got := ReconnectDelay(-3, DefaultBaseDelay); got != DefaultBaseDelay {
		t.Errorf("ReconnectDelay(-3) = %v, want %v", got, DefaultBaseDelay)
	}
}
