package moonraker

import (
	"testing"
	"time"

	"github.com/spoolworks/spoolbridge/internal/testutil/testlog"
)

func TestNextBackoffDelayGrowth(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     500 * time.Millisecond,
		Jitter:       false,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 500 * time.Millisecond},
		{10, 500 * time.Millisecond},
	}
	for _, tc := range tests {
		if got := NextBackoffDelay(cfg, tc.attempt, nil); got != tc.want {
			t.Fatalf("attempt %d: delay = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestNextBackoffDelayJitterStaysBounded(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     1 * time.Second,
		Jitter:       true,
	}
	// Nil rng takes the deterministic half-delay path.
	if got := NextBackoffDelay(cfg, 3, nil); got != 200*time.Millisecond {
		t.Fatalf("jittered delay = %v, want 200ms", got)
	}
}

func TestNextBackoffDelayZeroInitial(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{Multiplier: 2.0}
	if got := NextBackoffDelay(cfg, 5, nil); got != 0 {
		t.Fatalf("delay = %v, want 0", got)
	}
}
