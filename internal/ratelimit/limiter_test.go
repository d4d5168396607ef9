package ratelimit

import (
	"testing"
	"time"

	"github.com/amitpo23/medici-web03012026-sub001/internal/clock"
)

func TestAllowConsumesBurstThenBlocks(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	bucket := NewPerMinute(2, clk)

	if !bucket.Allow() || !bucket.Allow() {
		t.Fatalf("expected the initial burst of 2 to be allowed")
	}
	if bucket.Allow() {
		t.Fatalf("expected third immediate call to be blocked")
	}
}

func TestAllowRefillsOverTime(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	bucket := NewPerMinute(1, clk)

	if !bucket.Allow() {
		t.Fatalf("expected first call allowed")
	}
	if bucket.Allow() {
		t.Fatalf("expected second call blocked before refill")
	}

	clk.Advance(30 * time.Second)
	if bucket.Allow() {
		t.Fatalf("expected call blocked at half refill")
	}

	clk.Advance(31 * time.Second)
	if !bucket.Allow() {
		t.Fatalf("expected call allowed after a full minute")
	}
}

func TestRefillCapsAtCapacity(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	bucket := NewPerMinute(2, clk)

	// A long idle period must not bank more than the burst capacity.
	clk.Advance(time.Hour)
	allowed := 0
	for i := 0; i < 10; i++ {
		if bucket.Allow() {
			allowed++
		}
	}
	if allowed != 2 {
		t.Fatalf("expected exactly 2 allowed after idle, got %d", allowed)
	}
}

func TestZeroRateDefaultsToOnePerMinute(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	bucket := NewPerMinute(0, clk)

	if !bucket.Allow() {
		t.Fatalf("expected one call allowed")
	}
	if bucket.Allow() {
		t.Fatalf("expected second call blocked")
	}
}
