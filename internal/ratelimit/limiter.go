// Package ratelimit provides a token-bucket limiter decoupled from the wall
// clock, used to gate live purchase execution.
package ratelimit

import (
	"sync"
	"time"

	"github.com/amitpo23/medici-web03012026-sub001/internal/clock"
)

// TokenBucket refills at a fixed rate up to its capacity. The zero rate is
// treated as one token per minute.
type TokenBucket struct {
	capacity float64
	perSec   float64
	clk      clock.Clock

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewPerMinute builds a bucket allowing ratePerMinute operations per minute,
// with burst capacity equal to the rate.
func NewPerMinute(ratePerMinute int, clk clock.Clock) *TokenBucket {
	if ratePerMinute <= 0 {
		ratePerMinute = 1
	}
	now := clk.Now()
	return &TokenBucket{
		capacity: float64(ratePerMinute),
		perSec:   float64(ratePerMinute) / 60.0,
		clk:      clk,
		tokens:   float64(ratePerMinute),
		last:     now,
	}
}

// Allow consumes one token when available. A breach is a plain false; the
// caller decides whether that means skip, queue or fail.
func (b *TokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clk.Now()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.perSec
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
