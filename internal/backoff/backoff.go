package backoff

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Backoff implements capped exponential backoff with optional jitter. It is
// nil-receiver safe so a *Backoff embedded in a zero-valued struct never
// panics — every method falls back to sane defaults.
//
// One Backoff type serves both the SSE reconnect loop in internal/controlplane
// and the remote log shipper's retry in internal/logging, rather than two
// separate implementations.
type Backoff struct {
	mu sync.RWMutex

	initialDelay time.Duration
	maxDelay     time.Duration
	jitterRatio  float64 // 0 disables jitter
	maxAttempts  int

	currentDelay time.Duration
	attempts     int
}

// NewBackoff returns a Backoff with the given initial/max delay and no
// jitter, uncapped attempts (maxAttempts<=0 means unbounded).
func NewBackoff(initialDelay, maxDelay time.Duration, maxAttempts int) *Backoff {
	return &Backoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		currentDelay: initialDelay,
		maxAttempts:  maxAttempts,
	}
}

// WithJitter sets a symmetric jitter ratio (e.g. 0.5 for ±50%) applied to
// the delay returned by NextDelay/Wait.
func (b *Backoff) WithJitter(ratio float64) *Backoff {
	if b == nil {
		return b
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jitterRatio = ratio
	return b
}

// Attempts returns the number of attempts recorded so far.
func (b *Backoff) Attempts() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.attempts
}

// MaxAttempts returns the configured attempt ceiling (0 = unbounded).
func (b *Backoff) MaxAttempts() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxAttempts
}

// ShouldStop reports whether the attempt ceiling has been reached.
func (b *Backoff) ShouldStop() bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxAttempts > 0 && b.attempts >= b.maxAttempts
}

// NextDelay returns the delay to wait before the next attempt, applying
// jitter if configured, without mutating state.
func (b *Backoff) NextDelay() time.Duration {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	delay := b.currentDelay
	ratio := b.jitterRatio
	b.mu.RUnlock()

	if ratio <= 0 {
		return delay
	}
	// delay * (1 + U(-ratio, ratio))
	jitter := 1 + (rand.Float64()*2-1)*ratio
	jittered := time.Duration(float64(delay) * jitter)
	if jittered < 0 {
		jittered = 0
	}
	return jittered
}

// RecordAttempt doubles the delay (capped at maxDelay) and increments the
// attempt counter. Called once per attempt taken, regardless of outcome,
// since the attempt ceiling bounds total tries, not total failures.
func (b *Backoff) RecordAttempt() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	b.currentDelay *= 2
	if b.currentDelay > b.maxDelay {
		b.currentDelay = b.maxDelay
	}
}

// Reset restores the backoff to its initial delay and zero attempts. Used
// after a successful reconnect to rebind.
func (b *Backoff) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.currentDelay = b.initialDelay
	b.attempts = 0
}

// Wait blocks for NextDelay or until ctx is done, whichever comes first.
func (b *Backoff) Wait(ctx context.Context) error {
	delay := b.NextDelay()
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
