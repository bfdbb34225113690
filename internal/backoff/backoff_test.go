package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 1*time.Second, 0)

	assert.Equal(t, 100*time.Millisecond, b.NextDelay())
	b.RecordAttempt()
	assert.Equal(t, 200*time.Millisecond, b.NextDelay())
	b.RecordAttempt()
	assert.Equal(t, 400*time.Millisecond, b.NextDelay())
	b.RecordAttempt()
	assert.Equal(t, 800*time.Millisecond, b.NextDelay())
	b.RecordAttempt()
	assert.Equal(t, 1*time.Second, b.NextDelay(), "capped at maxDelay")
}

func TestBackoffMaxAttempts(t *testing.T) {
	b := NewBackoff(time.Millisecond, time.Second, 2)
	assert.False(t, b.ShouldStop())
	b.RecordAttempt()
	assert.False(t, b.ShouldStop())
	b.RecordAttempt()
	assert.True(t, b.ShouldStop())
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second, 5)
	b.RecordAttempt()
	b.RecordAttempt()
	b.Reset()
	assert.Equal(t, 0, b.Attempts())
	assert.Equal(t, 100*time.Millisecond, b.NextDelay())
}

func TestBackoffNilReceiverSafe(t *testing.T) {
	var b *Backoff
	assert.Equal(t, time.Duration(0), b.NextDelay())
	assert.Equal(t, 0, b.Attempts())
	assert.False(t, b.ShouldStop())
	b.RecordAttempt() // must not panic
	b.Reset()         // must not panic
}

func TestBackoffWaitRespectsCancellation(t *testing.T) {
	b := NewBackoff(time.Hour, time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoffJitterStaysWithinRatio(t *testing.T) {
	b := NewBackoff(time.Second, time.Second, 0).WithJitter(0.5)
	for i := 0; i < 50; i++ {
		d := b.NextDelay()
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}
