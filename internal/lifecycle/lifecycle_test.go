package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileLockAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamsup.lock")

	lock, err := NewFileLock(path)
	require.NoError(t, err)

	require.NoError(t, lock.AcquireContext(context.Background(), time.Second))
	require.NoError(t, lock.Release())
}

func TestFileLockRejectsSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamsup.lock")

	first, err := NewFileLock(path)
	require.NoError(t, err)
	require.NoError(t, first.AcquireContext(context.Background(), time.Second))
	defer first.Release()

	second, err := NewFileLock(path)
	require.NoError(t, err)
	err = second.AcquireContext(context.Background(), 200*time.Millisecond)
	require.Error(t, err)
}

func TestFileLockRemovesStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamsup.lock")
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0o640))

	lock, err := NewFileLock(path)
	require.NoError(t, err)
	require.NoError(t, lock.AcquireContext(context.Background(), time.Second))
	require.NoError(t, lock.Release())
}

func TestAcquireRejectsConcurrentInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamsup.lock")

	frame, runCtx, err := Acquire(context.Background(), path, nil)
	require.NoError(t, err)
	defer frame.Shutdown()
	require.NoError(t, runCtx.Err())

	_, _, err = Acquire(context.Background(), path, nil)
	require.Error(t, err)
}

func TestShutdownIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamsup.lock")

	frame, runCtx, err := Acquire(context.Background(), path, nil)
	require.NoError(t, err)

	require.NoError(t, frame.Shutdown())
	require.NoError(t, frame.Shutdown())
	require.Error(t, runCtx.Err())
}

func TestWaitDeadlineReturnsTrueWhenContextFinishesFirst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.True(t, WaitDeadline(ctx, time.Second))
}

func TestWaitDeadlineReturnsFalseOnTimeout(t *testing.T) {
	ctx := context.Background()

	require.False(t, WaitDeadline(ctx, 10*time.Millisecond))
}
