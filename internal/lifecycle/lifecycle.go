// Package lifecycle provides the agent-wide single-instance guard and the
// signal-to-cancellation wiring that frames the daemon's run.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Frame owns the process-wide lock and the root context that the rest of
// the daemon runs under. Exactly one Frame should exist per process.
type Frame struct {
	lock   *FileLock
	logger *slog.Logger

	once   sync.Once
	cancel context.CancelFunc
}

// Acquire creates the agent-wide file lock at lockPath and a signal-derived
// root context. Returns an error if another instance already holds the
// lock. Call Frame.Shutdown when the daemon exits, regardless of how it
// exits, to release the lock and stop the signal watcher.
func Acquire(ctx context.Context, lockPath string, logger *slog.Logger) (*Frame, context.Context, error) {
	if logger == nil {
		logger = slog.Default()
	}

	lock, err := NewFileLock(lockPath)
	if err != nil {
		return nil, nil, err
	}
	if err := lock.AcquireContext(ctx, DefaultAcquireTimeout); err != nil {
		return nil, nil, fmt.Errorf("lifecycle: another instance appears to be running: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	f := &Frame{lock: lock, logger: logger, cancel: cancel}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig.String())
			f.cancel()
		case <-runCtx.Done():
		}
		signal.Stop(sigCh)
	}()

	return f, runCtx, nil
}

// Shutdown cancels the root context (if not already cancelled) and releases
// the file lock. Idempotent: safe to call more than once, including from a
// deferred call after an earlier explicit call.
func (f *Frame) Shutdown() error {
	var err error
	f.once.Do(func() {
		f.cancel()
		err = f.lock.Release()
	})
	return err
}

// WaitDeadline blocks until ctx is done or timeout elapses, whichever comes
// first, returning true if ctx finished within the deadline. Used by
// cmd/streamsup to bound graceful-shutdown waiting before a hard exit.
func WaitDeadline(ctx context.Context, timeout time.Duration) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(timeout):
		return false
	}
}
