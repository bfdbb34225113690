// Package supervisor implements the Supervisor Core: the per-stream state
// machine, the Start/Stop/VersionUpdate handlers, the health tick, and
// startup/shutdown orchestration. It is the heart of the agent.
//
// Commands are serialized through a single channel and handled by one
// goroutine, so Stream Record transitions never race each other even though
// events arrive concurrently from the control-plane subscription and the
// health ticker.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgestream/streamsup/internal/controlplane"
	"github.com/edgestream/streamsup/internal/model"
	"github.com/edgestream/streamsup/internal/recordstore"
	"github.com/edgestream/streamsup/internal/recovery"
	"github.com/edgestream/streamsup/internal/transcoder"
	"github.com/edgestream/streamsup/internal/util"
)

// Config parameterizes the Supervisor Core.
type Config struct {
	HealthCheckInterval time.Duration // default 30s
	Logger              *slog.Logger
	Metrics             *Metrics // optional; nil disables Prometheus collectors
}

func (c Config) healthCheckInterval() time.Duration {
	if c.HealthCheckInterval > 0 {
		return c.HealthCheckInterval
	}
	return 30 * time.Second
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Supervisor is the single per-host actor owning every Stream Record.
type Supervisor struct {
	cfg Config

	store  *recordstore.Store
	driver *transcoder.Driver
	cp     *controlplane.Client
	dedup  *controlplane.Dedup

	cmdCh chan command
}

// New wires the Supervisor Core to its collaborators. None of store, driver
// or cp may be nil.
func New(cfg Config, store *recordstore.Store, driver *transcoder.Driver, cp *controlplane.Client) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		store:  store,
		driver: driver,
		cp:     cp,
		dedup:  controlplane.NewDedup(),
		cmdCh:  make(chan command, 256),
	}
}

// OnRetry implements transcoder.RetryBinding: it is invoked by the driver on
// every child exit and forwards a cmdProcessExited command into the
// supervisor's serialized queue, never touching supervisor state directly
// from the driver's own goroutine.
func (s *Supervisor) OnRetry(req transcoder.StartRequest, exitErr error) {
	s.cmdCh <- command{kind: cmdProcessExited, exitRequest: req, exitErr: exitErr}
}

// Run performs the full lifecycle: initialize (recovery + wipe), subscribe,
// run the health tick, and serve the command queue, until ctx is cancelled,
// at which point it shuts down every running stream and returns.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.initialize(ctx); err != nil {
		return fmt.Errorf("supervisor: initialize: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.cp.Run(gctx, func(evt model.Event) {
			select {
			case s.cmdCh <- command{kind: cmdEventReceived, event: evt}:
			case <-gctx.Done():
			}
		})
	})

	g.Go(func() error {
		return s.healthLoop(gctx)
	})

	g.Go(func() error {
		return s.serve(gctx)
	})

	err := g.Wait()
	s.shutdown()
	return err
}

// serve is the single serialized handler goroutine: every mutation of
// supervisor-owned state happens here and nowhere else.
func (s *Supervisor) serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-s.cmdCh:
			if err := util.RecoverToPanic(func() error {
				s.dispatch(ctx, cmd)
				return nil
			}); err != nil {
				s.cfg.logger().Error("recovered panic in command dispatch", "error", err, "kind", cmd.kind)
			}
		}
	}
}

func (s *Supervisor) dispatch(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdEventReceived:
		s.handleEvent(ctx, cmd.event)
	case cmdTick:
		s.handleTick(ctx)
	case cmdProcessExited:
		s.handleProcessExited(ctx, cmd.exitRequest, cmd.exitErr)
	}
}

func (s *Supervisor) handleEvent(ctx context.Context, evt model.Event) {
	if s.dedup.Seen(evt, time.Now()) {
		s.cfg.logger().Info("dropping duplicate event", "action", evt.Action, "courtId", evt.CourtID)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.dedupDrops.Inc()
		}
		return
	}

	switch evt.Action {
	case model.ActionStart:
		s.handleStart(ctx, evt)
	case model.ActionStop:
		s.handleStop(ctx, evt)
	case model.ActionVersionUpdate:
		handleVersionUpdate(s.cfg.logger(), evt)
	default:
		s.cfg.logger().Warn("dropping unknown action", "action", evt.Action)
	}
}

func (s *Supervisor) healthLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.healthCheckInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			select {
			case s.cmdCh <- command{kind: cmdTick}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (s *Supervisor) handleTick(ctx context.Context) {
	if !s.cp.Connected() {
		s.cfg.logger().Warn("health tick: sse subscription not connected, requesting reconnect")
		s.cp.Reconnect()
	}

	running, err := s.store.FindRunning()
	if err != nil {
		s.cfg.logger().Error("health tick: find running records failed", "error", err)
		return
	}
	for _, r := range running {
		if r.ProcessID == 0 || !s.driver.IsProcessRunning(r.ProcessID) {
			s.cfg.logger().Warn("health tick: process dead, marking failed", "id", r.ID, "courtId", r.CourtID)
			if err := r.Transition(model.StateFailed, time.Now()); err != nil {
				s.cfg.logger().Error("health tick: invalid transition", "error", err)
				continue
			}
			if err := s.store.Save(r); err != nil {
				s.cfg.logger().Error("health tick: save failed", "error", err)
			}
		}
	}
}

// initialize ensures the state directory exists (the Store constructor
// already guarantees this), runs the recovery sweep, and wipes the record
// store: the control plane will re-declare intent on reconnect, so local
// history is not authoritative across a restart.
func (s *Supervisor) initialize(ctx context.Context) error {
	if err := recovery.Recover(ctx, s.cfg.logger(), s.store, s.driver); err != nil {
		return fmt.Errorf("recovery sweep: %w", err)
	}
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clear record store: %w", err)
	}
	return nil
}

// shutdown stops the health tick and subscription (already done via ctx
// cancellation propagated through errgroup), stops every running stream via
// the Stop use-case, and finally bulk-kills any residual transcoder handles.
func (s *Supervisor) shutdown() {
	running, err := s.store.FindRunning()
	if err == nil {
		for _, r := range running {
			if r.ProcessID != 0 {
				r.ExpectedExit = true
				_ = s.store.Save(r)
				s.driver.StopStream(r.ProcessID)
			}
		}
	}
	s.driver.KillAllProcesses()
}
