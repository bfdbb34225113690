package supervisor

import (
	"context"
	"time"

	"github.com/edgestream/streamsup/internal/model"
	"github.com/edgestream/streamsup/internal/transcoder"
)

// handleStop finds the running record for (evt.CameraURL, evt.StreamKey, evt.CourtID)
// and instructs the driver to stop it. A stop for a stream that is not
// running is a successful no-op: the court may have already been stopped by
// a health-tick failure or a prior stop event.
func (s *Supervisor) handleStop(ctx context.Context, evt model.Event) {
	running, err := s.store.FindRunning()
	if err != nil {
		s.cfg.logger().Error("stop: find running records failed", "error", err)
		return
	}

	for _, r := range running {
		if r.CourtID != evt.CourtID || r.StreamKey != evt.StreamKey || r.CameraURL != evt.CameraURL {
			continue
		}
		s.stopRecord(r)
		if err := r.Transition(model.StateStopped, time.Now()); err != nil {
			s.cfg.logger().Error("stop: invalid transition", "error", err)
			return
		}
		if err := s.store.Save(r); err != nil {
			s.cfg.logger().Error("stop: save failed", "error", err)
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.streamState.WithLabelValues(evt.CourtID).Set(0)
		}
		return
	}

	s.cfg.logger().Info("stop: no running record for court/key, ignoring", "courtId", evt.CourtID, "streamKey", evt.StreamKey)
}

// handleProcessExited reacts to every transcoder exit, expected or not. An
// expected exit (ExpectedExit was set by stopRecord/shutdown/recovery before
// the kill) is just bookkeeping: the record is already STOPPED or about to
// be. An unexpected exit is a crash or a stall kill: the record is marked
// FAILED and this handler re-enters the start decision table itself, using
// the exited StartRequest's own CourtID/StreamKey/CameraURL to rebuild the
// original start intent, rather than waiting for the control plane to
// resend it.
func (s *Supervisor) handleProcessExited(ctx context.Context, req transcoder.StartRequest, exitErr error) {
	record, err := s.store.FindByID(req.RecordID)
	if err != nil {
		s.cfg.logger().Error("process exited: find record failed", "error", err, "id", req.RecordID)
		return
	}
	if record == nil {
		s.cfg.logger().Warn("process exited: no matching record, already reaped", "id", req.RecordID)
		return
	}

	if record.ExpectedExit {
		s.cfg.logger().Info("transcoder exited as expected", "id", record.ID, "courtId", record.CourtID)
		record.ExpectedExit = false
		if record.State != model.StateStopped {
			if tErr := record.Transition(model.StateStopped, time.Now()); tErr == nil {
				_ = s.store.Save(record)
			}
		} else {
			_ = s.store.Save(record)
		}
		return
	}

	s.cfg.logger().Warn("transcoder crashed", "id", record.ID, "courtId", record.CourtID, "error", exitErr)
	// A record already FAILED (startup failure in spawn, or a health tick that
	// saw the process gone first) still re-enters the decision table below.
	if record.State != model.StateFailed {
		if tErr := record.Transition(model.StateFailed, time.Now()); tErr != nil {
			s.cfg.logger().Error("process exited: invalid transition", "error", tErr)
			return
		}
		if err := s.store.Save(record); err != nil {
			s.cfg.logger().Error("process exited: save failed", "error", err)
		}
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.crashes.Inc()
		s.cfg.Metrics.streamState.WithLabelValues(record.CourtID).Set(0)
	}

	s.cfg.logger().Info("re-entering start decision table after crash", "id", record.ID, "courtId", record.CourtID)
	s.handleStart(ctx, model.Event{
		Action:    model.ActionStart,
		CameraURL: req.CameraURL,
		StreamKey: req.StreamKey,
		CourtID:   req.CourtID,
	})
}
