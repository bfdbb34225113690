package supervisor

import (
	"context"
	"time"

	"github.com/edgestream/streamsup/internal/model"
	"github.com/edgestream/streamsup/internal/transcoder"
)

// handleStart inspects the running record(s) for evt.CourtID, applies the
// matching self-healing corrective action, and then proceeds to spawn unless
// the situation is a true no-op (DUPLICATE_EVENT).
func (s *Supervisor) handleStart(ctx context.Context, evt model.Event) {
	all, err := s.store.FindAll()
	if err != nil {
		s.cfg.logger().Error("start: find all records failed", "error", err)
		return
	}

	var runningForCourt []*model.Record
	for _, r := range all {
		if r.CourtID == evt.CourtID && r.State == model.StateRunning {
			runningForCourt = append(runningForCourt, r)
		}
	}

	switch len(runningForCourt) {
	case 0:
		// No running record: proceed to spawn.

	case 1:
		r := runningForCourt[0]
		switch {
		case r.ProcessID == 0:
			s.markAnomaly(r, model.AnomalyStreamRunningWithoutPID)
		case !s.driver.IsProcessRunning(r.ProcessID):
			s.markAnomaly(r, model.AnomalyDeadProcessDetected)
		case r.StreamKey == evt.StreamKey:
			s.cfg.logger().Info("duplicate start event: stream already running",
				"courtId", evt.CourtID, "streamKey", evt.StreamKey, "anomaly", model.AnomalyDuplicateEvent)
			return // DUPLICATE_EVENT: no-op, existing handle stands.
		default:
			s.cfg.logger().Warn("stream key changed for court, stopping existing stream",
				"courtId", evt.CourtID, "oldKey", r.StreamKey, "newKey", evt.StreamKey, "anomaly", model.AnomalyInvalidStreamKey)
			s.stopRecord(r)
			if err := r.Transition(model.StateStopped, time.Now()); err == nil {
				_ = s.store.Save(r)
			}
		}

	default:
		s.cfg.logger().Warn("multiple running records for court, stopping all",
			"courtId", evt.CourtID, "count", len(runningForCourt), "anomaly", model.AnomalyMultipleStreamsRunning)
		for _, r := range runningForCourt {
			s.stopRecord(r)
			if err := r.Transition(model.StateStopped, time.Now()); err == nil {
				_ = s.store.Save(r)
			}
		}
	}

	s.spawn(ctx, evt)
}

func (s *Supervisor) markAnomaly(r *model.Record, anomaly model.Anomaly) {
	s.cfg.logger().Warn("precondition anomaly", "id", r.ID, "courtId", r.CourtID, "anomaly", anomaly)
	if err := r.Transition(model.StateFailed, time.Now()); err != nil {
		s.cfg.logger().Error("anomaly: invalid transition", "error", err)
		return
	}
	if err := s.store.Save(r); err != nil {
		s.cfg.logger().Error("anomaly: save failed", "error", err)
	}
}

// stopRecord marks r's exit as expected and asks the driver to stop it; it
// leaves r's state to the caller. StopStream waits at most
// transcoder.StopOverallTimeout for the process to go, and the resulting
// cmdProcessExited command arrives later through the driver's retry binding.
func (s *Supervisor) stopRecord(r *model.Record) {
	if r.ProcessID == 0 {
		return
	}
	r.ExpectedExit = true
	if err := s.store.Save(r); err != nil {
		s.cfg.logger().Error("stopRecord: save failed", "error", err)
	}
	s.driver.StopStream(r.ProcessID)
}

// spawn allocates a new record, optionally probes audio, and asks the
// driver to start a transcoder. On success the record transitions
// PENDING→RUNNING and go-live is notified best-effort. On failure the
// record is left FAILED; the driver's retry binding (triggered by the
// child's own exit, including the startup-failure case) is what re-enters
// this decision table for the original event.
func (s *Supervisor) spawn(ctx context.Context, evt model.Event) {
	id, err := model.NewID(time.Now())
	if err != nil {
		s.cfg.logger().Error("spawn: generate id failed", "error", err)
		return
	}

	now := time.Now()
	record := &model.Record{
		ID:        id,
		CameraURL: evt.CameraURL,
		StreamKey: evt.StreamKey,
		CourtID:   evt.CourtID,
		State:     model.StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	hasAudio := s.driver.DetectAudio(ctx, evt.CameraURL)
	record.HasAudio = hasAudio

	if err := s.store.Save(record); err != nil {
		s.cfg.logger().Error("spawn: save pending record failed", "error", err)
		return
	}

	req := transcoder.StartRequest{
		RecordID:  id,
		CameraURL: evt.CameraURL,
		StreamKey: evt.StreamKey,
		HasAudio:  hasAudio,
		CourtID:   evt.CourtID,
	}

	handle, err := s.driver.StartStream(ctx, req, s)
	if err != nil {
		s.cfg.logger().Error("spawn: start stream failed", "error", err, "id", id, "courtId", evt.CourtID)
		if tErr := record.Transition(model.StateFailed, time.Now()); tErr == nil {
			_ = s.store.Save(record)
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.startFailures.Inc()
		}
		return
	}

	record.ProcessID = handle.PID
	if err := record.Transition(model.StateRunning, time.Now()); err != nil {
		s.cfg.logger().Error("spawn: invalid transition to running", "error", err)
		return
	}
	if err := s.store.Save(record); err != nil {
		s.cfg.logger().Error("spawn: save running record failed", "error", err)
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.streamState.WithLabelValues(evt.CourtID).Set(1)
	}

	go func() {
		notifyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.cp.GoLiveYouTube(notifyCtx, evt.CourtID, evt.StreamKey); err != nil {
			s.cfg.logger().Warn("go-live notification failed", "error", err, "courtId", evt.CourtID)
		}
	}()
}
