package supervisor

import (
	"github.com/edgestream/streamsup/internal/health"
)

// Streams implements health.StatusProvider, reporting the live state of
// every Stream Record so the /healthz endpoint reflects the same state the
// Supervisor Core is acting on, not a separate snapshot.
func (s *Supervisor) Streams() []health.StreamStatus {
	records, err := s.store.FindAll()
	if err != nil {
		s.cfg.logger().Error("health status: find all records failed", "error", err)
		return nil
	}

	streams := make([]health.StreamStatus, 0, len(records))
	for _, r := range records {
		streams = append(streams, health.StreamStatus{
			CourtID:   r.CourtID,
			RecordID:  r.ID,
			State:     string(r.State),
			ProcessID: r.ProcessID,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return streams
}
