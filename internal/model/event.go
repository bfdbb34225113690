package model

import "time"

// Action identifies what an inbound control-plane event asks for.
type Action string

const (
	ActionStart         Action = "start"
	ActionStop          Action = "stop"
	ActionVersionUpdate Action = "version-update"
)

// Event is one decoded SSE payload. Unknown Action values are tolerated by
// the control-plane client (logged and dropped before they ever reach the
// supervisor).
type Event struct {
	Action             Action    `json:"action"`
	CameraURL          string    `json:"cameraUrl,omitempty"`
	StreamKey          string    `json:"streamKey,omitempty"`
	CourtID            string    `json:"courtId,omitempty"`
	Version            string    `json:"version,omitempty"`
	Timestamp          time.Time `json:"timestamp,omitempty"`
	ReconciliationMode bool      `json:"reconciliation_mode,omitempty"`

	// ServerSequence, when present, lets the dedup fingerprint distinguish
	// two legitimate same-bucket events from an actual replay. Absent for
	// control planes that don't send one.
	ServerSequence string `json:"serverSequence,omitempty"`
}

// Valid reports whether the event carries the fields its Action requires.
func (e Event) Valid() bool {
	switch e.Action {
	case ActionStart, ActionStop:
		return e.Action != "" && e.CameraURL != "" && e.StreamKey != "" && e.CourtID != ""
	case ActionVersionUpdate:
		return e.Version != ""
	default:
		return false
	}
}

// Fingerprint is the deduplication key: a weak {eventType, streamId,
// coarseTimestamp} fingerprint would let two legitimate consecutive events
// landing in the same coarse time bucket collide, so this binds to the
// actual intent instead. ServerSequence, when the control plane supplies
// one, makes the fingerprint exact; otherwise it is omitted from the key.
func (e Event) Fingerprint() string {
	seq := e.ServerSequence
	if seq == "" {
		seq = "-"
	}
	return string(e.Action) + "|" + e.CourtID + "|" + e.StreamKey + "|" + e.CameraURL + "|" + seq
}
