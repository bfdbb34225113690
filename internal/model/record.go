// Package model holds the durable and in-memory types shared by the
// supervisor, the record store and the transcoder driver.
package model

import (
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is a Stream Record's lifecycle state.
type State string

const (
	StatePending     State = "PENDING"
	StateRunning     State = "RUNNING"
	StateStopped     State = "STOPPED"
	StateFailed      State = "FAILED"
	StateReconciling State = "RECONCILING"
)

func (s State) String() string { return string(s) }

// allowedTransitions encodes the valid Stream Record state graph. A
// transition to the same state is never listed and is always rejected by
// CanTransition.
var allowedTransitions = map[State]map[State]bool{
	StatePending:     {StateRunning: true, StateFailed: true},
	StateRunning:     {StateStopped: true, StateFailed: true, StateReconciling: true},
	StateStopped:     {StatePending: true, StateRunning: true},
	StateFailed:      {StatePending: true, StateRunning: true},
	StateReconciling: {StateRunning: true, StateFailed: true, StateStopped: true},
}

// CanTransition reports whether moving from "from" to "to" is legal.
func CanTransition(from, to State) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Record is one supervised stream, persisted one-per-file by the record store.
type Record struct {
	ID        string    `json:"id"`
	CameraURL string    `json:"cameraUrl"`
	StreamKey string    `json:"streamKey"`
	CourtID   string    `json:"courtId"`
	State     State     `json:"state"`
	HasAudio  bool      `json:"hasAudio"`
	ProcessID int       `json:"processId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// ExpectedExit is set by a stop handler immediately before asking the
	// driver to terminate the process, and cleared once the resulting exit
	// has been observed. It lets the supervisor tell "I asked for this" apart
	// from "it died on its own" when the driver's exit callback fires for
	// every exit unconditionally.
	ExpectedExit bool `json:"expectedExit,omitempty"`
}

// NewID returns an opaque, URL-safe, sortable-by-creation identifier: a
// millisecond timestamp followed by a short suffix drawn from a random
// (version 4) UUID, rather than a hand-rolled RNG read.
func NewID(now time.Time) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate id suffix: %w", err)
	}
	suffix := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(id[:5]))
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix), nil
}

// Transition moves the record to "to", stamping UpdatedAt, or returns
// InvalidTransitionError and leaves the record unchanged.
func (r *Record) Transition(to State, now time.Time) error {
	if !CanTransition(r.State, to) {
		return &InvalidTransitionError{From: r.State, To: to}
	}
	r.State = to
	r.UpdatedAt = now
	return nil
}

// InvalidTransitionError is returned by Transition for a disallowed move.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

// Handle is the in-memory, driver-owned record of a running transcoder.
// It is never persisted directly; ProcessID is mirrored into Record.ProcessID
// by the supervisor.
type Handle struct {
	PID         int
	CommandLine []string
	StartedAt   time.Time
}
