package supervisor

import (
	"github.com/edgestream/streamsup/internal/model"
	"github.com/edgestream/streamsup/internal/transcoder"
)

// commandKind tags the typed commands dispatched to the supervisor's single
// serialized handler goroutine: EventReceived (carrying start, stop and
// version-update events), Tick and ProcessExited are the only ways the
// supervisor's state is ever mutated, and they are all processed one at a
// time off of one channel. dispatch does not handle cmdShutdown; Run calls
// shutdown directly.
type commandKind int

const (
	cmdEventReceived commandKind = iota
	cmdTick
	cmdProcessExited
	cmdShutdown
)

// command is the single message type flowing through the supervisor's
// command queue. Exactly one of its payload fields is meaningful, selected
// by kind.
type command struct {
	kind commandKind

	event model.Event // cmdEventReceived

	exitRequest transcoder.StartRequest // cmdProcessExited
	exitErr     error                   // cmdProcessExited

	done chan struct{} // cmdShutdown: closed once shutdown completes
}
