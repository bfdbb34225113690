package model

import "errors"

// Kind is the error taxonomy from the error-handling design: callers branch
// on Kind, not on error string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindInputInvalid
	KindDuplicateIntent
	KindPreconditionAnomaly
	KindTranscoderStartupFailure
	KindTranscoderStall
	KindTransportFailure
	KindPersistenceFailure
	KindMissingAsset
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindInputInvalid:
		return "InputInvalid"
	case KindDuplicateIntent:
		return "DuplicateIntent"
	case KindPreconditionAnomaly:
		return "PreconditionAnomaly"
	case KindTranscoderStartupFailure:
		return "TranscoderStartupFailure"
	case KindTranscoderStall:
		return "TranscoderStall"
	case KindTransportFailure:
		return "TransportFailure"
	case KindPersistenceFailure:
		return "PersistenceFailure"
	case KindMissingAsset:
		return "MissingAsset"
	case KindFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Anomaly names one of the precondition anomalies in the Start handler's
// decision table.
type Anomaly string

const (
	AnomalyStreamRunningWithoutPID Anomaly = "STREAM_RUNNING_WITHOUT_PID"
	AnomalyDeadProcessDetected     Anomaly = "DEAD_PROCESS_DETECTED"
	AnomalyDuplicateEvent          Anomaly = "DUPLICATE_EVENT"
	AnomalyInvalidStreamKey        Anomaly = "INVALID_YOUTUBE_STREAM_KEY"
	AnomalyMultipleStreamsRunning  Anomaly = "MULTIPLE_STREAMS_RUNNING"
)

// Error wraps an underlying cause with a taxonomy Kind.
type Error struct {
	Kind    Kind
	Anomaly Anomaly // set only for KindPreconditionAnomaly
	Msg     string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func NewAnomaly(a Anomaly, msg string) *Error {
	return &Error{Kind: KindPreconditionAnomaly, Anomaly: a, Msg: msg}
}

// ErrStartupTimeout is reported by the transcoder driver when the 10-second
// startup deadline elapses before a success or failure marker is observed.
var ErrStartupTimeout = errors.New("transcoder startup timed out")

// KindOf extracts the taxonomy Kind from err, or KindUnknown if err was not
// produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
