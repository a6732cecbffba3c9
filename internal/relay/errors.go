package relay

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Every relay failure is fatal; the kind only tells the
// caller what went wrong and which exit status to use.
var (
	ErrUsage    = errors.New("usage error")
	ErrResource = errors.New("resource error")
	ErrIO       = errors.New("io error")
	ErrLiveness = errors.New("liveness timeout")
)

// ErrPrematureEOF is wrapped by an IO error when the final stage signals
// end-of-stream while an earlier boundary still had data in flight.
var ErrPrematureEOF = errors.New("premature end-of-stream")

// Error describes a fatal relay failure.
type Error struct {
	Kind     error
	Op       string
	Boundary int // -1 when the failure is not tied to a boundary
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Boundary >= 0 {
		msg += fmt.Sprintf(": boundary %d", e.Boundary)
	}
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's kind, so errors.Is(err, ErrIO) works.
func (e *Error) Is(target error) bool { return target == e.Kind }

// UsageError reports malformed invocation arguments.
func UsageError(format string, args ...any) error {
	return &Error{Kind: ErrUsage, Boundary: -1, Err: fmt.Errorf(format, args...)}
}

// ResourceError reports a setup failure (pipe, spawn, file, allocation).
func ResourceError(op string, err error) error {
	return &Error{Kind: ErrResource, Op: op, Boundary: -1, Err: err}
}

// IOError reports a read, write, close or wait failure during relay.
func IOError(boundary int, op string, err error) error {
	return &Error{Kind: ErrIO, Op: op, Boundary: boundary, Err: err}
}

// LivenessError reports a readiness wait that expired with nothing ready.
func LivenessError(timeout time.Duration, watched int) error {
	return &Error{
		Kind:     ErrLiveness,
		Boundary: -1,
		Err:      fmt.Errorf("no endpoint ready within %s (%d monitored)", timeout, watched),
	}
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage):
		return 2
	default:
		return 1
	}
}
