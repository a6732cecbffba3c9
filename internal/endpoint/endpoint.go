package endpoint

import (
	"errors"
	"fmt"
	"os"

	"github.com/GriffinCanCode/nrelay/internal/shared/id"
	"golang.org/x/sys/unix"
)

var (
	// ErrWouldBlock is returned by Read and Write on a non-blocking
	// endpoint that cannot make progress right now. It is never an
	// end-of-stream signal.
	ErrWouldBlock = errors.New("endpoint: operation would block")
	// ErrClosed is returned when an endpoint is used after Close or Release.
	ErrClosed = errors.New("endpoint: use of closed endpoint")
	// ErrDirection is returned when reading a write endpoint or vice versa.
	ErrDirection = errors.New("endpoint: wrong direction")
)

// Direction tells which end of a pipe an endpoint owns.
type Direction int

const (
	Read Direction = iota
	Write
)

// String returns the string representation of the direction
func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "unknown"
	}
}

// Endpoint is an exclusively owned pipe descriptor. It bypasses the Go
// runtime poller so that readiness can be multiplexed explicitly.
type Endpoint struct {
	id     id.EndpointID
	name   string
	fd     int
	dir    Direction
	closed bool
}

// New wraps fd. The endpoint takes ownership of the descriptor.
func New(fd int, dir Direction, name string) *Endpoint {
	return &Endpoint{
		id:   id.NewEndpointID(),
		name: name,
		fd:   fd,
		dir:  dir,
	}
}

// Pipe creates a close-on-exec pipe and returns its two ends.
func Pipe(name string) (r, w *Endpoint, err error) {
	var fds [2]int
	if err := pipe(fds[:]); err != nil {
		return nil, nil, fmt.Errorf("pipe %s: %w", name, err)
	}
	return New(fds[0], Read, name+".r"), New(fds[1], Write, name+".w"), nil
}

func (e *Endpoint) ID() id.EndpointID    { return e.id }
func (e *Endpoint) Name() string         { return e.name }
func (e *Endpoint) Fd() int              { return e.fd }
func (e *Endpoint) Direction() Direction { return e.dir }
func (e *Endpoint) Closed() bool         { return e.closed }

func (e *Endpoint) String() string {
	return fmt.Sprintf("%s(%s fd=%d %s)", e.name, e.dir, e.fd, e.id)
}

// SetNonblock puts the descriptor in non-blocking mode.
func (e *Endpoint) SetNonblock() error {
	if e.closed {
		return ErrClosed
	}
	if err := unix.SetNonblock(e.fd, true); err != nil {
		return fmt.Errorf("set non-blocking %s: %w", e, err)
	}
	return nil
}

// Read performs a single read into p. A return of (0, nil) is end-of-stream.
// A non-blocking endpoint with nothing to read returns (0, ErrWouldBlock).
func (e *Endpoint) Read(p []byte) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}
	if e.dir != Read {
		return 0, ErrDirection
	}
	for {
		n, err := unix.Read(e.fd, p)
		switch {
		case err == nil:
			return n, nil
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return 0, ErrWouldBlock
		default:
			return 0, err
		}
	}
}

// Write performs a single write of p and may transfer fewer bytes than
// len(p). A non-blocking endpoint with no room returns (0, ErrWouldBlock).
func (e *Endpoint) Write(p []byte) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}
	if e.dir != Write {
		return 0, ErrDirection
	}
	for {
		n, err := unix.Write(e.fd, p)
		switch {
		case err == nil:
			return n, nil
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return 0, ErrWouldBlock
		default:
			return 0, err
		}
	}
}

// Close closes the descriptor. Closing twice is a no-op.
func (e *Endpoint) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if err := unix.Close(e.fd); err != nil {
		return fmt.Errorf("close %s: %w", e, err)
	}
	return nil
}

// Release transfers ownership of the descriptor to an *os.File, for
// handing a blocking endpoint to a worker. The endpoint is unusable
// afterwards.
func (e *Endpoint) Release() (*os.File, error) {
	if e.closed {
		return nil, ErrClosed
	}
	e.closed = true
	return os.NewFile(uintptr(e.fd), e.name), nil
}
