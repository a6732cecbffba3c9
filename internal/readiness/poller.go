// Package readiness multiplexes readiness over a changing set of pipe
// endpoints.
//
// Interest is registered per (boundary, direction) key and may be added or
// removed between waits. Wait blocks for at most the given duration and
// reports every ready key in boundary order.
package readiness

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/GriffinCanCode/nrelay/internal/endpoint"
	"golang.org/x/sys/unix"
)

// ErrInvalidDescriptor is reported for a registered descriptor that the
// kernel no longer recognizes.
var ErrInvalidDescriptor = errors.New("readiness: invalid descriptor")

// Key identifies one monitored endpoint.
type Key struct {
	Boundary int
	Dir      endpoint.Direction
}

func (k Key) String() string {
	return fmt.Sprintf("boundary[%d].%s", k.Boundary, k.Dir)
}

func (k Key) less(o Key) bool {
	if k.Boundary != o.Boundary {
		return k.Boundary < o.Boundary
	}
	return k.Dir < o.Dir
}

// Event reports that a monitored endpoint can make progress. For read
// interest, a hung-up writer counts as readable (the read returns
// end-of-stream). For write interest, a vanished reader counts as writable
// (the write reports the error).
type Event struct {
	Key Key
	Err error
}

// Poller tracks interest and waits on it with poll(2).
type Poller struct {
	interest map[Key]int

	// scratch, reused between waits
	keys []Key
	fds  []unix.PollFd
}

// New creates an empty poller.
func New() *Poller {
	return &Poller{interest: make(map[Key]int)}
}

// Add registers interest in fd under k. Re-adding a key replaces its fd.
func (p *Poller) Add(k Key, fd int) {
	p.interest[k] = fd
}

// Remove drops interest in k. Removing an unknown key is a no-op.
func (p *Poller) Remove(k Key) {
	delete(p.interest, k)
}

// Watching reports whether k is currently registered.
func (p *Poller) Watching(k Key) bool {
	_, ok := p.interest[k]
	return ok
}

// Len returns the number of registered keys.
func (p *Poller) Len() int {
	return len(p.interest)
}

// Wait blocks until at least one registered endpoint is ready or timeout
// elapses. An empty, nil-error result means the timeout expired; it is
// never returned before the full timeout has passed.
func (p *Poller) Wait(timeout time.Duration) ([]Event, error) {
	p.prepare()

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		n, err := unix.Poll(p.fds, toMillis(remaining))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("poll %d endpoints: %w", len(p.fds), err)
		}
		if n == 0 {
			// poll may wake marginally early; go round until the deadline
			continue
		}
		return p.collect(n), nil
	}
}

func (p *Poller) prepare() {
	p.keys = p.keys[:0]
	for k := range p.interest {
		p.keys = append(p.keys, k)
	}
	sort.Slice(p.keys, func(i, j int) bool { return p.keys[i].less(p.keys[j]) })

	p.fds = p.fds[:0]
	for _, k := range p.keys {
		events := int16(unix.POLLIN)
		if k.Dir == endpoint.Write {
			events = unix.POLLOUT
		}
		p.fds = append(p.fds, unix.PollFd{Fd: int32(p.interest[k]), Events: events})
	}
}

func (p *Poller) collect(n int) []Event {
	ready := make([]Event, 0, n)
	for i, pfd := range p.fds {
		if pfd.Revents == 0 {
			continue
		}
		ev := Event{Key: p.keys[i]}
		if pfd.Revents&unix.POLLNVAL != 0 {
			ev.Err = fmt.Errorf("%s fd=%d: %w", ev.Key, pfd.Fd, ErrInvalidDescriptor)
		}
		ready = append(ready, ev)
	}
	return ready
}

// toMillis rounds up so that a wait never ends before its bound.
func toMillis(d time.Duration) int {
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms < 1 {
		ms = 1
	}
	return int(ms)
}
