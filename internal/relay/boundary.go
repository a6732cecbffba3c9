package relay

import (
	"fmt"

	"github.com/GriffinCanCode/nrelay/internal/endpoint"
	"github.com/GriffinCanCode/nrelay/internal/readiness"
)

// State is the relay state of one boundary.
type State int

const (
	// StateIdle: nothing staged, upstream monitored for reads.
	StateIdle State = iota
	// StateFlushing: a chunk is staged, downstream monitored for writes.
	StateFlushing
	// StateDrained: upstream ended and everything was flushed. Terminal.
	StateDrained
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFlushing:
		return "flushing"
	case StateDrained:
		return "drained"
	default:
		return "unknown"
	}
}

// Boundary is the hop between stage Index's output and stage Index+1's
// input. The final boundary has no downstream endpoint: it feeds the
// coordinator's sink directly.
type Boundary struct {
	Index      int
	Upstream   *endpoint.Endpoint
	Downstream *endpoint.Endpoint
	Buffer     *StageBuffer

	state State
}

// NewBoundary creates a boundary in the idle state.
func NewBoundary(index int, upstream, downstream *endpoint.Endpoint, capacity int) *Boundary {
	return &Boundary{
		Index:      index,
		Upstream:   upstream,
		Downstream: downstream,
		Buffer:     NewStageBuffer(capacity),
	}
}

// State returns the boundary's current state.
func (b *Boundary) State() State { return b.state }

// Close closes both endpoints. It is safe to call more than once.
func (b *Boundary) Close() error {
	var first error
	for _, ep := range []*endpoint.Endpoint{b.Upstream, b.Downstream} {
		if ep == nil {
			continue
		}
		if err := ep.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (b *Boundary) upKey() readiness.Key {
	return readiness.Key{Boundary: b.Index, Dir: endpoint.Read}
}

func (b *Boundary) downKey() readiness.Key {
	return readiness.Key{Boundary: b.Index, Dir: endpoint.Write}
}

// validate checks the registry shape: indices match positions, only the
// last boundary lacks a downstream endpoint.
func validate(boundaries []*Boundary) error {
	if len(boundaries) == 0 {
		return fmt.Errorf("no boundaries")
	}
	last := len(boundaries) - 1
	for i, b := range boundaries {
		switch {
		case b == nil:
			return fmt.Errorf("boundary %d: nil", i)
		case b.Index != i:
			return fmt.Errorf("boundary at position %d has index %d", i, b.Index)
		case b.Upstream == nil || b.Upstream.Direction() != endpoint.Read:
			return fmt.Errorf("boundary %d: upstream must be a read endpoint", i)
		case b.Buffer == nil:
			return fmt.Errorf("boundary %d: no buffer", i)
		case i < last && (b.Downstream == nil || b.Downstream.Direction() != endpoint.Write):
			return fmt.Errorf("boundary %d: downstream must be a write endpoint", i)
		case i == last && b.Downstream != nil:
			return fmt.Errorf("boundary %d: final boundary feeds the sink, not an endpoint", i)
		}
	}
	return nil
}
