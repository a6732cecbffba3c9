package relay

import (
	"time"

	"github.com/GriffinCanCode/nrelay/internal/endpoint"
)

// Observer receives relay events, typically to feed metrics. Calls are made
// synchronously from the coordinator loop and must not block.
type Observer interface {
	Staged(boundary, n int)
	Flushed(boundary, n int, partial bool)
	Emitted(n int)
	StateChanged(boundary int, state State)
	Stale(boundary int, dir endpoint.Direction)
	Waited(d time.Duration, ready int)
}

type nopObserver struct{}

func (nopObserver) Staged(int, int)               {}
func (nopObserver) Flushed(int, int, bool)        {}
func (nopObserver) Emitted(int)                   {}
func (nopObserver) StateChanged(int, State)       {}
func (nopObserver) Stale(int, endpoint.Direction) {}
func (nopObserver) Waited(time.Duration, int)     {}
