package relay

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nrelay/internal/endpoint"
	"github.com/GriffinCanCode/nrelay/internal/logging"
	"github.com/GriffinCanCode/nrelay/internal/readiness"
)

// DefaultTimeout bounds each readiness wait.
const DefaultTimeout = 60 * time.Second

// Options configures a Coordinator.
type Options struct {
	// Sink receives the final boundary's bytes. Each chunk must be
	// consumed by a single Write call.
	Sink io.Writer
	// Timeout bounds each readiness wait. Zero means DefaultTimeout.
	Timeout  time.Duration
	Logger   *logging.Logger
	Observer Observer
}

// Coordinator relays bytes across every boundary of a chain from a single
// goroutine. It only blocks inside the bounded readiness wait; every read
// and write is issued on a non-blocking endpoint reported ready.
type Coordinator struct {
	boundaries []*Boundary
	poller     *readiness.Poller
	sink       io.Writer
	timeout    time.Duration
	log        *logging.Logger
	obs        Observer

	emitted int64
	waits   int64
}

// New creates a coordinator over an ordered boundary registry. The
// coordinator takes ownership of every boundary endpoint.
func New(boundaries []*Boundary, opts Options) (*Coordinator, error) {
	if err := validate(boundaries); err != nil {
		return nil, ResourceError("coordinator setup", err)
	}
	if opts.Sink == nil {
		return nil, ResourceError("coordinator setup", errors.New("no output sink"))
	}
	if opts.Timeout < 0 {
		return nil, ResourceError("coordinator setup", fmt.Errorf("negative timeout %s", opts.Timeout))
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	return &Coordinator{
		boundaries: boundaries,
		poller:     readiness.New(),
		sink:       opts.Sink,
		timeout:    opts.Timeout,
		log:        opts.Logger.Named("relay"),
		obs:        opts.Observer,
	}, nil
}

// Run relays until the final boundary observes end-of-stream or a fatal
// error occurs. Every endpoint is closed when Run returns.
func (c *Coordinator) Run() error {
	defer c.closeAll()

	for _, b := range c.boundaries {
		c.poller.Add(b.upKey(), b.Upstream.Fd())
	}
	c.log.Debug("relay started",
		zap.Int("boundaries", len(c.boundaries)),
		zap.Duration("timeout", c.timeout),
	)

	for {
		start := time.Now()
		events, err := c.poller.Wait(c.timeout)
		c.waits++
		c.obs.Waited(time.Since(start), len(events))
		if err != nil {
			return IOError(-1, "wait", err)
		}
		if len(events) == 0 {
			return LivenessError(c.timeout, c.poller.Len())
		}

		for _, ev := range events {
			// interest may have been dropped by an earlier event of this batch
			if !c.poller.Watching(ev.Key) {
				continue
			}
			if ev.Err != nil {
				return IOError(ev.Key.Boundary, "wait", ev.Err)
			}

			b := c.boundaries[ev.Key.Boundary]
			switch ev.Key.Dir {
			case endpoint.Read:
				done, err := c.onReadable(b)
				if err != nil {
					return err
				}
				if done {
					return c.finish()
				}
			case endpoint.Write:
				if err := c.onWritable(b); err != nil {
					return err
				}
			}
		}
	}
}

// onReadable handles one readiness notification for b's upstream and
// reports whether the chain has finished.
func (c *Coordinator) onReadable(b *Boundary) (bool, error) {
	buf := b.Buffer
	if buf.NeedsFlush() {
		// stale: resumes on the transition back to idle
		c.poller.Remove(b.upKey())
		c.obs.Stale(b.Index, endpoint.Read)
		return false, nil
	}

	n, err := b.Upstream.Read(buf.Space())
	if errors.Is(err, endpoint.ErrWouldBlock) {
		return false, nil
	}
	if err != nil {
		return false, IOError(b.Index, "read upstream", err)
	}

	if c.isFinal(b) {
		return c.forward(b, n)
	}
	if n == 0 {
		return false, c.endOfStream(b)
	}

	buf.Stage(n)
	c.obs.Staged(b.Index, n)
	c.poller.Remove(b.upKey())
	c.poller.Add(b.downKey(), b.Downstream.Fd())
	c.transition(b, StateFlushing)
	return false, nil
}

// forward passes a chunk read by the final boundary straight to the sink.
// End-of-stream on the final boundary ends the run.
func (c *Coordinator) forward(b *Boundary, n int) (bool, error) {
	buf := b.Buffer
	if n == 0 {
		buf.CloseUpstream()
		c.poller.Remove(b.upKey())
		if err := b.Upstream.Close(); err != nil {
			return false, IOError(b.Index, "close upstream", err)
		}
		c.transition(b, StateDrained)
		return true, nil
	}

	buf.Stage(n)
	c.obs.Staged(b.Index, n)

	written, err := c.sink.Write(buf.Pending())
	if err != nil {
		return false, IOError(b.Index, "write sink", err)
	}
	if written != n {
		return false, IOError(b.Index, "write sink", fmt.Errorf("wrote %d of %d bytes: %w", written, n, io.ErrShortWrite))
	}

	buf.Advance(n)
	c.obs.Flushed(b.Index, n, false)
	c.emitted += int64(n)
	c.obs.Emitted(n)
	return false, nil
}

// endOfStream handles an upstream that reported end-of-stream while idle.
func (c *Coordinator) endOfStream(b *Boundary) error {
	b.Buffer.CloseUpstream()
	c.poller.Remove(b.upKey())
	if err := b.Upstream.Close(); err != nil {
		return IOError(b.Index, "close upstream", err)
	}
	if b.Buffer.NeedsFlush() {
		return nil
	}
	return c.closeDownstream(b)
}

func (c *Coordinator) onWritable(b *Boundary) error {
	buf := b.Buffer
	if !buf.NeedsFlush() {
		// spurious
		c.poller.Remove(b.downKey())
		c.obs.Stale(b.Index, endpoint.Write)
		return nil
	}

	pending := buf.Unflushed()
	n, err := b.Downstream.Write(buf.Pending())
	if errors.Is(err, endpoint.ErrWouldBlock) {
		return nil
	}
	if err != nil {
		return IOError(b.Index, "write downstream", err)
	}

	done := buf.Advance(n)
	c.obs.Flushed(b.Index, n, n < pending)
	if !done {
		return nil
	}

	c.poller.Remove(b.downKey())
	if buf.UpstreamClosed() {
		return c.closeDownstream(b)
	}
	c.poller.Add(b.upKey(), b.Upstream.Fd())
	c.transition(b, StateIdle)
	return nil
}

func (c *Coordinator) closeDownstream(b *Boundary) error {
	c.poller.Remove(b.downKey())
	if err := b.Downstream.Close(); err != nil {
		return IOError(b.Index, "close downstream", err)
	}
	c.transition(b, StateDrained)
	return nil
}

// finish runs once the final stage has ended its stream. Any earlier
// boundary not yet drained means a stage ended early and output would be
// truncated.
func (c *Coordinator) finish() error {
	for _, b := range c.boundaries[:len(c.boundaries)-1] {
		if b.state != StateDrained {
			return IOError(b.Index, "final end-of-stream",
				fmt.Errorf("boundary still %s with %d bytes pending: %w", b.state, b.Buffer.Unflushed(), ErrPrematureEOF))
		}
	}
	c.log.Info("relay finished",
		zap.Int("boundaries", len(c.boundaries)),
		zap.Int64("bytes", c.emitted),
		zap.Int64("waits", c.waits),
	)
	return nil
}

func (c *Coordinator) transition(b *Boundary, to State) {
	if b.state == to {
		return
	}
	c.log.Debug("boundary transition",
		zap.Int("boundary", b.Index),
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
	)
	b.state = to
	c.obs.StateChanged(b.Index, to)
}

func (c *Coordinator) isFinal(b *Boundary) bool {
	return b.Index == len(c.boundaries)-1
}

func (c *Coordinator) closeAll() {
	for _, b := range c.boundaries {
		c.poller.Remove(b.upKey())
		c.poller.Remove(b.downKey())
		if err := b.Close(); err != nil {
			c.log.Warn("close boundary", zap.Int("boundary", b.Index), zap.Error(err))
		}
	}
}
