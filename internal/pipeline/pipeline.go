// Package pipeline builds a relay chain: it creates the pipes, spawns the
// worker stages and hands the coordinator an ordered registry of
// boundaries.
//
// Stage 0 reads the input file directly. Stage i writes a pipe whose read
// end is boundary i's upstream; boundary i's downstream is the write end of
// a pipe that stage i+1 reads. Stage N-1's output is the final boundary's
// upstream. Every pipe is close-on-exec and every worker is handed only its
// own two endpoints, so no stray reader or writer can keep a pipe from
// signalling end-of-stream. Coordinator-facing endpoints are non-blocking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/nrelay/internal/endpoint"
	"github.com/GriffinCanCode/nrelay/internal/logging"
	"github.com/GriffinCanCode/nrelay/internal/relay"
	"github.com/GriffinCanCode/nrelay/internal/shared/id"
)

// Defaults of the buffer sizing policy.
const (
	DefaultMaxBuffer    = 128*1024 - 1
	DefaultMinBuffer    = 64
	DefaultSizingBase   = 3
	DefaultSizingOffset = 4
)

// WorkerObserver is told about worker lifecycle events.
type WorkerObserver interface {
	RecordWorkerSpawn()
	RecordWorkerExit(err error)
}

// Options configures Build.
type Options struct {
	Stages    int
	InputPath string
	Spawner   Spawner
	// Sizing maps a boundary index to its capacity. Nil means Geometric
	// with the default base and offset.
	Sizing    relay.Sizing
	MinBuffer int
	MaxBuffer int
	Logger    *logging.Logger
	Observer  WorkerObserver
}

// Pipeline is a built chain, ready to be relayed.
type Pipeline struct {
	Boundaries []*relay.Boundary
	Capacities []int

	handles []Handle
	log     *logging.Logger
	obs     WorkerObserver
}

// WorkerExit is the outcome of one reaped worker.
type WorkerExit struct {
	Index int
	ID    id.WorkerID
	Err   error
}

// Build creates the chain. On failure everything created so far is
// released and a resource error is returned.
func Build(opts Options) (_ *Pipeline, err error) {
	if opts.Stages < 1 {
		return nil, relay.ResourceError("build", fmt.Errorf("stage count %d: must be at least 1", opts.Stages))
	}
	if opts.Spawner == nil {
		return nil, relay.ResourceError("build", errors.New("no spawner"))
	}
	if opts.MinBuffer == 0 {
		opts.MinBuffer = DefaultMinBuffer
	}
	if opts.MaxBuffer == 0 {
		opts.MaxBuffer = DefaultMaxBuffer
	}
	if opts.Sizing == nil {
		opts.Sizing = relay.Geometric(opts.Stages, DefaultSizingBase, DefaultSizingOffset, opts.MaxBuffer)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	caps, err := relay.Capacities(opts.Sizing, opts.Stages, opts.MinBuffer, opts.MaxBuffer)
	if err != nil {
		return nil, relay.ResourceError("size buffers", err)
	}

	p := &Pipeline{
		Capacities: caps,
		log:        opts.Logger.Named("pipeline"),
		obs:        opts.Observer,
	}
	b := &builder{}
	defer func() {
		if err != nil {
			b.release()
			p.Abort()
			p.Reap(context.Background())
		}
	}()

	input, err := os.Open(opts.InputPath)
	if err != nil {
		return nil, relay.ResourceError("open input", err)
	}
	b.files = append(b.files, input)

	n := opts.Stages
	specs := make([]StageSpec, n)
	ups := make([]*endpoint.Endpoint, n)
	downs := make([]*endpoint.Endpoint, n)
	specs[0].Upstream = input

	for i := 0; i < n; i++ {
		specs[i].Index = i
		specs[i].Capacity = caps[i]

		r, w, err := b.pipe(fmt.Sprintf("stage%d.out", i))
		if err != nil {
			return nil, err
		}
		ups[i] = r
		if specs[i].Downstream, err = b.hand(w); err != nil {
			return nil, err
		}

		if i > 0 {
			r, w, err := b.pipe(fmt.Sprintf("stage%d.in", i))
			if err != nil {
				return nil, err
			}
			downs[i-1] = w
			if specs[i].Upstream, err = b.hand(r); err != nil {
				return nil, err
			}
		}
	}

	for _, ep := range append(append([]*endpoint.Endpoint{}, ups...), downs[:n-1]...) {
		if err := ep.SetNonblock(); err != nil {
			return nil, relay.ResourceError("set non-blocking", err)
		}
	}

	for i, spec := range specs {
		// ownership of both files passes to the spawner
		b.forget(spec.Upstream, spec.Downstream)
		h, err := opts.Spawner.Spawn(spec)
		if err != nil {
			return nil, relay.ResourceError(fmt.Sprintf("spawn stage %d", i), err)
		}
		p.handles = append(p.handles, h)
		if p.obs != nil {
			p.obs.RecordWorkerSpawn()
		}
		p.log.Debug("stage spawned",
			zap.Int("stage", i),
			zap.Stringer("worker", h.ID()),
			zap.Int("capacity", caps[i]),
		)
	}

	p.Boundaries = make([]*relay.Boundary, n)
	for i := range p.Boundaries {
		p.Boundaries[i] = relay.NewBoundary(i, ups[i], downs[i], caps[i])
	}

	p.log.Debug("pipeline built", zap.Int("stages", n), zap.Ints("capacities", caps))
	return p, nil
}

// Abort kills every worker that can be killed. Use it after a failed run,
// before Reap.
func (p *Pipeline) Abort() {
	for _, h := range p.handles {
		if err := h.Kill(); err != nil {
			p.log.Warn("kill worker", zap.Int("stage", h.Index()), zap.Error(err))
		}
	}
}

// Reap waits for every worker concurrently until ctx is done. Worker
// outcomes are reported and logged; they do not decide the run's result.
func (p *Pipeline) Reap(ctx context.Context) []WorkerExit {
	exits := make([]WorkerExit, len(p.handles))
	var g errgroup.Group

	for i, h := range p.handles {
		exits[i] = WorkerExit{Index: h.Index(), ID: h.ID()}
		g.Go(func() error {
			done := make(chan error, 1)
			go func() { done <- h.Wait() }()

			select {
			case err := <-done:
				exits[i].Err = err
			case <-ctx.Done():
				exits[i].Err = ctx.Err()
			}
			return nil
		})
	}
	g.Wait()

	for _, exit := range exits {
		if p.obs != nil {
			p.obs.RecordWorkerExit(exit.Err)
		}
		if exit.Err != nil {
			p.log.Warn("worker ended abnormally",
				zap.Int("stage", exit.Index),
				zap.Stringer("worker", exit.ID),
				zap.Error(exit.Err),
			)
		}
	}
	return exits
}

// ReapTimeout is Reap bounded by a duration.
func (p *Pipeline) ReapTimeout(d time.Duration) []WorkerExit {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return p.Reap(ctx)
}

// builder tracks what Build has created so a failure can release it.
type builder struct {
	endpoints []*endpoint.Endpoint
	files     []*os.File
}

func (b *builder) pipe(name string) (*endpoint.Endpoint, *endpoint.Endpoint, error) {
	r, w, err := endpoint.Pipe(name)
	if err != nil {
		return nil, nil, relay.ResourceError("create pipe", err)
	}
	b.endpoints = append(b.endpoints, r, w)
	return r, w, nil
}

// hand converts a worker-facing endpoint into a file for the spawner.
func (b *builder) hand(ep *endpoint.Endpoint) (*os.File, error) {
	f, err := ep.Release()
	if err != nil {
		return nil, relay.ResourceError("hand over "+ep.Name(), err)
	}
	b.files = append(b.files, f)
	return f, nil
}

func (b *builder) forget(files ...*os.File) {
	for _, f := range files {
		for i, owned := range b.files {
			if owned == f {
				b.files = append(b.files[:i], b.files[i+1:]...)
				break
			}
		}
	}
}

func (b *builder) release() {
	for _, ep := range b.endpoints {
		ep.Close()
	}
	for _, f := range b.files {
		f.Close()
	}
}
