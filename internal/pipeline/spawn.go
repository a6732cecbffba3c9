package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/GriffinCanCode/nrelay/internal/logging"
	"github.com/GriffinCanCode/nrelay/internal/shared/id"
	"github.com/GriffinCanCode/nrelay/internal/worker"
)

// StageSpec is everything a worker is given: its place in the chain, its
// buffer capacity and its own two endpoints. Spawn takes ownership of both
// files.
type StageSpec struct {
	Index      int
	Capacity   int
	Upstream   *os.File
	Downstream *os.File
}

// Handle is the coordinator side of a spawned worker.
type Handle interface {
	ID() id.WorkerID
	Index() int
	// Wait blocks until the worker has ended and returns its outcome.
	Wait() error
	// Kill aborts the worker if that is possible.
	Kill() error
}

// Spawner starts worker stages.
type Spawner interface {
	Spawn(spec StageSpec) (Handle, error)
}

// ============================================================================
// Process spawner
// ============================================================================

// ProcessSpawner runs each stage as a child process by re-executing a
// binary that calls worker.Main when worker.IsChild reports true. The
// child inherits exactly its two endpoints, as descriptors 3 and 4.
type ProcessSpawner struct {
	// Path is the binary to execute. Empty means the running executable.
	Path string
	// Env is the base environment. Nil means os.Environ().
	Env []string
	// Stderr receives the children's diagnostics. Nil discards them. A
	// writer that is not an *os.File is fed by one copy goroutine per
	// child, so it is wrapped once with logging.SyncWriter; callers that
	// also write to it should share the same wrapper.
	Stderr io.Writer
	RunID  id.RunID

	stderrOnce sync.Once
	stderr     io.Writer
}

// Spawn starts one worker process.
func (p *ProcessSpawner) Spawn(spec StageSpec) (Handle, error) {
	// the child has its own copies once started; ours must go so that
	// end-of-stream can propagate
	defer spec.Upstream.Close()
	defer spec.Downstream.Close()

	path := p.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		path = exe
	}
	env := p.Env
	if env == nil {
		env = os.Environ()
	}

	cmd := exec.Command(path)
	cmd.Env = append(append([]string{}, env...), worker.Environ(spec.Index, spec.Capacity, p.RunID.String())...)
	cmd.ExtraFiles = []*os.File{spec.Upstream, spec.Downstream}
	cmd.Stderr = p.childStderr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start stage %d: %w", spec.Index, err)
	}
	return &processHandle{id: id.NewWorkerID(), index: spec.Index, cmd: cmd}, nil
}

func (p *ProcessSpawner) childStderr() io.Writer {
	p.stderrOnce.Do(func() {
		if p.Stderr != nil {
			p.stderr = logging.SyncWriter(p.Stderr)
		}
	})
	return p.stderr
}

type processHandle struct {
	id    id.WorkerID
	index int
	cmd   *exec.Cmd
}

func (h *processHandle) ID() id.WorkerID { return h.id }
func (h *processHandle) Index() int      { return h.index }
func (h *processHandle) Wait() error     { return h.cmd.Wait() }

func (h *processHandle) Kill() error {
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// ============================================================================
// Inline spawner
// ============================================================================

// InlineSpawner runs each stage on its own goroutine within the current
// process. The stage still only holds its own two endpoints.
type InlineSpawner struct {
	Logger *logging.Logger
}

// Spawn starts one worker goroutine.
func (s *InlineSpawner) Spawn(spec StageSpec) (Handle, error) {
	h := &inlineHandle{
		id:    id.NewWorkerID(),
		index: spec.Index,
		done:  make(chan struct{}),
	}
	stage := &worker.Stage{
		Index:      spec.Index,
		Capacity:   spec.Capacity,
		Upstream:   spec.Upstream,
		Downstream: spec.Downstream,
		Logger:     s.Logger,
	}
	go func() {
		defer close(h.done)
		_, h.err = stage.Run()
	}()
	return h, nil
}

type inlineHandle struct {
	id    id.WorkerID
	index int
	done  chan struct{}
	err   error
}

func (h *inlineHandle) ID() id.WorkerID { return h.id }
func (h *inlineHandle) Index() int      { return h.index }

func (h *inlineHandle) Wait() error {
	<-h.done
	return h.err
}

// Kill is a no-op: the goroutine ends once the coordinator has closed its
// side of the stage's pipes.
func (h *inlineHandle) Kill() error { return nil }
