// Package report renders the summary of a finished relay run as JSON.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/nrelay/internal/pipeline"
	"github.com/GriffinCanCode/nrelay/internal/relay"
	"github.com/GriffinCanCode/nrelay/internal/shared/id"
)

// Report is the run summary.
type Report struct {
	RunID    id.RunID      `json:"run_id"`
	Stages   int           `json:"stages"`
	Input    string        `json:"input"`
	Spawn    string        `json:"spawn"`
	ExitCode int           `json:"exit_code"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Relay    relay.Stats   `json:"relay"`
	Workers  []Worker      `json:"workers"`
}

// Worker is the outcome of one stage.
type Worker struct {
	Stage int    `json:"stage"`
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// New assembles a report. runErr is the relay outcome; exits may be nil if
// workers were never spawned.
func New(runID id.RunID, stages int, input, spawn string, runErr error, elapsed time.Duration, stats relay.Stats, exits []pipeline.WorkerExit) Report {
	r := Report{
		RunID:    runID,
		Stages:   stages,
		Input:    input,
		Spawn:    spawn,
		ExitCode: relay.ExitCode(runErr),
		Duration: elapsed,
		Relay:    stats,
		Workers:  make([]Worker, 0, len(exits)),
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	for _, exit := range exits {
		w := Worker{Stage: exit.Index, ID: exit.ID.String()}
		if exit.Err != nil {
			w.Error = exit.Err.Error()
		}
		r.Workers = append(r.Workers, w)
	}
	return r
}

// Write encodes r as indented JSON followed by a newline.
func Write(w io.Writer, r Report) error {
	data, err := sonic.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
