package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nrelay/internal/config"
	"github.com/GriffinCanCode/nrelay/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nrelay/internal/infrastructure/server"
	"github.com/GriffinCanCode/nrelay/internal/logging"
	"github.com/GriffinCanCode/nrelay/internal/pipeline"
	"github.com/GriffinCanCode/nrelay/internal/relay"
	"github.com/GriffinCanCode/nrelay/internal/report"
	"github.com/GriffinCanCode/nrelay/internal/shared/id"
	"github.com/GriffinCanCode/nrelay/internal/worker"
)

const (
	// reapTimeout bounds how long the CLI waits for workers after the relay.
	reapTimeout     = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	if worker.IsChild() {
		os.Exit(worker.Main())
	}
	// a vanished stdout reader surfaces as EPIPE on the sink write
	signal.Ignore(syscall.SIGPIPE)
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one invocation and returns its exit status.
func run(args []string, stdout, stderr io.Writer) int {
	stages, input, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "nrelay: %v\n", err)
		printUsage(stderr)
		return relay.ExitCode(err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "nrelay: %v\n", err)
		return relay.ExitCode(relay.ResourceError("load config", err))
	}

	// logs, worker diagnostics and the report all share one writer
	stderr = logging.SyncWriter(stderr)

	logger, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "nrelay: %v\n", err)
		return relay.ExitCode(relay.ResourceError("create logger", err))
	}
	defer logger.Sync()

	runID := id.NewRunID()
	log := logger.With(zap.Stringer("run_id", runID))
	metrics := monitoring.NewMetrics()

	if cfg.Metrics.Addr != "" {
		srv := server.New(server.Config{
			Addr:              cfg.Metrics.Addr,
			RequestsPerSecond: cfg.Metrics.Rate,
			Burst:             cfg.Metrics.Burst,
		}, runID, metrics, log)
		if err := srv.Start(); err != nil {
			log.Error("metrics server failed", zap.Error(err))
			return relay.ExitCode(relay.ResourceError("start metrics server", err))
		}
		defer stopServer(srv, shutdownTimeout, log)
	}

	log.Info("relay starting",
		zap.Int("stages", stages),
		zap.String("input", input),
		zap.String("spawn", cfg.Spawn.Mode),
		zap.Duration("timeout", cfg.Relay.Timeout),
	)

	start := time.Now()
	stats, exits, err := relayFile(cfg, runID, stages, input, stdout, stderr, log, metrics)
	elapsed := time.Since(start)

	if err != nil {
		log.Error("relay failed", zap.Error(err), zap.Duration("elapsed", elapsed))
	} else {
		log.Info("relay complete",
			zap.Int64("bytes", stats.BytesEmitted),
			zap.Duration("elapsed", elapsed),
		)
	}

	if cfg.Metrics.Report {
		r := report.New(runID, stages, input, cfg.Spawn.Mode, err, elapsed, stats, exits)
		if werr := report.Write(stderr, r); werr != nil {
			log.Warn("run report failed", zap.Error(werr))
		}
	}
	return relay.ExitCode(err)
}

// relayFile builds the chain, relays it to stdout and reaps the workers.
func relayFile(
	cfg *config.Config,
	runID id.RunID,
	stages int,
	input string,
	stdout, stderr io.Writer,
	log *logging.Logger,
	metrics *monitoring.Metrics,
) (relay.Stats, []pipeline.WorkerExit, error) {
	p, err := pipeline.Build(pipeline.Options{
		Stages:    stages,
		InputPath: input,
		Spawner:   newSpawner(cfg, runID, stderr, log),
		Sizing:    relay.Geometric(stages, cfg.Relay.SizingBase, cfg.Relay.SizingOffset, cfg.Relay.MaxBuffer),
		MinBuffer: cfg.Relay.MinBuffer,
		MaxBuffer: cfg.Relay.MaxBuffer,
		Logger:    log,
		Observer:  metrics,
	})
	if err != nil {
		return relay.Stats{}, nil, err
	}

	var stats relay.Stats
	c, err := relay.New(p.Boundaries, relay.Options{
		Sink:     stdout,
		Timeout:  cfg.Relay.Timeout,
		Logger:   log,
		Observer: metrics,
	})
	if err == nil {
		err = c.Run()
		stats = c.Stats()
	} else {
		for _, b := range p.Boundaries {
			b.Close()
		}
	}
	if err != nil {
		p.Abort()
	}
	return stats, p.ReapTimeout(reapTimeout), err
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// stopServer shuts srv down within timeout; a failure is logged, never
// fatal to the run.
func stopServer(srv shutdowner, timeout time.Duration, log *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("metrics server shutdown failed", zap.Error(err))
	}
}

func newSpawner(cfg *config.Config, runID id.RunID, stderr io.Writer, log *logging.Logger) pipeline.Spawner {
	if cfg.Spawn.Mode == config.SpawnInline {
		return &pipeline.InlineSpawner{Logger: log}
	}
	return &pipeline.ProcessSpawner{RunID: runID, Stderr: stderr}
}

// parseArgs validates `<N> <input-path>`.
func parseArgs(args []string, stderr io.Writer) (int, string, error) {
	fs := flag.NewFlagSet("nrelay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, "", err
		}
		return 0, "", relay.UsageError("%v", err)
	}

	if fs.NArg() != 2 {
		return 0, "", relay.UsageError("want 2 arguments, got %d", fs.NArg())
	}
	stages, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return 0, "", relay.UsageError("stage count %q is not a number", fs.Arg(0))
	}
	if stages < 1 {
		return 0, "", relay.UsageError("stage count %d must be positive", stages)
	}
	return stages, fs.Arg(1), nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: nrelay <N> <input-path>")
	fmt.Fprintln(w, "  relays input-path through N stages to stdout")
}
