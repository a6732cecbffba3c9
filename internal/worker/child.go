package worker

import (
	"fmt"
	"os"
	"strconv"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nrelay/internal/config"
	"github.com/GriffinCanCode/nrelay/internal/logging"
)

// Environment handed to a worker process, and the descriptors its two
// endpoints are inherited on.
const (
	EnvStage     = "NRELAY_STAGE"
	EnvCapacity  = "NRELAY_STAGE_CAPACITY"
	EnvRunID     = "NRELAY_RUN_ID"
	UpstreamFd   = 3
	DownstreamFd = 4
)

type childEnv struct {
	Stage    int    `envconfig:"NRELAY_STAGE" required:"true"`
	Capacity int    `envconfig:"NRELAY_STAGE_CAPACITY" required:"true"`
	RunID    string `envconfig:"NRELAY_RUN_ID"`
}

// IsChild reports whether this process was started as a worker stage.
func IsChild() bool {
	_, ok := os.LookupEnv(EnvStage)
	return ok
}

// Environ returns the variables that turn a re-executed binary into the
// given stage.
func Environ(stage, capacity int, runID string) []string {
	return []string{
		EnvStage + "=" + strconv.Itoa(stage),
		EnvCapacity + "=" + strconv.Itoa(capacity),
		EnvRunID + "=" + runID,
	}
}

// Main runs this process as a worker stage over descriptors 3 and 4 and
// returns the process exit status.
func Main() int {
	cfg := config.LoadOrDefault()
	log, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development, os.Stderr)
	if err != nil {
		log = logging.NewDefault()
	}
	defer log.Sync()

	var env childEnv
	if err := envconfig.Process("", &env); err != nil {
		log.Error("invalid worker environment", zap.Error(err))
		return 1
	}
	log = log.With(zap.String("run_id", env.RunID), zap.Int("pid", os.Getpid()))

	stage := &Stage{
		Index:      env.Stage,
		Capacity:   env.Capacity,
		Upstream:   os.NewFile(UpstreamFd, fmt.Sprintf("stage%d.in", env.Stage)),
		Downstream: os.NewFile(DownstreamFd, fmt.Sprintf("stage%d.out", env.Stage)),
		Logger:     log,
	}
	if _, err := stage.Run(); err != nil {
		return 1
	}
	return 0
}
