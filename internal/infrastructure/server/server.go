// Package server exposes a relay's metrics over HTTP while it runs.
//
// The server is optional and only started when an address is configured.
// Gin's own output is routed to stderr so nothing but relayed bytes ever
// reaches stdout.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nrelay/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nrelay/internal/logging"
	"github.com/GriffinCanCode/nrelay/internal/shared/id"
)

// Config configures the metrics server.
type Config struct {
	Addr string
	// RequestsPerSecond caps scrapes across all clients; zero disables it.
	RequestsPerSecond int
	Burst             int
}

// Server serves /metrics and /healthz.
type Server struct {
	router   *gin.Engine
	http     *http.Server
	listener net.Listener
	logger   *logging.Logger
	runID    id.RunID
	started  time.Time
	errs     chan error
}

// New creates a server for the given metrics. It does not listen yet.
func New(cfg Config, runID id.RunID, metrics *monitoring.Metrics, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = os.Stderr
	gin.DefaultErrorWriter = os.Stderr

	log := logger.Named("server")
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(accessLog(log))
	router.Use(rateLimit(cfg.RequestsPerSecond, cfg.Burst))

	s := &Server{
		router:  router,
		logger:  log,
		runID:   runID,
		started: time.Now(),
		errs:    make(chan error, 1),
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/healthz", s.health)
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"run_id": s.runID.String(),
		"uptime": time.Since(s.started).String(),
	})
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	s.listener = ln
	s.logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))

	go func() {
		err := s.http.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.errs <- err
	}()
	return nil
}

// Addr is the bound address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.http.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server, waiting for in-flight scrapes until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	if err := s.http.Shutdown(ctx); err != nil {
		return err
	}
	if err := <-s.errs; err != nil {
		s.logger.Warn("metrics server stopped", zap.Error(err))
		return err
	}
	return nil
}
