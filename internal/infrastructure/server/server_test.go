package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/nrelay/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nrelay/internal/shared/id"
)

func TestRoutes(t *testing.T) {
	metrics := monitoring.NewMetrics()
	metrics.Emitted(42)
	runID := id.NewRunID()
	s := New(Config{Addr: "127.0.0.1:0"}, runID, metrics, nil)

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "nrelay_bytes_emitted_total 42")
	})

	t.Run("healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
		assert.Contains(t, rec.Body.String(), runID.String())
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/apps", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestStartAndShutdown(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, id.NewRunID(), monitoring.NewMetrics(), nil)
	require.NoError(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "nrelay_uptime_seconds")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	_, err = http.Get("http://" + s.Addr() + "/healthz")
	assert.Error(t, err)
}

func TestShutdownWithoutStart(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, id.NewRunID(), monitoring.NewMetrics(), nil)
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestRateLimit(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", RequestsPerSecond: 1, Burst: 2}, id.NewRunID(), monitoring.NewMetrics(), nil)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
