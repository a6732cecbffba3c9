package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/nrelay/internal/endpoint"
	"github.com/GriffinCanCode/nrelay/internal/relay"
)

// Metrics holds all Prometheus metrics of one relay run. It implements
// relay.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// Relay metrics
	BytesStaged    *prometheus.CounterVec
	BytesFlushed   *prometheus.CounterVec
	BytesEmitted   prometheus.Counter
	PartialFlushes *prometheus.CounterVec
	StaleReadiness *prometheus.CounterVec
	BoundaryState  *prometheus.GaugeVec
	WaitDuration   prometheus.Histogram
	ReadyEndpoints prometheus.Histogram

	// Worker metrics
	WorkersSpawned prometheus.Counter
	WorkerExits    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time
}

// NewMetrics creates a metrics collector on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// Relay metrics
		BytesStaged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nrelay_bytes_staged_total",
				Help: "Bytes read from upstream into a boundary buffer",
			},
			[]string{"boundary"},
		),
		BytesFlushed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nrelay_bytes_flushed_total",
				Help: "Bytes written downstream from a boundary buffer",
			},
			[]string{"boundary"},
		),
		BytesEmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nrelay_bytes_emitted_total",
				Help: "Bytes written to the output sink",
			},
		),
		PartialFlushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nrelay_partial_flushes_total",
				Help: "Downstream writes that accepted only part of the pending bytes",
			},
			[]string{"boundary"},
		),
		StaleReadiness: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nrelay_stale_readiness_total",
				Help: "Readiness notifications that could not be acted on",
			},
			[]string{"direction"},
		),
		BoundaryState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nrelay_boundary_state",
				Help: "Boundary state (0 idle, 1 flushing, 2 drained)",
			},
			[]string{"boundary"},
		),
		WaitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nrelay_readiness_wait_seconds",
				Help:    "Time spent in each readiness wait",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5, 30, 60},
			},
		),
		ReadyEndpoints: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nrelay_ready_endpoints",
				Help:    "Endpoints reported ready per wait",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
			},
		),

		// Worker metrics
		WorkersSpawned: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nrelay_workers_spawned_total",
				Help: "Worker stages started",
			},
		),
		WorkerExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nrelay_worker_exits_total",
				Help: "Worker stages reaped, by outcome",
			},
			[]string{"status"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "nrelay_uptime_seconds",
			Help: "Time since the run started",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry all metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func boundaryLabel(i int) string {
	return strconv.Itoa(i)
}

// Staged records bytes staged at a boundary
func (m *Metrics) Staged(boundary, n int) {
	m.BytesStaged.WithLabelValues(boundaryLabel(boundary)).Add(float64(n))
}

// Flushed records bytes flushed downstream from a boundary
func (m *Metrics) Flushed(boundary, n int, partial bool) {
	label := boundaryLabel(boundary)
	m.BytesFlushed.WithLabelValues(label).Add(float64(n))
	if partial {
		m.PartialFlushes.WithLabelValues(label).Inc()
	}
}

// Emitted records bytes written to the output sink
func (m *Metrics) Emitted(n int) {
	m.BytesEmitted.Add(float64(n))
}

// StateChanged records a boundary state transition
func (m *Metrics) StateChanged(boundary int, state relay.State) {
	m.BoundaryState.WithLabelValues(boundaryLabel(boundary)).Set(float64(state))
}

// Stale records a readiness notification that was dropped
func (m *Metrics) Stale(_ int, dir endpoint.Direction) {
	m.StaleReadiness.WithLabelValues(dir.String()).Inc()
}

// Waited records one readiness wait
func (m *Metrics) Waited(d time.Duration, ready int) {
	m.WaitDuration.Observe(d.Seconds())
	m.ReadyEndpoints.Observe(float64(ready))
}

// RecordWorkerSpawn increments the spawned workers counter
func (m *Metrics) RecordWorkerSpawn() {
	m.WorkersSpawned.Inc()
}

// RecordWorkerExit records a reaped worker's outcome
func (m *Metrics) RecordWorkerExit(err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.WorkerExits.WithLabelValues(status).Inc()
}
