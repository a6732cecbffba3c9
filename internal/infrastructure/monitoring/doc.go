/*
Package monitoring provides Prometheus metrics for a relay run.

# Overview

Metrics implements relay.Observer, so the coordinator feeds it directly
from its loop. Every Metrics value owns a private registry; nothing is
registered globally.

# Metrics

- nrelay_bytes_staged_total / nrelay_bytes_flushed_total per boundary
- nrelay_bytes_emitted_total for the output sink
- nrelay_partial_flushes_total per boundary
- nrelay_stale_readiness_total by direction
- nrelay_boundary_state per boundary
- nrelay_readiness_wait_seconds and nrelay_ready_endpoints per wait
- nrelay_workers_spawned_total and nrelay_worker_exits_total

# Usage

	metrics := monitoring.NewMetrics()
	coord, err := relay.New(boundaries, relay.Options{Sink: os.Stdout, Observer: metrics})

	// optional live endpoint
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
