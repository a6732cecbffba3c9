// Package main is the nrelay command: it relays the bytes of an input file
// through a chain of N worker stages and writes them, unchanged, to stdout.
//
// Usage:
//
//	nrelay <N> <input-path>
//
// A single coordinator owns every pipe boundary between consecutive stages,
// staging and flushing through a bounded buffer per boundary with
// non-blocking I/O and a bounded readiness wait. Each stage runs as a
// re-execution of this binary and only ever holds its own two endpoints.
//
// Exit status:
//
//	0  the whole input was relayed
//	2  malformed arguments
//	1  any setup or runtime failure
//
// Diagnostics go to stderr; stdout carries nothing but the relayed bytes.
// Optional environment variables (RELAY_TIMEOUT, RELAY_MAX_BUFFER,
// RELAY_SPAWN, LOG_LEVEL, RELAY_METRICS_ADDR, RELAY_REPORT, ...) tune the
// run; their defaults give the behavior described above.
package main
