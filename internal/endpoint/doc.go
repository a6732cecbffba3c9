// Package endpoint provides owned, uniquely identified pipe endpoints.
//
// An Endpoint wraps a raw descriptor rather than an *os.File: the relay
// coordinator multiplexes readiness itself and needs reads and writes that
// report "would block" instead of parking the goroutine. Every pipe is
// created close-on-exec, so a spawned worker only ever sees the
// descriptors it is handed explicitly.
package endpoint
