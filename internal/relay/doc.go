/*
Package relay implements the coordinator that moves bytes across every
boundary of a chain of copy stages.

# Overview

A chain of N stages has N boundaries. Boundary i reads stage i's output and
writes stage i+1's input; the last boundary writes the process output sink.
The coordinator owns both endpoints of every boundary and relays from a
single goroutine, suspending only inside a bounded readiness wait.

# Boundary states

	idle     --read n>0-->   flushing   (stage n bytes, watch downstream)
	idle     --read 0-->     drained    (close upstream, close downstream)
	flushing --partial-->    flushing
	flushing --complete-->   idle       (watch upstream again)
	flushing --complete-->   drained    (if upstream already ended)

Each notification is handled as one indivisible step: a chunk is staged
and its flush armed, or a flush completes and the next read is armed,
with nothing interleaved in between.

# Backpressure

A boundary never reads upstream while its buffer holds unflushed bytes, so
memory per hop is bounded by the buffer capacity and delivery is FIFO.
Capacities come from a Sizing policy; the default is Geometric, clamped by
Capacities to [min, max] and made non-increasing along the chain.

# Failure

Every failure is fatal. Errors carry one of four kinds (ErrUsage,
ErrResource, ErrIO, ErrLiveness) usable with errors.Is; ExitCode maps them
to a process exit status. A wait that expires with nothing ready is a
liveness failure, never a retry.
*/
package relay
