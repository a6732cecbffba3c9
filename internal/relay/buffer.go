package relay

// StageBuffer is the fixed-capacity buffer of one boundary. It holds at
// most one chunk: a new chunk can only be staged once the previous one is
// fully flushed.
type StageBuffer struct {
	data           []byte
	staged         int
	flushed        int
	needsFlush     bool
	upstreamClosed bool

	totalStaged  int64
	totalFlushed int64
	cycles       int64
	highWater    int
}

// NewStageBuffer allocates a buffer of the given capacity.
func NewStageBuffer(capacity int) *StageBuffer {
	if capacity < 1 {
		panic("relay: stage buffer capacity must be positive")
	}
	return &StageBuffer{data: make([]byte, capacity)}
}

func (b *StageBuffer) Capacity() int        { return len(b.data) }
func (b *StageBuffer) NeedsFlush() bool     { return b.needsFlush }
func (b *StageBuffer) UpstreamClosed() bool { return b.upstreamClosed }

// Unflushed returns the number of staged bytes not yet written downstream.
func (b *StageBuffer) Unflushed() int { return b.staged - b.flushed }

// Space returns the whole buffer for the next upstream read.
func (b *StageBuffer) Space() []byte {
	if b.needsFlush {
		panic("relay: read into a buffer that still needs a flush")
	}
	return b.data
}

// Stage records n freshly read bytes at the front of the buffer.
func (b *StageBuffer) Stage(n int) {
	if b.needsFlush {
		panic("relay: stage while a flush is pending")
	}
	if n < 0 || n > len(b.data) {
		panic("relay: staged length out of range")
	}
	if n == 0 {
		return
	}
	b.staged = n
	b.flushed = 0
	b.needsFlush = true
	b.totalStaged += int64(n)
	if n > b.highWater {
		b.highWater = n
	}
}

// Pending returns the staged bytes not yet flushed, oldest first.
func (b *StageBuffer) Pending() []byte {
	return b.data[b.flushed:b.staged]
}

// Advance records n bytes flushed downstream and reports whether the chunk
// is now fully flushed, in which case the buffer is empty again.
func (b *StageBuffer) Advance(n int) bool {
	if n < 0 || n > b.Unflushed() {
		panic("relay: flushed length out of range")
	}
	b.flushed += n
	b.totalFlushed += int64(n)
	if b.flushed < b.staged {
		return false
	}
	b.staged = 0
	b.flushed = 0
	b.needsFlush = false
	b.cycles++
	return true
}

// CloseUpstream marks end-of-stream. It reports false if it was already
// marked.
func (b *StageBuffer) CloseUpstream() bool {
	if b.upstreamClosed {
		return false
	}
	b.upstreamClosed = true
	return true
}
