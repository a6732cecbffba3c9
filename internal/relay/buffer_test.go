package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageBufferCycle(t *testing.T) {
	buf := NewStageBuffer(8)
	assert.Equal(t, 8, buf.Capacity())
	assert.False(t, buf.NeedsFlush())

	copy(buf.Space(), "abcdef")
	buf.Stage(6)
	assert.True(t, buf.NeedsFlush())
	assert.Equal(t, "abcdef", string(buf.Pending()))

	assert.False(t, buf.Advance(2), "partial flush keeps the gate closed")
	assert.Equal(t, "cdef", string(buf.Pending()))
	assert.Equal(t, 4, buf.Unflushed())

	assert.True(t, buf.Advance(4))
	assert.False(t, buf.NeedsFlush())
	assert.Zero(t, buf.Unflushed())
	assert.Empty(t, buf.Pending())

	assert.Equal(t, int64(6), buf.totalStaged)
	assert.Equal(t, int64(6), buf.totalFlushed)
	assert.Equal(t, int64(1), buf.cycles)
	assert.Equal(t, 6, buf.highWater)
}

func TestStageBufferGate(t *testing.T) {
	buf := NewStageBuffer(4)
	buf.Stage(3)

	assert.Panics(t, func() { buf.Space() }, "no read while a flush is pending")
	assert.Panics(t, func() { buf.Stage(1) }, "one chunk in flight")
	assert.Panics(t, func() { buf.Advance(4) }, "cannot flush more than staged")

	require.True(t, buf.Advance(3))
	assert.NotPanics(t, func() { buf.Space() })
}

func TestStageBufferRanges(t *testing.T) {
	assert.Panics(t, func() { NewStageBuffer(0) })

	buf := NewStageBuffer(4)
	assert.Panics(t, func() { buf.Stage(5) })
	assert.Panics(t, func() { buf.Stage(-1) })

	buf.Stage(0)
	assert.False(t, buf.NeedsFlush(), "staging nothing leaves the buffer empty")
}

func TestStageBufferCloseUpstreamOnce(t *testing.T) {
	buf := NewStageBuffer(4)

	assert.True(t, buf.CloseUpstream())
	assert.True(t, buf.UpstreamClosed())
	assert.False(t, buf.CloseUpstream())
}
