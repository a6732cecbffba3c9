package worker

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkRecorder records the size of every Write call.
type chunkRecorder struct {
	bytes.Buffer
	chunks []int
}

func (c *chunkRecorder) Write(p []byte) (int, error) {
	c.chunks = append(c.chunks, len(p))
	return c.Buffer.Write(p)
}

func TestCopyChunksByCapacity(t *testing.T) {
	var dst chunkRecorder

	n, err := Copy(&dst, strings.NewReader("abcdefghij"), 4)
	require.NoError(t, err)

	assert.Equal(t, int64(10), n)
	assert.Equal(t, "abcdefghij", dst.String())
	assert.Equal(t, []int{4, 4, 2}, dst.chunks)
}

func TestCopyEdgeReaders(t *testing.T) {
	input := []byte("the quick brown fox jumps over the lazy dog")

	tests := []struct {
		name string
		src  io.Reader
	}{
		{"one byte at a time", iotest.OneByteReader(bytes.NewReader(input))},
		{"data with EOF", iotest.DataErrReader(bytes.NewReader(input))},
		{"half reads", iotest.HalfReader(bytes.NewReader(input))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst bytes.Buffer
			n, err := Copy(&dst, tt.src, 8)
			require.NoError(t, err)
			assert.Equal(t, int64(len(input)), n)
			assert.Equal(t, input, dst.Bytes())
		})
	}
}

func TestCopyEmpty(t *testing.T) {
	var dst chunkRecorder

	n, err := Copy(&dst, bytes.NewReader(nil), 16)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, dst.chunks, "no write for an empty stream")
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

func TestCopyFailures(t *testing.T) {
	boom := errors.New("boom")

	_, err := Copy(shortWriter{}, strings.NewReader("abcd"), 4)
	assert.ErrorIs(t, err, io.ErrShortWrite)

	_, err = Copy(io.Discard, iotest.ErrReader(boom), 4)
	assert.ErrorIs(t, err, boom)

	_, err = Copy(io.Discard, strings.NewReader("x"), 0)
	assert.Error(t, err)
}

type closeTracker struct {
	io.Reader
	io.Writer
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestStageRunClosesBothEnds(t *testing.T) {
	up := &closeTracker{Reader: strings.NewReader("payload")}
	var out bytes.Buffer
	down := &closeTracker{Writer: &out}

	stage := &Stage{Index: 2, Capacity: 3, Upstream: up, Downstream: down}
	n, err := stage.Run()
	require.NoError(t, err)

	assert.Equal(t, int64(7), n)
	assert.Equal(t, "payload", out.String())
	assert.True(t, up.closed)
	assert.True(t, down.closed, "end-of-stream propagates by closing downstream")
}

func TestStageRunReportsFailure(t *testing.T) {
	up := &closeTracker{Reader: strings.NewReader("payload")}
	down := &closeTracker{Writer: shortWriter{}}

	stage := &Stage{Index: 1, Capacity: 4, Upstream: up, Downstream: down}
	_, err := stage.Run()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage 1")
	assert.True(t, down.closed, "a failed stage still releases its endpoints")
}

func TestEnviron(t *testing.T) {
	env := Environ(3, 729, "run-1")
	assert.Equal(t, []string{
		"NRELAY_STAGE=3",
		"NRELAY_STAGE_CAPACITY=729",
		"NRELAY_RUN_ID=run-1",
	}, env)
}

func TestIsChild(t *testing.T) {
	assert.False(t, IsChild())

	t.Setenv(EnvStage, "0")
	assert.True(t, IsChild())
}
