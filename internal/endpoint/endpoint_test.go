package endpoint

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newPipe(t *testing.T) (*Endpoint, *Endpoint) {
	t.Helper()
	r, w, err := Pipe("test")
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

func TestPipeRoundTrip(t *testing.T) {
	r, w := newPipe(t)

	assert.Equal(t, Read, r.Direction())
	assert.Equal(t, Write, w.Direction())
	assert.NotEqual(t, r.ID(), w.ID())
	assert.True(t, strings.HasPrefix(r.ID().String(), "ep_"))

	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 16)
	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestPipeIsCloseOnExec(t *testing.T) {
	r, w := newPipe(t)

	for _, ep := range []*Endpoint{r, w} {
		flags, err := unix.FcntlInt(uintptr(ep.Fd()), unix.F_GETFD, 0)
		require.NoError(t, err)
		assert.NotZero(t, flags&unix.FD_CLOEXEC, "%s should be close-on-exec", ep)
	}
}

func TestEndOfStreamIsDistinctFromWouldBlock(t *testing.T) {
	r, w := newPipe(t)
	require.NoError(t, r.SetNonblock())

	buf := make([]byte, 8)
	n, err := r.Read(buf)
	assert.ErrorIs(t, err, ErrWouldBlock)
	assert.Zero(t, n)

	require.NoError(t, w.Close())

	n, err = r.Read(buf)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestNonblockingWriteFillsPipe(t *testing.T) {
	_, w := newPipe(t)
	require.NoError(t, w.SetNonblock())

	chunk := make([]byte, 4096)
	var total int
	for {
		n, err := w.Write(chunk)
		if err != nil {
			require.ErrorIs(t, err, ErrWouldBlock)
			break
		}
		total += n
	}
	assert.Positive(t, total)
}

func TestWriteToClosedReaderFails(t *testing.T) {
	r, w := newPipe(t)
	require.NoError(t, r.Close())

	_, err := w.Write([]byte("x"))
	assert.ErrorIs(t, err, unix.EPIPE)
}

func TestDirectionAndClosedGuards(t *testing.T) {
	r, w := newPipe(t)

	_, err := r.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrDirection)
	_, err = w.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrDirection)

	require.NoError(t, r.Close())
	assert.True(t, r.Closed())
	assert.NoError(t, r.Close(), "second close is a no-op")

	_, err = r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, r.SetNonblock(), ErrClosed)
}

func TestRelease(t *testing.T) {
	r, w := newPipe(t)

	f, err := w.Release()
	require.NoError(t, err)
	assert.True(t, w.Closed())

	_, err = w.Release()
	assert.ErrorIs(t, err, ErrClosed)

	_, err = f.Write([]byte("via file"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := io.ReadAll(readerFunc(r.Read))
	require.NoError(t, err)
	assert.Equal(t, "via file", string(got))
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) {
	n, err := f(p)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}
