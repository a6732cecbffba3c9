// Package worker implements one copy stage of a relay chain.
//
// A stage is a strictly serialized blocking loop: read up to its capacity
// from upstream, write exactly those bytes downstream, repeat until
// upstream reports end-of-stream, then close downstream. Content is never
// changed. A short write or any I/O error is fatal to the stage.
package worker

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nrelay/internal/logging"
)

// Stage is one worker unit. It sees only its own two endpoints.
type Stage struct {
	Index      int
	Capacity   int
	Upstream   io.ReadCloser
	Downstream io.WriteCloser
	Logger     *logging.Logger
}

// Run copies until end-of-stream and closes both endpoints, propagating
// end-of-stream downstream. It returns the number of bytes copied.
func (s *Stage) Run() (int64, error) {
	log := s.Logger
	if log == nil {
		log = logging.NewNop()
	}
	log = log.Named("worker").With(zap.Int("stage", s.Index))

	copied, err := Copy(s.Downstream, s.Upstream, s.Capacity)
	upErr := s.Upstream.Close()
	downErr := s.Downstream.Close()

	if err != nil {
		log.Error("stage failed", zap.Int64("bytes", copied), zap.Error(err))
		return copied, fmt.Errorf("stage %d: %w", s.Index, err)
	}
	if err := errors.Join(upErr, downErr); err != nil {
		log.Error("stage close failed", zap.Error(err))
		return copied, fmt.Errorf("stage %d: close: %w", s.Index, err)
	}
	log.Debug("stage finished", zap.Int64("bytes", copied))
	return copied, nil
}

// Copy reads up to capacity bytes at a time from src and writes each chunk
// to dst with a single Write before reading again. A zero-byte read ends
// the copy successfully.
func Copy(dst io.Writer, src io.Reader, capacity int) (int64, error) {
	if capacity < 1 {
		return 0, fmt.Errorf("capacity %d: must be positive", capacity)
	}
	buf := make([]byte, capacity)
	var copied int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			written, werr := dst.Write(buf[:n])
			copied += int64(written)
			if werr != nil {
				return copied, fmt.Errorf("write: %w", werr)
			}
			if written != n {
				return copied, fmt.Errorf("write: %d of %d bytes: %w", written, n, io.ErrShortWrite)
			}
		}
		switch {
		case rerr == io.EOF:
			return copied, nil
		case rerr != nil:
			return copied, fmt.Errorf("read: %w", rerr)
		case n == 0:
			return copied, nil
		}
	}
}
