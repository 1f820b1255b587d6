package wrappers

import (
	"errors"
	"io"
)

var ErrClosed = errors.New("closed")

// GuardedReader wraps a reader so Close only blocks further reads
// instead of closing the underlying stream. Useful for stdin.
type GuardedReader struct {
	closed  bool
	wrapped io.Reader
}

func NewGuardedReader(wraps io.Reader) *GuardedReader {
	return &GuardedReader{wrapped: wraps}
}

func (r *GuardedReader) Read(p []byte) (n int, err error) {
	if r.closed {
		return 0, ErrClosed
	}
	return r.wrapped.Read(p)
}

func (r *GuardedReader) Close() error {
	r.closed = true
	return nil
}
