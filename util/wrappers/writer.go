package wrappers

import (
	"io"
)

// GuardedWriter is the write side counterpart to GuardedReader
type GuardedWriter struct {
	closed  bool
	wrapped io.Writer
}

func NewGuardedWriter(wraps io.Writer) *GuardedWriter {
	return &GuardedWriter{wrapped: wraps}
}

func (w *GuardedWriter) Write(p []byte) (n int, err error) {
	if w.closed {
		return 0, ErrClosed
	}
	return w.wrapped.Write(p)
}

func (w *GuardedWriter) Close() error {
	w.closed = true
	return nil
}
