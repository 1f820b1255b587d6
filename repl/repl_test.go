package repl

import (
	"io"
	"strings"
	"testing"
)

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func TestRunEchoesHandlerOutput(t *testing.T) {
	in := io.NopCloser(strings.NewReader("one\ntwo\n"))
	var out strings.Builder

	r := New(in, nopWriteCloser{&out}, "")
	err := r.Run(func(line string, _ *Repl) (string, error) {
		return "got " + line, nil
	})
	if err != nil {
		t.Fatalf("run: %s", err)
	}
	if out.String() != "got one\ngot two\n" {
		t.Errorf("output %q", out.String())
	}
}

func TestRunWritesPrompt(t *testing.T) {
	in := io.NopCloser(strings.NewReader("x\n"))
	var out strings.Builder

	r := New(in, nopWriteCloser{&out}, "> ")
	err := r.Run(func(line string, _ *Repl) (string, error) {
		return "", nil
	})
	if err != nil {
		t.Fatalf("run: %s", err)
	}
	if out.String() != "> > " {
		t.Errorf("output %q", out.String())
	}
}

func TestRunStopsOnHandlerError(t *testing.T) {
	in := io.NopCloser(strings.NewReader("boom\nnever\n"))
	var out strings.Builder
	seen := 0

	r := New(in, nopWriteCloser{&out}, "")
	err := r.Run(func(line string, _ *Repl) (string, error) {
		seen++
		return "", io.ErrUnexpectedEOF
	})
	if err == nil {
		t.Fatal("expected the handler error to surface")
	}
	if seen != 1 {
		t.Errorf("handler ran %d times, want 1", seen)
	}
}
