// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Handler receives one input line and returns the text to print back
type Handler func(line string, r *Repl) (string, error)

// ReadCloser combines the Reader and Closer interfaces
type ReadCloser interface {
	io.Reader
	io.Closer
}

// Repl reads lines, hands them to a handler and prints the reply.
// Closing it also closes the underlying reader and writer.
type Repl struct {
	Input   ReadCloser
	Output  io.WriteCloser
	Prompt  string
	scanner *bufio.Scanner
	writer  *bufio.Writer
}

// New builds a repl over the given streams.
// Nil input or output falls back to stdin and stdout.
func New(in ReadCloser, out io.WriteCloser, prompt string) Repl {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return Repl{
		Input:   in,
		Output:  out,
		Prompt:  prompt,
		scanner: bufio.NewScanner(in),
		writer:  bufio.NewWriter(out),
	}
}

// Run blocks until the input ends or the handler fails.
// Every line is passed to onLine and the returned text is written back.
func (r *Repl) Run(onLine Handler) error {
	if err := r.prompt(); err != nil {
		r.Close()
		return err
	}
	for r.scanner.Scan() {
		line := r.scanner.Text()
		res, err := onLine(line, r)
		if err != nil {
			r.Close()
			return fmt.Errorf("handling input %q: %w", line, err)
		}
		if res != "" {
			if _, err = r.writer.WriteString(res + "\n"); err != nil {
				r.Close()
				return fmt.Errorf("writing reply: %w", err)
			}
		}
		if err = r.prompt(); err != nil {
			r.Close()
			return err
		}
	}
	return nil
}

func (r *Repl) prompt() error {
	if r.Prompt != "" {
		if _, err := r.writer.WriteString(r.Prompt); err != nil {
			return fmt.Errorf("writing prompt: %w", err)
		}
	}
	return r.writer.Flush()
}

// Close stops the repl and closes both streams
func (r *Repl) Close() {
	r.Input.Close()
	r.Output.Close()
}
