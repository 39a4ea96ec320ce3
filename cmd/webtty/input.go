// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// lineReader reads pasted tokens. One goroutine owns the underlying
// reader and reads a line per request, so a cancelled ReadLine leaves
// its line for the next ReadLine or Read instead of racing it.
// ReadLine and Read must not be called concurrently.
type lineReader struct {
	reader   *bufio.Reader
	requests chan struct{}
	lines    chan lineResult
	start    sync.Once

	// outstanding is set while a requested line has not been consumed.
	outstanding bool
	// leftover holds a line Read took over from an abandoned request.
	leftover []byte
}

type lineResult struct {
	raw string
	err error
}

func newLineReader(input io.Reader) *lineReader {
	return &lineReader{
		reader:   bufio.NewReader(input),
		requests: make(chan struct{}, 1),
		lines:    make(chan lineResult, 1),
	}
}

func (r *lineReader) run() {
	for range r.requests {
		raw, err := r.reader.ReadString('\n')
		r.lines <- lineResult{raw: raw, err: err}
	}
}

// request asks the reader goroutine for a line unless one is already
// on its way.
func (r *lineReader) request() {
	r.start.Do(func() { go r.run() })
	if !r.outstanding {
		r.outstanding = true
		r.requests <- struct{}{}
	}
}

// ReadLine returns the next line with surrounding whitespace removed.
// A final line without a newline is returned before io.EOF.
func (r *lineReader) ReadLine(ctx context.Context) (string, error) {
	if len(r.leftover) > 0 {
		raw := string(r.leftover)
		r.leftover = nil
		return strings.TrimSpace(raw), nil
	}
	r.request()
	select {
	case result := <-r.lines:
		r.outstanding = false
		line := strings.TrimSpace(result.raw)
		if errors.Is(result.err, io.EOF) && line != "" {
			return line, nil
		}
		return line, result.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Read lets the PTY or console take over the same buffered stdin once
// tokens have been read, so bytes already buffered are not lost. A line
// still being read for an abandoned ReadLine is delivered first.
func (r *lineReader) Read(buffer []byte) (int, error) {
	if r.outstanding {
		result := <-r.lines
		r.outstanding = false
		r.leftover = append(r.leftover, result.raw...)
		if len(r.leftover) == 0 && result.err != nil {
			return 0, result.err
		}
	}
	if len(r.leftover) > 0 {
		count := copy(buffer, r.leftover)
		r.leftover = r.leftover[count:]
		return count, nil
	}
	return r.reader.Read(buffer)
}
