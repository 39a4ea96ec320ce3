// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/bureau-foundation/webtty/lib/testutil"
)

type lockedBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *lockedBuffer) Write(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(data)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

func newPipeConsole(t *testing.T) (*Console, *os.File, *lockedBuffer) {
	t.Helper()
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	t.Cleanup(func() {
		reader.Close()
		writer.Close()
	})
	output := &lockedBuffer{}
	return New(reader, output, nil), writer, output
}

func TestWriteAndReset(t *testing.T) {
	console, _, output := newPipeConsole(t)

	console.Write("hello ")
	console.Write("world")
	if output.String() != "hello world" {
		t.Fatalf("output = %q", output.String())
	}

	console.Reset()
	if !strings.Contains(output.String(), "\x1b[2J") {
		t.Errorf("Reset did not clear the screen: %q", output.String())
	}
}

func TestSetTitle(t *testing.T) {
	console, _, output := newPipeConsole(t)
	console.SetTitle("webtty")
	if got, want := output.String(), "\x1b]2;webtty\x07"; got != want {
		t.Errorf("title sequence = %q, want %q", got, want)
	}
}

func TestInputEvents(t *testing.T) {
	console, writer, _ := newPipeConsole(t)
	inputs := make(chan string, 4)
	console.OnInput(func(data string) { inputs <- data })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	console.Start(ctx)

	if _, err := writer.Write([]byte("ls\r")); err != nil {
		t.Fatalf("writing input: %v", err)
	}
	if got := testutil.RequireReceive(t, inputs, 5*time.Second, "input event"); got != "ls\r" {
		t.Errorf("input = %q, want %q", got, "ls\r")
	}
}

func TestInputFromSeparateReader(t *testing.T) {
	terminal, _, _ := newPipeConsole(t)
	typedAhead := strings.NewReader("buffered keys")
	console := NewWithReader(terminal.input, typedAhead, &lockedBuffer{}, nil)
	inputs := make(chan string, 4)
	console.OnInput(func(data string) { inputs <- data })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	console.Start(ctx)

	if got := testutil.RequireReceive(t, inputs, 5*time.Second, "input event"); got != "buffered keys" {
		t.Errorf("input = %q, want %q", got, "buffered keys")
	}
	if console.IsTerminal() {
		t.Error("pipe reported as a terminal")
	}
}

func TestResizeEvents(t *testing.T) {
	console, _, _ := newPipeConsole(t)
	console.size = func() (int, int, error) { return 40, 120, nil }

	resizes := make(chan [2]int, 4)
	remove := console.OnResize(func(rows, cols int) { resizes <- [2]int{rows, cols} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	console.Start(ctx)

	// Start registers for SIGWINCH before returning.
	if err := syscall.Kill(os.Getpid(), syscall.SIGWINCH); err != nil {
		t.Fatalf("raising SIGWINCH: %v", err)
	}
	if got := testutil.RequireReceive(t, resizes, 5*time.Second, "resize event"); got != [2]int{40, 120} {
		t.Errorf("resize = %v, want [40 120]", got)
	}

	remove()
	console.emitResize()
	testutil.RequireNoReceive(t, resizes, 20*time.Millisecond, "resize after removal")
}

func TestResizeSizeErrorIgnored(t *testing.T) {
	console, _, _ := newPipeConsole(t)
	console.size = func() (int, int, error) { return 0, 0, errors.New("not a terminal") }

	resizes := make(chan [2]int, 1)
	console.OnResize(func(rows, cols int) { resizes <- [2]int{rows, cols} })
	console.emitResize()
	testutil.RequireNoReceive(t, resizes, 20*time.Millisecond, "resize with unknown size")
}

func TestPipeIsNotTerminal(t *testing.T) {
	console, _, _ := newPipeConsole(t)
	if console.IsTerminal() {
		t.Error("pipe reported as a terminal")
	}
	if _, _, err := console.terminalSize(); err == nil {
		t.Error("terminalSize succeeded on a pipe")
	}
	if err := console.MakeRaw(); err == nil {
		t.Error("MakeRaw succeeded on a pipe")
	}
	if err := console.Restore(); err != nil {
		t.Errorf("Restore without raw mode: %v", err)
	}
}
