// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package console is the local terminal as a bridge.Terminal: stdin
// keystrokes become input events, SIGWINCH becomes resize events, and
// session output is written straight to stdout.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/bureau-foundation/webtty/bridge"
	"github.com/bureau-foundation/webtty/lib/event"
)

var (
	_ bridge.Terminal = (*Console)(nil)
	_ bridge.Sizer    = (*Console)(nil)
)

// Console wraps a terminal's input and output files.
type Console struct {
	// input is the terminal for mode and size; keystrokes come from
	// reader, which is input unless NewWithReader was used.
	input  *os.File
	reader io.Reader
	output io.Writer
	screen *termenv.Output
	logger *slog.Logger

	// size reads the current size. Replaced in tests.
	size func() (rows, cols int, err error)

	inputs  event.Registry[string]
	resizes event.Registry[[2]int]

	writeMu sync.Mutex

	mu       sync.Mutex
	rawState *term.State
}

// New creates a Console reading input and writing output. Nothing is
// read until Start.
func New(input *os.File, output io.Writer, logger *slog.Logger) *Console {
	return NewWithReader(input, input, output, logger)
}

// NewWithReader is New with keystrokes read from reader instead of
// terminal, for callers that already buffered part of the terminal's
// input. Raw mode and size still apply to terminal.
func NewWithReader(terminal *os.File, reader io.Reader, output io.Writer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	console := &Console{
		input:  terminal,
		reader: reader,
		output: output,
		screen: termenv.NewOutput(output),
		logger: logger,
	}
	console.size = console.terminalSize
	return console
}

// Stdio returns a Console on os.Stdin and os.Stdout.
func Stdio(logger *slog.Logger) *Console {
	return New(os.Stdin, os.Stdout, logger)
}

// IsTerminal reports whether input is a terminal.
func (c *Console) IsTerminal() bool {
	return term.IsTerminal(int(c.input.Fd()))
}

// MakeRaw puts the input terminal in raw mode until Restore.
func (c *Console) MakeRaw() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rawState != nil {
		return nil
	}
	state, err := term.MakeRaw(int(c.input.Fd()))
	if err != nil {
		return fmt.Errorf("set terminal raw mode: %w", err)
	}
	c.rawState = state
	return nil
}

// Restore undoes MakeRaw. It is safe to call when not in raw mode.
func (c *Console) Restore() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rawState == nil {
		return nil
	}
	state := c.rawState
	c.rawState = nil
	return term.Restore(int(c.input.Fd()), state)
}

// Write displays text.
func (c *Console) Write(text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := io.WriteString(c.output, text); err != nil {
		c.logger.Debug("writing to console", "error", err)
	}
}

// Reset clears the screen and homes the cursor.
func (c *Console) Reset() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.screen.ClearScreen()
}

// SetTitle sets the terminal window title.
func (c *Console) SetTitle(title string) {
	c.Write(ansi.SetWindowTitle(title))
}

func (c *Console) OnInput(handler func(data string)) (remove func()) {
	return c.inputs.Add(handler)
}

func (c *Console) OnResize(handler func(rows, cols int)) (remove func()) {
	return c.resizes.Add(func(size [2]int) { handler(size[0], size[1]) })
}

// Size returns the terminal size in character cells.
func (c *Console) Size() (rows, cols int, err error) {
	return c.size()
}

func (c *Console) terminalSize() (rows, cols int, err error) {
	cols, rows, err = term.GetSize(int(c.input.Fd()))
	if err != nil {
		return 0, 0, fmt.Errorf("reading terminal size: %w", err)
	}
	return rows, cols, nil
}

// Start reads input and watches SIGWINCH until ctx is done. Input
// events stop at ctx's end even though the blocked read on input does
// not return until the next keystroke.
func (c *Console) Start(ctx context.Context) {
	go c.readInput(ctx)

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		defer signal.Stop(winch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-winch:
				c.emitResize()
			}
		}
	}()
}

func (c *Console) readInput(ctx context.Context) {
	buffer := make([]byte, 1024)
	for {
		count, err := c.reader.Read(buffer)
		if ctx.Err() != nil {
			return
		}
		if count > 0 {
			c.inputs.Emit(string(buffer[:count]))
		}
		if err != nil {
			c.logger.Debug("console input ended", "error", err)
			return
		}
	}
}

func (c *Console) emitResize() {
	rows, cols, err := c.size()
	if err != nil {
		c.logger.Debug("ignoring resize", "error", err)
		return
	}
	c.resizes.Emit([2]int{rows, cols})
}
