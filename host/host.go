// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/bureau-foundation/webtty/bridge"
	"github.com/bureau-foundation/webtty/lib/netutil"
)

// DefaultCommand is run when Options.Command is empty.
const DefaultCommand = "bash"

// Channel is the data channel as the host uses it.
type Channel interface {
	SendBinary(data []byte) error
	OnMessage(handler func(bridge.Message)) (remove func())
	OnClose(handler func()) (remove func())
	Close() error
}

// Options configures Serve.
type Options struct {
	// Command is split on whitespace and run on the PTY.
	// Default: DefaultCommand.
	Command string

	// Mirror copies PTY output to Output, so the host sees the session.
	Mirror bool

	// Output receives mirrored output. Default: os.Stdout.
	Output io.Writer

	// Input, when non-nil, is copied to the PTY so the host can type
	// into the session. The copy stops at EOF or when the PTY closes.
	Input io.Reader

	// Size, when non-nil, gives the initial PTY size before the
	// client's first set_size arrives.
	Size func() (rows, cols int, err error)

	// Logger receives session records. Default: discard.
	Logger *slog.Logger
}

// Serve runs Command on a new PTY and connects it to channel until the
// session ends. It returns nil for a normal end (the command exited,
// the channel closed, the client quit, or ctx was cancelled) and closes
// channel before returning.
func Serve(ctx context.Context, channel Channel, options Options) error {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	command := options.Command
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	arguments := strings.Fields(command)

	master, slavePath, err := openPTY()
	if err != nil {
		channel.Close()
		return fmt.Errorf("allocate PTY: %w", err)
	}
	pty := &ptyMaster{file: master}

	if options.Size != nil {
		if rows, cols, err := options.Size(); err == nil {
			if err := pty.Resize(rows, cols, 0, 0); err != nil {
				logger.Debug("setting initial PTY size", "error", err)
			}
		}
	}

	slave, err := os.OpenFile(slavePath, os.O_RDWR, 0)
	if err != nil {
		master.Close()
		channel.Close()
		return fmt.Errorf("open PTY slave %s: %w", slavePath, err)
	}

	cmd := exec.Command(arguments[0], arguments[1:]...)
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0, // fd 0 in child = slave PTY
	}
	if err := cmd.Start(); err != nil {
		slave.Close()
		master.Close()
		channel.Close()
		return fmt.Errorf("start %s: %w", arguments[0], err)
	}
	// The child has its own copy via fd 0/1/2.
	slave.Close()
	logger.Info("session started", "command", command, "pid", cmd.Process.Pid)

	done := make(chan struct{})
	var doneOnce sync.Once
	triggerDone := func() { doneOnce.Do(func() { close(done) }) }

	// failure is the first unexpected error seen before shutdown.
	var failureMu sync.Mutex
	var failure error
	fail := func(err error) {
		failureMu.Lock()
		select {
		case <-done:
		default:
			if failure == nil && !netutil.IsExpectedCloseError(err) {
				failure = err
			}
		}
		failureMu.Unlock()
		triggerDone()
	}

	frames := &frameHandler{
		pty:    pty,
		logger: logger,
		quit:   triggerDone,
		fail:   fail,
	}
	removeMessage := channel.OnMessage(frames.handle)
	removeClose := channel.OnClose(func() {
		logger.Info("channel closed by client")
		triggerDone()
	})

	mirror := io.Writer(nil)
	if options.Mirror {
		mirror = options.Output
		if mirror == nil {
			mirror = os.Stdout
		}
	}

	var goroutineWait sync.WaitGroup
	goroutineWait.Add(1)
	go func() {
		defer goroutineWait.Done()
		err := pumpOutput(master, channel, mirror)
		if errors.Is(err, errChannelSend) {
			logger.Info("channel stopped accepting output", "error", err)
			err = nil
		}
		if err != nil {
			fail(err)
			return
		}
		triggerDone()
	}()

	if options.Input != nil {
		// Not waited for: a terminal read only returns on the next
		// keystroke.
		go func() {
			if _, err := io.Copy(master, options.Input); err != nil {
				logger.Debug("local input stopped", "error", err)
			}
		}()
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logger.Info("session cancelled")
	}

	removeMessage()
	removeClose()
	if err := channel.Close(); err != nil {
		logger.Debug("closing channel", "error", err)
	}
	// A hangup ends an interactive shell, which ignores SIGTERM.
	_ = cmd.Process.Signal(syscall.SIGHUP)
	master.Close()
	goroutineWait.Wait()

	exitErr := <-exited
	logCommandExit(logger, exitErr)
	if exitErr != nil && !isCommandExit(exitErr) {
		return fmt.Errorf("waiting for %s: %w", arguments[0], exitErr)
	}
	failureMu.Lock()
	defer failureMu.Unlock()
	return failure
}

// isCommandExit reports whether err from Wait only describes how the
// command ended: an exit status or a signal. Both are a normal end of
// session for an interactive command.
func isCommandExit(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

func logCommandExit(logger *slog.Logger, err error) {
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		logger.Info("command exited", "exit_code", 0)
	case errors.As(err, &exitErr):
		status, ok := exitErr.Sys().(syscall.WaitStatus)
		if ok && status.Signaled() {
			logger.Info("command exited", "signal", status.Signal().String())
			return
		}
		logger.Info("command exited", "exit_code", exitErr.ExitCode())
	}
}
