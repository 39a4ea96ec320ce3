// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/bureau-foundation/webtty/bridge"
	"github.com/bureau-foundation/webtty/lib/event"
)

type resize struct {
	rows, cols, width, height int
}

type fakePTY struct {
	mu       sync.Mutex
	written  bytes.Buffer
	resizes  []resize
	writeErr error
}

func (p *fakePTY) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(data)
}

func (p *fakePTY) Resize(rows, cols, width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resizes = append(p.resizes, resize{rows, cols, width, height})
	return nil
}

func (p *fakePTY) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

type handlerRecorder struct {
	quits  int
	errors []error
}

func newTestHandler(pty ptyWriter, logs *bytes.Buffer) (*frameHandler, *handlerRecorder) {
	recorder := &handlerRecorder{}
	handler := &frameHandler{
		pty:    pty,
		logger: slog.New(slog.NewTextHandler(logs, nil)),
		quit:   func() { recorder.quits++ },
		fail:   func(err error) { recorder.errors = append(recorder.errors, err) },
	}
	return handler, recorder
}

func TestFrameHandlerInput(t *testing.T) {
	pty := &fakePTY{}
	var logs bytes.Buffer
	handler, recorder := newTestHandler(pty, &logs)

	handler.handle(bridge.Message{Data: bridge.InputFrame("ls -l\r")})
	handler.handle(bridge.Message{Data: `["data","\u0003"]`})
	handler.handle(bridge.Message{Data: []byte("raw")})
	handler.handle(bridge.Message{Data: bridge.InputFrame("")})

	if got, want := pty.Written(), "ls -l\r\x03raw"; got != want {
		t.Errorf("PTY received %q, want %q", got, want)
	}
	if recorder.quits != 0 || len(recorder.errors) != 0 {
		t.Errorf("unexpected quit/fail: %+v", recorder)
	}
}

func TestFrameHandlerResize(t *testing.T) {
	pty := &fakePTY{}
	var logs bytes.Buffer
	handler, _ := newTestHandler(pty, &logs)

	handler.handle(bridge.Message{Data: bridge.ResizeFrame(24, 80)})
	handler.handle(bridge.Message{Data: `["set_size",50,132,1056,800]`})

	want := []resize{{24, 80, 0, 0}, {50, 132, 1056, 800}}
	if len(pty.resizes) != len(want) {
		t.Fatalf("resizes = %+v, want %+v", pty.resizes, want)
	}
	for index := range want {
		if pty.resizes[index] != want[index] {
			t.Errorf("resize %d = %+v, want %+v", index, pty.resizes[index], want[index])
		}
	}
}

func TestFrameHandlerDropsBadFrames(t *testing.T) {
	pty := &fakePTY{}
	var logs bytes.Buffer
	handler, recorder := newTestHandler(pty, &logs)

	handler.handle(bridge.Message{Data: `["paste","x"]`})
	handler.handle(bridge.Message{Data: "not json"})
	handler.handle(bridge.Message{Data: `["set_size",24]`})
	handler.handle(bridge.Message{Data: 42})

	if pty.Written() != "" || len(pty.resizes) != 0 {
		t.Errorf("bad frames reached the PTY: %q %+v", pty.Written(), pty.resizes)
	}
	if len(recorder.errors) != 0 || recorder.quits != 0 {
		t.Errorf("bad frames ended the session: %+v", recorder)
	}
	output := logs.String()
	for _, want := range []string{"type=paste", "type=int", "malformed frame"} {
		if !strings.Contains(output, want) {
			t.Errorf("log missing %q:\n%s", want, output)
		}
	}
}

func TestFrameHandlerQuit(t *testing.T) {
	pty := &fakePTY{}
	var logs bytes.Buffer
	handler, recorder := newTestHandler(pty, &logs)

	handler.handle(bridge.Message{Data: QuitMessage})
	if recorder.quits != 1 {
		t.Errorf("quits = %d, want 1", recorder.quits)
	}
	if pty.Written() != "" {
		t.Errorf("quit written to the PTY: %q", pty.Written())
	}
}

func TestFrameHandlerWriteFailure(t *testing.T) {
	pty := &fakePTY{writeErr: syscall.EIO}
	var logs bytes.Buffer
	handler, recorder := newTestHandler(pty, &logs)

	handler.handle(bridge.Message{Data: bridge.InputFrame("x")})
	if len(recorder.errors) != 1 || !errors.Is(recorder.errors[0], syscall.EIO) {
		t.Errorf("fail calls = %v, want one wrapping EIO", recorder.errors)
	}
}

type recordingSender struct {
	frames [][]byte
	err    error
}

func (s *recordingSender) SendBinary(data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, append([]byte(nil), data...))
	return nil
}

// chunkedReader returns its chunks one Read at a time, then err.
type chunkedReader struct {
	chunks []string
	err    error
}

func (r *chunkedReader) Read(buffer []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, r.err
	}
	count := copy(buffer, r.chunks[0])
	r.chunks = r.chunks[1:]
	return count, nil
}

func TestPumpOutputMirrorsAndSends(t *testing.T) {
	sender := &recordingSender{}
	var mirror bytes.Buffer
	reader := &chunkedReader{chunks: []string{"$ ", "ls\r\n"}, err: &os.PathError{Op: "read", Path: "/dev/ptmx", Err: syscall.EIO}}

	if err := pumpOutput(reader, sender, &mirror); err != nil {
		t.Fatalf("pumpOutput: %v", err)
	}
	if len(sender.frames) != 2 || string(sender.frames[0]) != "$ " || string(sender.frames[1]) != "ls\r\n" {
		t.Errorf("frames = %q", sender.frames)
	}
	if mirror.String() != "$ ls\r\n" {
		t.Errorf("mirror = %q", mirror.String())
	}
}

func TestPumpOutputNoMirror(t *testing.T) {
	sender := &recordingSender{}
	if err := pumpOutput(strings.NewReader("hello"), sender, nil); err != nil {
		t.Fatalf("pumpOutput: %v", err)
	}
	if len(sender.frames) != 1 || string(sender.frames[0]) != "hello" {
		t.Errorf("frames = %q", sender.frames)
	}
}

func TestPumpOutputErrors(t *testing.T) {
	sendFailure := errors.New("channel closed")
	err := pumpOutput(strings.NewReader("x"), &recordingSender{err: sendFailure}, nil)
	if !errors.Is(err, errChannelSend) || !errors.Is(err, sendFailure) {
		t.Errorf("send failure = %v", err)
	}

	readFailure := errors.New("disk on fire")
	err = pumpOutput(&chunkedReader{err: readFailure}, &recordingSender{}, nil)
	if !errors.Is(err, readFailure) || errors.Is(err, errChannelSend) {
		t.Errorf("read failure = %v", err)
	}
}

func TestClampUint16(t *testing.T) {
	for _, test := range []struct {
		in   int
		want uint16
	}{{-1, 0}, {0, 0}, {80, 80}, {70000, 0xffff}} {
		if got := clampUint16(test.in); got != test.want {
			t.Errorf("clampUint16(%d) = %d, want %d", test.in, got, test.want)
		}
	}
}

type fakeChannel struct {
	messages event.Registry[bridge.Message]
	closes   event.Registry[struct{}]

	output    chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{output: make(chan []byte, 256), closed: make(chan struct{})}
}

func (c *fakeChannel) SendBinary(data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.output <- append([]byte(nil), data...)
	return nil
}

func (c *fakeChannel) OnMessage(handler func(bridge.Message)) func() {
	return c.messages.Add(handler)
}

func (c *fakeChannel) OnClose(handler func()) func() {
	return c.closes.Add(func(struct{}) { handler() })
}

func (c *fakeChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closes.Emit(struct{}{})
	})
	return nil
}

// readOutputUntil collects output frames until they contain want.
func readOutputUntil(t *testing.T, channel *fakeChannel, want string) string {
	t.Helper()
	var collected strings.Builder
	deadline := time.After(10 * time.Second)
	for !strings.Contains(collected.String(), want) {
		select {
		case frame := <-channel.output:
			collected.Write(frame)
		case <-deadline:
			t.Fatalf("output %q never contained %q", collected.String(), want)
		}
	}
	return collected.String()
}

// waitForHandlers blocks until Serve has subscribed to channel.
func waitForHandlers(t *testing.T, channel *fakeChannel) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for channel.messages.Len() == 0 || channel.closes.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Serve never subscribed to the channel")
		}
		time.Sleep(time.Millisecond)
	}
}

func requirePTY(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/ptmx"); err != nil {
		t.Skipf("no PTY support: %v", err)
	}
}

func serveInBackground(t *testing.T, ctx context.Context, channel Channel, options Options) <-chan error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- Serve(ctx, channel, options) }()
	return result
}

func requireServeResult(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func TestServeCommandExit(t *testing.T) {
	requirePTY(t)
	channel := newFakeChannel()
	var mirror safeBuffer

	result := serveInBackground(t, context.Background(), channel, Options{
		Command: "echo webtty-host",
		Mirror:  true,
		Output:  &mirror,
	})
	readOutputUntil(t, channel, "webtty-host")

	if err := requireServeResult(t, result); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	select {
	case <-channel.closed:
	default:
		t.Error("channel not closed after the command exited")
	}
	if !strings.Contains(mirror.String(), "webtty-host") {
		t.Errorf("mirror = %q", mirror.String())
	}
}

func TestServeAppliesInputFrames(t *testing.T) {
	requirePTY(t)
	channel := newFakeChannel()

	result := serveInBackground(t, context.Background(), channel, Options{Command: "head -n 1"})
	waitForHandlers(t, channel)
	channel.messages.Emit(bridge.Message{Data: bridge.ResizeFrame(30, 100)})
	channel.messages.Emit(bridge.Message{Data: bridge.InputFrame("ping\n")})

	// The PTY echoes the line, then head prints it.
	output := readOutputUntil(t, channel, "ping")
	if err := requireServeResult(t, result); err != nil {
		t.Fatalf("Serve: %v (output %q)", err, output)
	}
}

func TestServeEndsOnChannelClose(t *testing.T) {
	requirePTY(t)
	channel := newFakeChannel()

	result := serveInBackground(t, context.Background(), channel, Options{Command: "cat"})
	waitForHandlers(t, channel)
	channel.Close()
	if err := requireServeResult(t, result); err != nil {
		t.Fatalf("Serve: %v", err)
	}
}

func TestServeEndsOnQuit(t *testing.T) {
	requirePTY(t)
	channel := newFakeChannel()

	result := serveInBackground(t, context.Background(), channel, Options{Command: "cat"})
	waitForHandlers(t, channel)
	channel.messages.Emit(bridge.Message{Data: QuitMessage})
	if err := requireServeResult(t, result); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	select {
	case <-channel.closed:
	default:
		t.Error("channel not closed after quit")
	}
}

func TestServeEndsOnCancel(t *testing.T) {
	requirePTY(t)
	channel := newFakeChannel()
	ctx, cancel := context.WithCancel(context.Background())

	result := serveInBackground(t, ctx, channel, Options{Command: "cat"})
	cancel()
	if err := requireServeResult(t, result); err != nil {
		t.Fatalf("Serve: %v", err)
	}
}

func TestServeStartFailure(t *testing.T) {
	requirePTY(t)
	channel := newFakeChannel()

	err := Serve(context.Background(), channel, Options{Command: "/nonexistent/webtty-command"})
	if err == nil {
		t.Fatal("Serve succeeded with a missing command")
	}
	select {
	case <-channel.closed:
	default:
		t.Error("channel not closed after a start failure")
	}
}

type safeBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *safeBuffer) Write(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(data)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}
