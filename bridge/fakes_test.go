// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"io"
	"sync"

	"github.com/bureau-foundation/webtty/lib/event"
)

type resize struct{ rows, cols int }

type fakeTerminal struct {
	mu     sync.Mutex
	writes []string
	resets int

	input   event.Registry[string]
	resizes event.Registry[resize]
}

func (f *fakeTerminal) Write(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, text)
}

func (f *fakeTerminal) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *fakeTerminal) OnInput(handler func(string)) func() {
	return f.input.Add(handler)
}

func (f *fakeTerminal) OnResize(handler func(rows, cols int)) func() {
	return f.resizes.Add(func(size resize) { handler(size.rows, size.cols) })
}

func (f *fakeTerminal) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeTerminal) Output() string {
	var output string
	for _, write := range f.Writes() {
		output += write
	}
	return output
}

func (f *fakeTerminal) handlerCount() int {
	return f.input.Len() + f.resizes.Len()
}

// sizedTerminal also reports a size.
type sizedTerminal struct {
	fakeTerminal
	rows, cols int
	err        error
}

func (s *sizedTerminal) Size() (int, int, error) {
	return s.rows, s.cols, s.err
}

type fakeChannel struct {
	mu      sync.Mutex
	sent    []string
	sendErr error

	messages event.Registry[Message]
	closes   event.Registry[struct{}]
	errs     event.Registry[error]
}

func (f *fakeChannel) SendText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeChannel) OnMessage(handler func(Message)) func() { return f.messages.Add(handler) }

func (f *fakeChannel) OnClose(handler func()) func() {
	return f.closes.Add(func(struct{}) { handler() })
}

func (f *fakeChannel) OnError(handler func(error)) func() { return f.errs.Add(handler) }

func (f *fakeChannel) deliver(data any) { f.messages.Emit(Message{Data: data}) }

func (f *fakeChannel) close() { f.closes.Emit(struct{}{}) }

func (f *fakeChannel) fail() { f.errs.Emit(errors.New("sctp: association closed")) }

func (f *fakeChannel) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeChannel) handlerCount() int {
	return f.messages.Len() + f.closes.Len() + f.errs.Len()
}

// gatedReader blocks Read until release is closed.
type gatedReader struct {
	release chan struct{}
	data    []byte
	err     error
	done    bool
}

func newGatedReader(data string) *gatedReader {
	return &gatedReader{release: make(chan struct{}), data: []byte(data)}
}

func (g *gatedReader) Read(buffer []byte) (int, error) {
	<-g.release
	if g.err != nil {
		return 0, g.err
	}
	if g.done {
		return 0, io.EOF
	}
	g.done = true
	return copy(buffer, g.data), nil
}
