// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/bureau-foundation/webtty/lib/clock"
)

// Session is one terminal attached to one channel.
type Session struct {
	bridge   *Bridge
	terminal Terminal
	channel  Channel
	options  AttachOptions
	logger   *slog.Logger
	clock    clock.Clock

	mu           sync.Mutex
	attached     bool
	decoder      *streamDecoder
	queue        []*slot
	outputBuffer strings.Builder
	flushTimer   *clock.Timer // non-nil while a flush is scheduled
	removers     []func()
	done         chan struct{}
}

// slot is one inbound message waiting its turn for display.
type slot struct {
	ready   bool
	text    string // text frames
	binary  []byte // binary frames and blobs
	isText  bool
	dropped bool
}

func (s *Session) register() {
	removers := []func(){
		s.channel.OnMessage(s.receive),
		s.channel.OnClose(func() {
			s.logger.Debug("channel closed, detaching")
			s.Detach()
		}),
		s.channel.OnError(func(err error) {
			s.logger.Warn("channel error, detaching", "error", err)
			s.Detach()
		}),
	}
	if s.options.Bidirectional {
		removers = append(removers, s.terminal.OnInput(s.forwardInput))
	}
	removers = append(removers, s.terminal.OnResize(s.forwardResize))

	s.mu.Lock()
	if !s.attached {
		// Detached while registering: undo immediately.
		s.mu.Unlock()
		for _, remove := range removers {
			remove()
		}
		return
	}
	s.removers = removers
	s.mu.Unlock()

	if sizer, ok := s.terminal.(Sizer); ok {
		rows, cols, err := sizer.Size()
		if err != nil {
			s.logger.Debug("reading initial terminal size", "error", err)
			return
		}
		s.forwardResize(rows, cols)
	}
}

// Attached reports whether the session is still live.
func (s *Session) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// Done is closed once the session has detached.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Detach writes any buffered output, including an incomplete trailing
// UTF-8 sequence as U+FFFD, stops the flush timer, and
// removes every handler. Safe to call more than once and from any
// goroutine, including from inside a channel handler.
func (s *Session) Detach() {
	s.mu.Lock()
	if !s.attached {
		s.mu.Unlock()
		return
	}
	s.attached = false
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	if tail := s.decoder.flush(); tail != "" {
		s.outputBuffer.WriteString(tail)
	}
	if s.outputBuffer.Len() > 0 {
		s.terminal.Write(s.outputBuffer.String())
		s.outputBuffer.Reset()
	}
	s.queue = nil
	removers := s.removers
	s.removers = nil
	s.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
	s.bridge.forget(s)
	close(s.done)
}

// receive handles one inbound message in arrival order.
func (s *Session) receive(message Message) {
	var entry *slot
	var blob io.Reader

	switch data := message.Data.(type) {
	case string:
		entry = &slot{ready: true, text: data, isText: true}
	case []byte:
		entry = &slot{ready: true, binary: append([]byte(nil), data...)}
	case io.Reader:
		entry = &slot{}
		blob = data
	default:
		s.logger.Warn("dropping inbound message",
			"error", &UnsupportedFrameError{Type: fmt.Sprintf("%T", message.Data)})
		return
	}

	s.mu.Lock()
	if !s.attached {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, entry)
	if blob == nil {
		s.drainLocked()
	}
	s.mu.Unlock()

	if blob != nil {
		go s.readBlob(entry, blob)
	}
}

// readBlob reads a deferred blob off the delivery path, then releases
// its slot.
func (s *Session) readBlob(entry *slot, blob io.Reader) {
	data, err := io.ReadAll(blob)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Warn("dropping inbound message",
			"error", &UnsupportedFrameError{Type: "blob", Err: err})
		entry.dropped = true
	}
	entry.binary = data
	entry.ready = true
	if s.attached {
		s.drainLocked()
	}
}

// drainLocked displays every ready slot at the head of the queue.
// Binary slots are decoded here, in order, so the decoder sees bytes
// in arrival order whatever order blob reads finish in.
func (s *Session) drainLocked() {
	for len(s.queue) > 0 && s.queue[0].ready {
		entry := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]

		switch {
		case entry.dropped:
		case entry.isText:
			s.displayLocked(entry.text)
		default:
			s.displayLocked(s.decoder.decode(entry.binary))
		}
	}
}

func (s *Session) displayLocked(text string) {
	if text == "" {
		return
	}
	if !s.options.Buffered {
		s.terminal.Write(text)
		return
	}
	s.outputBuffer.WriteString(text)
	if s.flushTimer == nil {
		s.flushTimer = s.clock.AfterFunc(FlushInterval, s.flush)
	}
}

// flush writes the buffered output in one call.
func (s *Session) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushTimer = nil
	if !s.attached || s.outputBuffer.Len() == 0 {
		return
	}
	text := s.outputBuffer.String()
	s.outputBuffer.Reset()
	s.terminal.Write(text)
}

func (s *Session) forwardInput(data string) {
	s.send(InputFrame(data))
}

func (s *Session) forwardResize(rows, cols int) {
	s.send(ResizeFrame(rows, cols))
}

func (s *Session) send(frame string) {
	if !s.Attached() {
		return
	}
	if err := s.channel.SendText(frame); err != nil {
		s.logger.Warn("sending frame", "error", err)
	}
}
