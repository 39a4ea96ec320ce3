// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/webtty/lib/clock"
)

// FlushInterval is the buffered-mode coalescing window.
const FlushInterval = 10 * time.Millisecond

// Terminal is the display side of a session.
type Terminal interface {
	// Write displays text.
	Write(text string)

	// Reset clears the display.
	Reset()

	// OnInput registers a handler for keystrokes and returns a
	// function that removes it.
	OnInput(handler func(data string)) (remove func())

	// OnResize registers a handler for size changes and returns a
	// function that removes it.
	OnResize(handler func(rows, cols int)) (remove func())
}

// Sizer is implemented by terminals that know their current size.
// Attach sends it as the first set_size frame.
type Sizer interface {
	Size() (rows, cols int, err error)
}

// Channel is the transport side of a session.
type Channel interface {
	// SendText sends a text frame.
	SendText(text string) error

	// OnMessage, OnClose, and OnError register handlers and return
	// functions that remove them.
	OnMessage(handler func(Message)) (remove func())
	OnClose(handler func()) (remove func())
	OnError(handler func(error)) (remove func())
}

// Message is one inbound frame. Data is a string for text frames, a
// []byte for binary frames, or an io.Reader for a blob whose bytes are
// read later. Anything else is unsupported.
type Message struct {
	Data any
}

// Options configures a Bridge.
type Options struct {
	// Logger receives dropped-frame and send-failure records.
	// Default: discard.
	Logger *slog.Logger

	// Clock schedules buffered flushes. Default: clock.Real().
	Clock clock.Clock
}

// AttachOptions configures one session.
type AttachOptions struct {
	// Bidirectional forwards terminal input to the channel.
	Bidirectional bool

	// Buffered coalesces output into one write per FlushInterval.
	Buffered bool
}

// DefaultAttachOptions returns bidirectional, unbuffered.
func DefaultAttachOptions() AttachOptions {
	return AttachOptions{Bidirectional: true}
}

// Bridge tracks the sessions it has attached, so a terminal or channel
// can be detached without holding on to the Session.
type Bridge struct {
	logger *slog.Logger
	clock  clock.Clock

	mu         sync.Mutex
	byChannel  map[Channel]*Session
	byTerminal map[Terminal]*Session
}

// New creates a Bridge.
func New(options Options) *Bridge {
	bridge := &Bridge{
		logger:     options.Logger,
		clock:      options.Clock,
		byChannel:  make(map[Channel]*Session),
		byTerminal: make(map[Terminal]*Session),
	}
	if bridge.logger == nil {
		bridge.logger = slog.New(slog.DiscardHandler)
	}
	if bridge.clock == nil {
		bridge.clock = clock.Real()
	}
	return bridge
}

// Attach starts a session between terminal and channel. A session
// already using either of them is detached first, so each channel and
// each terminal belongs to at most one session.
func (b *Bridge) Attach(terminal Terminal, channel Channel, options AttachOptions) *Session {
	b.mu.Lock()
	previous := []*Session{b.byChannel[channel], b.byTerminal[terminal]}
	b.mu.Unlock()
	for _, session := range previous {
		if session != nil {
			session.Detach()
		}
	}

	session := &Session{
		bridge:   b,
		terminal: terminal,
		channel:  channel,
		options:  options,
		logger:   b.logger,
		clock:    b.clock,
		decoder:  newStreamDecoder(),
		attached: true,
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	b.byChannel[channel] = session
	b.byTerminal[terminal] = session
	b.mu.Unlock()

	session.register()
	return session
}

// Detach ends the session pairing terminal with channel. A nil channel
// means whichever session terminal belongs to. Unknown pairs and
// already-detached sessions are a no-op.
func (b *Bridge) Detach(terminal Terminal, channel Channel) {
	b.mu.Lock()
	var session *Session
	if channel == nil {
		session = b.byTerminal[terminal]
	} else if candidate := b.byChannel[channel]; candidate != nil && candidate.terminal == terminal {
		session = candidate
	}
	b.mu.Unlock()

	if session != nil {
		session.Detach()
	}
}

// Session returns the session channel belongs to, or nil.
func (b *Bridge) Session(channel Channel) *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.byChannel[channel]
}

// forget drops session from the registry if it is still the recorded
// session for its terminal and channel.
func (b *Bridge) forget(session *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.byChannel[session.channel] == session {
		delete(b.byChannel, session.channel)
	}
	if b.byTerminal[session.terminal] == session {
		delete(b.byTerminal, session.terminal)
	}
}
