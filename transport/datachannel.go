// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/webtty/bridge"
	"github.com/bureau-foundation/webtty/lib/event"
)

var _ bridge.Channel = (*DataChannel)(nil)

// DataChannel wraps a pion data channel. pion holds one handler per
// event; DataChannel installs its own and fans out to registries.
type DataChannel struct {
	channel *webrtc.DataChannel
	logger  *slog.Logger

	messages event.Registry[bridge.Message]
	closes   event.Registry[struct{}]
	errors   event.Registry[error]

	opened    chan struct{}
	openOnce  sync.Once
	closed    chan struct{}
	closeOnce sync.Once
}

// NewDataChannel wraps dc and takes over its pion callbacks.
func NewDataChannel(dc *webrtc.DataChannel, logger *slog.Logger) *DataChannel {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	channel := &DataChannel{
		channel: dc,
		logger:  logger.With("label", dc.Label()),
		opened:  make(chan struct{}),
		closed:  make(chan struct{}),
	}

	dc.OnOpen(func() {
		channel.logger.Debug("data channel opened")
		channel.openOnce.Do(func() { close(channel.opened) })
	})
	dc.OnClose(func() {
		channel.logger.Debug("data channel closed")
		channel.markClosed()
	})
	dc.OnError(func(err error) {
		channel.logger.Debug("data channel error", "error", err)
		channel.errors.Emit(err)
	})
	dc.OnMessage(func(message webrtc.DataChannelMessage) {
		if message.IsString {
			channel.messages.Emit(bridge.Message{Data: string(message.Data)})
			return
		}
		channel.messages.Emit(bridge.Message{Data: message.Data})
	})
	return channel
}

func (c *DataChannel) markClosed() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closes.Emit(struct{}{})
	})
}

// Label returns the channel label.
func (c *DataChannel) Label() string {
	return c.channel.Label()
}

// SendText sends a text frame.
func (c *DataChannel) SendText(text string) error {
	return c.channel.SendText(text)
}

// SendBinary sends a binary frame.
func (c *DataChannel) SendBinary(data []byte) error {
	return c.channel.Send(data)
}

func (c *DataChannel) OnMessage(handler func(bridge.Message)) (remove func()) {
	return c.messages.Add(handler)
}

func (c *DataChannel) OnClose(handler func()) (remove func()) {
	return c.closes.Add(func(struct{}) { handler() })
}

func (c *DataChannel) OnError(handler func(error)) (remove func()) {
	return c.errors.Add(handler)
}

// Opened is closed once the channel is open.
func (c *DataChannel) Opened() <-chan struct{} {
	return c.opened
}

// Closed is closed once the channel has closed, from either end.
func (c *DataChannel) Closed() <-chan struct{} {
	return c.closed
}

// Close closes the channel. Close handlers run once the close
// completes.
func (c *DataChannel) Close() error {
	return c.channel.Close()
}
