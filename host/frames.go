// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/webtty/bridge"
)

// QuitMessage is the text frame a client sends to end the session.
const QuitMessage = "quit"

// ptyWriter is the part of the PTY master that inbound frames act on.
type ptyWriter interface {
	Write(data []byte) (int, error)
	Resize(rows, cols, width, height int) error
}

// frameHandler applies inbound channel messages to the PTY.
type frameHandler struct {
	pty    ptyWriter
	logger *slog.Logger

	// quit is called for a QuitMessage frame.
	quit func()

	// fail is called when the PTY rejects a write or resize. The PTY
	// is gone at that point, so the session is over.
	fail func(error)
}

func (h *frameHandler) handle(message bridge.Message) {
	switch data := message.Data.(type) {
	case string:
		h.handleText(data)
	case []byte:
		h.write(data)
	default:
		h.drop(&bridge.UnsupportedFrameError{Type: fmt.Sprintf("%T", data)})
	}
}

func (h *frameHandler) handleText(text string) {
	if text == QuitMessage {
		h.logger.Info("client ended the session")
		h.quit()
		return
	}

	frame, err := bridge.ParseFrame(text)
	if err != nil {
		h.drop(err)
		return
	}
	switch frame.Kind {
	case bridge.FrameInput:
		h.write([]byte(frame.Data))
	case bridge.FrameResize:
		if err := h.pty.Resize(frame.Rows, frame.Cols, frame.Width, frame.Height); err != nil {
			h.fail(fmt.Errorf("resizing PTY to %dx%d: %w", frame.Rows, frame.Cols, err))
			return
		}
		h.logger.Debug("PTY resized", "rows", frame.Rows, "cols", frame.Cols)
	}
}

func (h *frameHandler) write(data []byte) {
	if len(data) == 0 {
		return
	}
	if _, err := h.pty.Write(data); err != nil {
		h.fail(fmt.Errorf("writing to PTY: %w", err))
	}
}

func (h *frameHandler) drop(err error) {
	var unsupported *bridge.UnsupportedFrameError
	if errors.As(err, &unsupported) {
		h.logger.Warn("dropping unsupported frame", "type", unsupported.Type)
		return
	}
	h.logger.Warn("dropping malformed frame", "error", err)
}
