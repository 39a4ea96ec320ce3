// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/webtty/lib/netutil"
)

// readBufferSize bounds one binary output frame.
const readBufferSize = 4096

// errChannelSend is wrapped by pumpOutput when the channel rejects a
// frame, which happens when the client has gone away.
var errChannelSend = errors.New("sending output")

// binarySender is the outbound half of the channel.
type binarySender interface {
	SendBinary(data []byte) error
}

// pumpOutput copies PTY output to channel as binary frames, and to
// mirror when it is non-nil, until the PTY reports end of stream or a
// send fails. End of stream (EIO once the command exits) returns nil.
func pumpOutput(pty io.Reader, channel binarySender, mirror io.Writer) error {
	buffer := make([]byte, readBufferSize)
	for {
		count, readErr := pty.Read(buffer)
		if count > 0 {
			chunk := buffer[:count]
			if mirror != nil {
				// The local view is best effort.
				_, _ = mirror.Write(chunk)
			}
			// pion copies the payload before Send returns.
			if err := channel.SendBinary(chunk); err != nil {
				return fmt.Errorf("%w: %w", errChannelSend, err)
			}
		}
		if readErr != nil {
			if netutil.IsExpectedCloseError(readErr) {
				return nil
			}
			return fmt.Errorf("reading PTY: %w", readErr)
		}
	}
}
