// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import "fmt"

// UnsupportedFrameError reports a message the bridge could not turn
// into text, or a control frame with an unknown tag. The message is
// dropped; the session continues.
type UnsupportedFrameError struct {
	// Type describes the message: a Go type for unclassifiable
	// payloads, "blob" for failed blob reads, or the frame tag.
	Type string

	// Err is the underlying failure, if any.
	Err error
}

func (e *UnsupportedFrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unsupported frame %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("unsupported frame %s", e.Type)
}

func (e *UnsupportedFrameError) Unwrap() error { return e.Err }
