// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides the I/O helpers shared by webtty's relay
// client and PTY host.
//
// HTTP body helpers (ReadBody, ErrorBody) bound reads at MaxBodySize
// so a misbehaving relay cannot exhaust memory. A relay holds exactly
// one token, which is a few kilobytes.
//
// IsExpectedCloseError classifies errors that occur during normal
// teardown of a PTY or data channel copy loop.
package netutil

import (
	"fmt"
	"io"
)

// MaxBodySize bounds relay response reads: 1 MiB, far above any token.
const MaxBodySize int64 = 1 << 20

// ReadBody reads an HTTP response body up to MaxBodySize bytes. A
// longer body is an error rather than a silent truncation, since a
// truncated token would only fail later with a less useful message.
func ReadBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(data)) > MaxBodySize {
		return nil, fmt.Errorf("response body exceeds %d bytes", MaxBodySize)
	}
	return data, nil
}

// ErrorBody reads an HTTP error response body for diagnostic messages.
// Read errors are ignored: a partial body is still useful. At most
// 512 bytes are kept.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 512))
	return string(data)
}
