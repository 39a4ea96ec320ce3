// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package host runs the offering side of a terminal session: a command
// on a fresh PTY, its output streamed over the data channel as binary
// frames, and the client's stdin and set_size frames applied to the
// PTY.
//
// [Serve] owns the PTY and the command for the life of one channel.
// The session ends when the command exits (the PTY master reads EIO),
// the channel closes, the client sends "quit", or ctx is cancelled. The
// host closes the channel on the way out so the client sees the end of
// the session.
package host
