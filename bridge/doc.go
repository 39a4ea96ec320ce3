// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge connects a terminal display to an open data channel.
//
// [Bridge.Attach] pairs a [Terminal] with a [Channel] and returns a
// [Session]. While attached:
//
//   - inbound messages are decoded to text and written to the terminal,
//     immediately or coalesced into one write per 10 ms burst
//   - terminal input is sent as ["stdin", data] frames
//   - terminal resizes are sent as ["set_size", rows, cols] frames
//
// Inbound text frames are used as is. Binary frames and deferred-read
// blobs go through one streaming UTF-8 decoder, so a multi-byte
// character split across two frames renders correctly and invalid
// bytes become U+FFFD. Blobs are read on their own goroutine; an
// ordered queue of slots holds later frames back until earlier reads
// finish, so display order always equals arrival order.
//
// A session ends when [Session.Detach] or [Bridge.Detach] is called, or
// when the channel reports close or error. Detaching writes whatever is
// still buffered, then removes every handler; nothing reaches the
// terminal afterwards.
//
// Terminal and Channel implementations are used as map keys and must
// be comparable, which pointer receivers always are.
package bridge
