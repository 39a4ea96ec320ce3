// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport adapts pion/webrtc to the session layers above it.
//
// [NewPeerConnection] builds a PeerConnection from an [ICEConfig] with
// pion's internal logging routed into slog. Signaling is vanilla ICE:
// every candidate is gathered before a description leaves the process,
// so one offer token and one answer token are the whole exchange. The
// offering side calls [OpenDataChannel], then [CreateOffer], then
// [AcceptAnswer] once the answer token arrives. The answering side
// wraps its PeerConnection in a [Negotiator], which is what the
// bootstrap state machine drives.
//
// [DataChannel] wraps a pion data channel in the message-oriented shape
// the bridge and host expect: text frames arrive as strings, binary
// frames as byte slices, and any number of handlers may subscribe to
// messages, close, and errors, each removable on its own.
package transport
