// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootstrap runs the answering side of session setup: it takes
// the host's offer token, drives the peer connection through
// SetRemoteDescription, CreateAnswer, and SetLocalDescription, and
// once ICE gathering completes delivers the answer token, either by
// showing it for the user to carry back or by uploading it to the
// relay location the offer named.
//
// State moves AwaitingToken -> Negotiating -> AwaitingAnswerDelivery
// -> Delivered, with Failed reachable from anywhere when ICE fails.
// A token that cannot be decoded or negotiated leaves the bootstrap in
// AwaitingToken and prompts for another; once negotiation has begun,
// further tokens are ignored.
//
// pion delivers negotiator events on its own goroutines. A Bootstrap
// serializes every transition behind one mutex and calls its
// collaborators outside it, so a collaborator may call back into the
// Bootstrap.
package bootstrap
