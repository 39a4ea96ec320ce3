// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package signaling converts session descriptors to and from the
// printable tokens that two webtty peers exchange out of band.
//
// A token is built in four stages:
//
//  1. Structure: the descriptor is encoded as a flat CBOR map with the
//     keys "sdp", "relay", and "reply" (lib/codec, deterministic).
//  2. Compression: zstd by default, or lz4, deflate, or none.
//  3. Cipher (optional): the compressed bytes are sealed with age, to a
//     passphrase or to an X25519 reply key (lib/sealed).
//  4. Printable: a one-byte header is prepended and the result is
//     base58 encoded, so a token survives copy/paste, URL fragments,
//     and chat clients without escaping.
//
// The header byte carries the format version in its high nibble, the
// sealed flag in bit 3, and the compression tag in bits 0-2. [Decode]
// reads the header first, so a token always says how to undo itself.
//
// Decoding failures are reported as [*DecodeError] naming the stage
// that rejected the input. When a sealed token cannot be opened with
// the configured keys the stage is [StageDecrypt] and the wrapped error
// is a [*DecryptError].
package signaling
