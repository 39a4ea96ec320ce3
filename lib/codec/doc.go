// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration used for
// webtty's compact binary structures, chiefly the session descriptor
// carried inside a signaling token.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same descriptor always produces the same bytes, which keeps token
// fingerprints stable between runs.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types serialized only through this package carry `cbor` struct tags.
package codec
