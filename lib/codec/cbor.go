// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// maxNestedLevels bounds decoder recursion. Signaling structures are
// flat maps, so anything deeper is malformed input.
const maxNestedLevels = 8

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		MaxNestedLevels: maxNestedLevels,
		// Duplicate keys in a descriptor would make "which sdp wins"
		// depend on decoder order.
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
		// A token is a single data item. Trailing bytes mean the
		// decompressed stream was not produced by Marshal.
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes exactly one CBOR data item from data into v.
// Unknown map keys and trailing bytes are errors.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
