// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// streamDecoder decodes UTF-8 across frame boundaries. An incomplete
// sequence at the end of one frame is held and completed by the next;
// invalid bytes become U+FFFD. Not safe for concurrent use.
type streamDecoder struct {
	transformer transform.Transformer
	pending     []byte
}

func newStreamDecoder() *streamDecoder {
	return &streamDecoder{transformer: unicode.UTF8.NewDecoder()}
}

// decode returns the text completed by input.
func (d *streamDecoder) decode(input []byte) string {
	source := input
	if len(d.pending) > 0 {
		source = append(d.pending, input...)
		d.pending = nil
	}

	// An invalid byte expands to the 3-byte replacement character and
	// the transformer wants UTFMax bytes of headroom.
	destination := make([]byte, 3*len(source)+4)
	var output []byte
	for len(source) > 0 {
		written, consumed, err := d.transformer.Transform(destination, source, false)
		output = append(output, destination[:written]...)
		source = source[consumed:]
		switch {
		case err == nil:
		case errors.Is(err, transform.ErrShortDst):
			continue
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), source...)
			return string(output)
		default:
			return string(output)
		}
	}
	return string(output)
}

// flush returns any held incomplete sequence as replacement characters
// and resets the decoder.
func (d *streamDecoder) flush() string {
	defer d.transformer.Reset()
	if len(d.pending) == 0 {
		return ""
	}
	source := d.pending
	d.pending = nil
	destination := make([]byte, 3*len(source)+4)
	written, _, _ := d.transformer.Transform(destination, source, true)
	return string(destination[:written])
}
