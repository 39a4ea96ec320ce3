// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FrameKind is the tag in position 0 of a control frame.
type FrameKind string

const (
	// FrameInput carries keystrokes from the client to the host.
	// "data" is accepted as a synonym on input.
	FrameInput FrameKind = "stdin"

	// FrameResize carries the client terminal size.
	FrameResize FrameKind = "set_size"
)

const frameInputAlias = "data"

// Frame is a parsed control frame.
type Frame struct {
	Kind FrameKind

	// Data is the input payload for FrameInput.
	Data string

	// Rows and Cols are the character size for FrameResize. Width and
	// Height are the optional pixel size from the five-element form.
	Rows, Cols    int
	Width, Height int
}

// ErrMalformedFrame is wrapped by ParseFrame errors for text that is
// not a well-formed frame of a known kind.
var ErrMalformedFrame = errors.New("malformed frame")

// InputFrame returns the JSON frame carrying terminal input.
func InputFrame(data string) string {
	return mustMarshal([]any{FrameInput, data})
}

// ResizeFrame returns the JSON frame carrying a terminal size.
func ResizeFrame(rows, cols int) string {
	return mustMarshal([]any{FrameResize, rows, cols})
}

func mustMarshal(value []any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		// Strings and ints always marshal.
		panic("bridge: marshaling frame: " + err.Error())
	}
	return string(encoded)
}

// ParseFrame parses a text message as a control frame. Unknown tags
// return *UnsupportedFrameError; other problems wrap ErrMalformedFrame.
func ParseFrame(text string) (Frame, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elements); err != nil || len(elements) == 0 {
		return Frame{}, fmt.Errorf("%w: not a JSON array", ErrMalformedFrame)
	}
	var tag string
	if err := json.Unmarshal(elements[0], &tag); err != nil {
		return Frame{}, fmt.Errorf("%w: tag is not a string", ErrMalformedFrame)
	}

	switch tag {
	case string(FrameInput), frameInputAlias:
		if len(elements) != 2 {
			return Frame{}, fmt.Errorf("%w: %s frame has %d elements, want 2", ErrMalformedFrame, tag, len(elements))
		}
		var data string
		if err := json.Unmarshal(elements[1], &data); err != nil {
			return Frame{}, fmt.Errorf("%w: %s payload is not a string", ErrMalformedFrame, tag)
		}
		return Frame{Kind: FrameInput, Data: data}, nil

	case string(FrameResize):
		if len(elements) != 3 && len(elements) != 5 {
			return Frame{}, fmt.Errorf("%w: set_size frame has %d elements, want 3 or 5", ErrMalformedFrame, len(elements))
		}
		numbers := make([]int, len(elements)-1)
		for index, element := range elements[1:] {
			if err := json.Unmarshal(element, &numbers[index]); err != nil || numbers[index] < 0 {
				return Frame{}, fmt.Errorf("%w: set_size element %d is not a non-negative integer", ErrMalformedFrame, index+1)
			}
		}
		frame := Frame{Kind: FrameResize, Rows: numbers[0], Cols: numbers[1]}
		if len(numbers) == 4 {
			frame.Width, frame.Height = numbers[2], numbers[3]
		}
		return frame, nil

	default:
		return Frame{}, &UnsupportedFrameError{Type: tag}
	}
}
