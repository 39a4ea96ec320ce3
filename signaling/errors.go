// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"errors"
	"fmt"
)

// Stage names the decoding step that rejected a token.
type Stage string

const (
	// StageText: the token is empty, too long, or contains characters
	// outside the base58 alphabet.
	StageText Stage = "text"

	// StageHeader: the format version or compression tag is unknown.
	StageHeader Stage = "header"

	// StageDecompress: the compressed stream is corrupt, truncated, or
	// expands past the size limit.
	StageDecompress Stage = "decompress"

	// StageStructure: the payload is not a valid descriptor map, lacks
	// the sdp key, or carries an invalid relay location or reply key.
	StageStructure Stage = "structure"

	// StageDecrypt: the sealed flag is set and the payload could not be
	// opened. Err is a *DecryptError.
	StageDecrypt Stage = "decrypt"
)

// DecodeError reports a token that could not be decoded.
type DecodeError struct {
	Stage Stage
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding token (%s): %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecryptError reports a sealed token that could not be opened: no key
// was configured, or the passphrase or identity does not match. Decode
// returns it wrapped in a *DecodeError with StageDecrypt.
type DecryptError struct {
	Err error
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("opening sealed token: %v", e.Err)
}

func (e *DecryptError) Unwrap() error { return e.Err }

// ErrInvalidRelayLocation is wrapped by errors for relay locations
// outside [A-Za-z0-9_-]{1,128}.
var ErrInvalidRelayLocation = errors.New("invalid relay location")

func decodeError(stage Stage, format string, args ...any) *DecodeError {
	return &DecodeError{Stage: stage, Err: fmt.Errorf(format, args...)}
}
