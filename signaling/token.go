// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/bureau-foundation/webtty/lib/codec"
	"github.com/bureau-foundation/webtty/lib/sealed"
)

// SessionDescriptor is what one peer tells the other to start a
// session. It is a value: Encode and Decode never retain it.
type SessionDescriptor struct {
	// SDP is the session description, passed through verbatim.
	SDP string

	// RelayLocation, when non-empty, is the relay path where the
	// answer to this offer must be deposited.
	RelayLocation string

	// ReplyKey, when non-empty, is an age X25519 recipient (age1...).
	// The answer deposited at RelayLocation must be sealed to it.
	ReplyKey string
}

// wireDescriptor is the CBOR structure inside a token. SDP is a
// pointer so that a missing key is distinguishable from an empty SDP.
type wireDescriptor struct {
	SDP   *string `cbor:"sdp"`
	Relay string  `cbor:"relay,omitempty"`
	Reply string  `cbor:"reply,omitempty"`
}

// formatVersion is the header's high nibble.
const formatVersion = 1

const (
	headerSealed          = 0x08
	headerCompressionMask = 0x07
)

// maxTokenLength bounds the text Decode will attempt. base58 decoding
// is quadratic in input length.
const maxTokenLength = 64 << 10

var relayLocationPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidRelayLocation reports whether location may be used as a relay
// path: 1 to 128 characters from [A-Za-z0-9_-].
func ValidRelayLocation(location string) bool {
	return relayLocationPattern.MatchString(location)
}

// EncodeOptions configures Encode. The zero value encodes without
// compression or sealing; DefaultEncodeOptions selects zstd.
type EncodeOptions struct {
	Compression Compression

	// Passphrase seals the token with an scrypt-derived key.
	Passphrase string

	// Recipient seals the token to an age X25519 public key. At most
	// one of Passphrase and Recipient may be set.
	Recipient string
}

// DefaultEncodeOptions returns zstd compression without sealing.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{Compression: CompressionZstd}
}

// DecodeOptions supplies the keys that may open a sealed token.
// Unsealed tokens decode regardless of these fields.
type DecodeOptions struct {
	Passphrase string

	// Identities are AGE-SECRET-KEY-1... strings.
	Identities []string
}

// Encode turns a descriptor into a token. It fails only for an invalid
// relay location or reply key, an unknown compression, or a sealing
// failure.
func Encode(descriptor SessionDescriptor, options EncodeOptions) (string, error) {
	if descriptor.RelayLocation != "" && !ValidRelayLocation(descriptor.RelayLocation) {
		return "", fmt.Errorf("encoding token: %w: %q", ErrInvalidRelayLocation, descriptor.RelayLocation)
	}
	if descriptor.ReplyKey != "" {
		if err := sealed.ParsePublicKey(descriptor.ReplyKey); err != nil {
			return "", fmt.Errorf("encoding token: reply key: %w", err)
		}
	}
	if !options.Compression.valid() {
		return "", fmt.Errorf("encoding token: unsupported compression %s", options.Compression)
	}
	if options.Passphrase != "" && options.Recipient != "" {
		return "", errors.New("encoding token: set at most one of passphrase and recipient")
	}

	sdp := descriptor.SDP
	structure, err := codec.Marshal(wireDescriptor{
		SDP:   &sdp,
		Relay: descriptor.RelayLocation,
		Reply: descriptor.ReplyKey,
	})
	if err != nil {
		return "", fmt.Errorf("encoding token structure: %w", err)
	}

	payload, used, err := compress(structure, options.Compression)
	if err != nil {
		return "", fmt.Errorf("compressing token: %w", err)
	}
	header := byte(formatVersion<<4) | byte(used)

	switch {
	case options.Recipient != "":
		payload, err = sealed.SealToRecipient(payload, options.Recipient)
		header |= headerSealed
	case options.Passphrase != "":
		payload, err = sealed.SealWithPassphrase(payload, options.Passphrase)
		header |= headerSealed
	}
	if err != nil {
		return "", fmt.Errorf("sealing token: %w", err)
	}

	raw := make([]byte, 0, 1+len(payload))
	raw = append(raw, header)
	raw = append(raw, payload...)
	return base58.Encode(raw), nil
}

// Decode turns a token back into a descriptor. Surrounding whitespace
// is ignored. Every error is a *DecodeError; a sealed token that does
// not open also matches *DecryptError through errors.As.
func Decode(token string, options DecodeOptions) (SessionDescriptor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return SessionDescriptor{}, decodeError(StageText, "token is empty")
	}
	if len(token) > maxTokenLength {
		return SessionDescriptor{}, decodeError(StageText, "token is %d characters, limit is %d", len(token), maxTokenLength)
	}
	raw, err := base58.Decode(token)
	if err != nil {
		return SessionDescriptor{}, &DecodeError{Stage: StageText, Err: err}
	}
	if len(raw) == 0 {
		return SessionDescriptor{}, decodeError(StageText, "token decodes to no bytes")
	}

	header, payload := raw[0], raw[1:]
	if version := header >> 4; version != formatVersion {
		return SessionDescriptor{}, decodeError(StageHeader, "unsupported format version %d", version)
	}
	compression := Compression(header & headerCompressionMask)
	if !compression.valid() {
		return SessionDescriptor{}, decodeError(StageHeader, "unknown compression tag %d", uint8(compression))
	}

	if header&headerSealed != 0 {
		payload, err = sealed.Open(payload, sealed.Keys{
			Passphrase:  options.Passphrase,
			PrivateKeys: options.Identities,
		}, maxDecompressedSize)
		if err != nil {
			return SessionDescriptor{}, &DecodeError{Stage: StageDecrypt, Err: &DecryptError{Err: err}}
		}
	}

	structure, err := decompress(payload, compression)
	if err != nil {
		return SessionDescriptor{}, &DecodeError{Stage: StageDecompress, Err: err}
	}

	var wire wireDescriptor
	if err := codec.Unmarshal(structure, &wire); err != nil {
		return SessionDescriptor{}, &DecodeError{Stage: StageStructure, Err: err}
	}
	if wire.SDP == nil {
		return SessionDescriptor{}, decodeError(StageStructure, "missing sdp")
	}
	if wire.Relay != "" && !ValidRelayLocation(wire.Relay) {
		return SessionDescriptor{}, &DecodeError{Stage: StageStructure, Err: fmt.Errorf("%w: %q", ErrInvalidRelayLocation, wire.Relay)}
	}
	if wire.Reply != "" {
		if err := sealed.ParsePublicKey(wire.Reply); err != nil {
			return SessionDescriptor{}, &DecodeError{Stage: StageStructure, Err: err}
		}
	}

	return SessionDescriptor{
		SDP:           *wire.SDP,
		RelayLocation: wire.Relay,
		ReplyKey:      wire.Reply,
	}, nil
}
