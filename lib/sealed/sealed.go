// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed wraps filippo.io/age for the confidentiality stage of
// webtty's signaling tokens. A token payload is sealed either to a
// shared passphrase (age scrypt recipient) or to the X25519 reply key
// that a host advertises in its offer, and opened with the matching
// passphrase or identity.
//
// Ciphertext is raw binary age output. The signaling codec applies
// its own printable transform, so no armor or base64 is added here.
package sealed

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
)

// ScryptWorkFactor is the log2 scrypt cost used for passphrase-sealed
// tokens. Both sides pay it once per token, interactively.
const ScryptWorkFactor = 15

// ErrNoKey is returned by Open when neither a passphrase nor an
// identity was supplied.
var ErrNoKey = errors.New("sealed: no passphrase or identity configured")

// Keypair is an age X25519 keypair in its string forms.
type Keypair struct {
	// PrivateKey is the AGE-SECRET-KEY-1... identity. It lives only in
	// the process that generated it and is never put into a token.
	PrivateKey string

	// PublicKey is the age1... recipient, safe to publish in an offer.
	PublicKey string
}

// GenerateKeypair creates a fresh X25519 keypair.
func GenerateKeypair() (Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return Keypair{}, fmt.Errorf("generating age keypair: %w", err)
	}
	return Keypair{
		PrivateKey: identity.String(),
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// ParsePublicKey validates an age1... recipient string.
func ParsePublicKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("invalid age public key: %w", err)
	}
	return nil
}

// SealToRecipient encrypts plaintext to one X25519 public key.
func SealToRecipient(plaintext []byte, publicKey string) ([]byte, error) {
	recipient, err := age.ParseX25519Recipient(publicKey)
	if err != nil {
		return nil, fmt.Errorf("parsing recipient key: %w", err)
	}
	return seal(plaintext, recipient)
}

// SealWithPassphrase encrypts plaintext with an scrypt-derived key.
func SealWithPassphrase(plaintext []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("sealed: empty passphrase")
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(ScryptWorkFactor)
	return seal(plaintext, recipient)
}

func seal(plaintext []byte, recipient age.Recipient) ([]byte, error) {
	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// Keys holds whatever can open a sealed payload. Any combination may
// be set; age tries each identity against the payload's stanzas.
type Keys struct {
	Passphrase string
	// PrivateKeys are AGE-SECRET-KEY-1... strings.
	PrivateKeys []string
}

// Empty reports whether no key material is present.
func (k Keys) Empty() bool {
	return k.Passphrase == "" && len(k.PrivateKeys) == 0
}

// Open decrypts ciphertext produced by SealToRecipient or
// SealWithPassphrase. At most limit plaintext bytes are read; a longer
// plaintext is an error.
func Open(ciphertext []byte, keys Keys, limit int64) ([]byte, error) {
	if keys.Empty() {
		return nil, ErrNoKey
	}

	var identities []age.Identity
	if keys.Passphrase != "" {
		identity, err := age.NewScryptIdentity(keys.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("creating scrypt identity: %w", err)
		}
		identities = append(identities, identity)
	}
	for _, privateKey := range keys.PrivateKeys {
		identity, err := age.ParseX25519Identity(privateKey)
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		identities = append(identities, identity)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	if int64(len(plaintext)) > limit {
		return nil, fmt.Errorf("decrypted plaintext exceeds %d bytes", limit)
	}
	return plaintext, nil
}
