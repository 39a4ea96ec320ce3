// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/zeebo/blake3"
)

// Fingerprint returns 16 hex characters identifying a token. Both
// peers print it so a user can confirm the token arrived intact.
// Input is normalized with ExtractToken first, so whitespace and a
// surrounding URL do not change the result.
func Fingerprint(token string) string {
	sum := blake3.Sum256([]byte(ExtractToken(token)))
	return hex.EncodeToString(sum[:8])
}

// ExtractToken returns the token carried by input: the fragment of a
// URL such as https://host/#TOKEN, the text after a bare "#", or the
// trimmed input itself.
func ExtractToken(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		if parsed, err := url.Parse(input); err == nil {
			return strings.TrimSpace(parsed.Fragment)
		}
	}
	if _, fragment, found := strings.Cut(input, "#"); found {
		return strings.TrimSpace(fragment)
	}
	return input
}
