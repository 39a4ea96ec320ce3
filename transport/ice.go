// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// ICEConfig holds ICE server configuration for PeerConnections.
type ICEConfig struct {
	// Servers is the list of ICE servers to use during candidate
	// gathering. Empty means host candidates only.
	Servers []webrtc.ICEServer

	// IncludeLoopback gathers 127.0.0.1 candidates. Needed when both
	// ends run on one machine with no other interface, as in tests.
	IncludeLoopback bool
}

// ICEConfigFromURLs builds an ICEConfig with one credential-less server
// entry holding every non-blank URL (typically stun:host:port).
func ICEConfigFromURLs(urls []string) ICEConfig {
	var cleaned []string
	for _, url := range urls {
		if url = strings.TrimSpace(url); url != "" {
			cleaned = append(cleaned, url)
		}
	}
	if len(cleaned) == 0 {
		return ICEConfig{}
	}
	return ICEConfig{
		Servers: []webrtc.ICEServer{{URLs: cleaned}},
	}
}
