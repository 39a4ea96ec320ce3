// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/bureau-foundation/webtty/lib/netutil"
	"github.com/bureau-foundation/webtty/signaling"
)

// MemoryStore is an in-process relay store. It serves the relay HTTP
// protocol (wrap it in httptest.NewServer) and also implements Upload
// and Poll directly, so tests can stand it in for a Client.
type MemoryStore struct {
	mu      sync.Mutex
	tokens  map[string]string
	changed chan struct{}

	// rejectStatus, when non-zero, is returned for every POST.
	rejectStatus int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens:  make(map[string]string),
		changed: make(chan struct{}),
	}
}

// RejectUploads makes every later upload fail with status. Zero
// restores normal behavior.
func (s *MemoryStore) RejectUploads(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectStatus = status
}

// Get returns the token stored at location.
func (s *MemoryStore) Get(location string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[location]
	return token, ok
}

// Upload stores body at location.
func (s *MemoryStore) Upload(ctx context.Context, location, body string) error {
	if !signaling.ValidRelayLocation(location) {
		return &RelayError{Location: location, Err: signaling.ErrInvalidRelayLocation}
	}
	if err := ctx.Err(); err != nil {
		return &RelayError{Location: location, Err: err}
	}
	if status := s.store(location, body); status != http.StatusCreated {
		return &RelayError{Location: location, StatusCode: status, Body: http.StatusText(status)}
	}
	return nil
}

// Poll blocks until location holds a token or ctx ends.
func (s *MemoryStore) Poll(ctx context.Context, location string) (string, error) {
	for {
		s.mu.Lock()
		token, ok := s.tokens[location]
		changed := s.changed
		s.mu.Unlock()
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", &RelayError{Location: location, Err: ctx.Err()}
		case <-changed:
		}
	}
}

// store records a token and returns the HTTP status a relay would.
func (s *MemoryStore) store(location, body string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejectStatus != 0 {
		return s.rejectStatus
	}
	s.tokens[location] = body
	close(s.changed)
	s.changed = make(chan struct{})
	return http.StatusCreated
}

// ServeHTTP implements the relay protocol: POST stores, GET fetches.
func (s *MemoryStore) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	location := strings.TrimPrefix(request.URL.Path, "/")
	if !signaling.ValidRelayLocation(location) {
		http.Error(writer, "invalid location", http.StatusBadRequest)
		return
	}

	switch request.Method {
	case http.MethodPost:
		body, err := netutil.ReadBody(request.Body)
		if err != nil {
			http.Error(writer, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		status := s.store(location, string(body))
		writer.WriteHeader(status)
		if status == http.StatusCreated {
			_, _ = io.WriteString(writer, "created")
		}
	case http.MethodGet:
		token, ok := s.Get(location)
		if !ok {
			http.NotFound(writer, request)
			return
		}
		writer.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(writer, token)
	default:
		http.Error(writer, "method not allowed", http.StatusMethodNotAllowed)
	}
}
