// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package event provides a handler registry with removable
// subscriptions. pion's data channel exposes exactly one OnMessage,
// OnClose, and OnError slot each; the transport adapter installs a
// single callback in each slot and fans out to a Registry so that the
// bridge, the host, and the command can all listen and later detach
// independently.
package event

import "sync"

// Registry holds handlers of type func(T). The zero value is ready to
// use and safe for concurrent use.
type Registry[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[uint64]func(T)
	order    []uint64
}

// Add registers handler and returns a function that removes it.
// Calling the remove function more than once is harmless.
func (r *Registry[T]) Add(handler func(T)) (remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handlers == nil {
		r.handlers = make(map[uint64]func(T))
	}
	id := r.nextID
	r.nextID++
	r.handlers[id] = handler
	r.order = append(r.order, id)

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, present := r.handlers[id]; !present {
			return
		}
		delete(r.handlers, id)
		for index, existing := range r.order {
			if existing == id {
				r.order = append(r.order[:index], r.order[index+1:]...)
				break
			}
		}
	}
}

// Emit calls every registered handler with value, in registration
// order. Handlers run outside the registry lock, so a handler may add
// or remove subscriptions (including its own) without deadlocking.
// Changes made during Emit take effect on the next Emit.
func (r *Registry[T]) Emit(value T) {
	for _, handler := range r.snapshot() {
		handler(value)
	}
}

// Len returns the number of registered handlers.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func (r *Registry[T]) snapshot() []func(T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handlers := make([]func(T), 0, len(r.order))
	for _, id := range r.order {
		handlers = append(handlers, r.handlers[id])
	}
	return handlers
}
