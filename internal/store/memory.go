// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sync"

	"github.com/google/uuid"
)

// =============================================================================
// MEMORY HUB
// =============================================================================

// MemoryHub is an in-process storage scope. Every store attached to the
// hub is one simulated context; a mutation through one store broadcasts
// to all the others, never back to the writer. Tests use a hub to stand
// in for several processes sharing a directory.
type MemoryHub struct {
	mu     sync.Mutex
	values map[string]string
	stores map[string]*MemoryStore
}

// NewMemoryHub creates an empty storage scope.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		values: make(map[string]string),
		stores: make(map[string]*MemoryStore),
	}
}

// Attach joins a new context to the scope.
func (h *MemoryHub) Attach() *MemoryStore {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := &MemoryStore{
		hub:    h,
		id:     "ctx_" + uuid.NewString(),
		events: make(chan Event, 64),
	}
	h.stores[s.id] = s
	return s
}

// broadcast delivers ev to every attached store except the writer.
// Hub lock must be held.
func (h *MemoryHub) broadcast(writerID string, ev Event) {
	for id, s := range h.stores {
		if id == writerID {
			continue
		}
		select {
		case s.events <- ev:
		default:
			// A saturated context loses the event. The periodic expiry
			// check is the backstop.
		}
	}
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore is one context attached to a MemoryHub. It implements
// both Store and Notifier.
type MemoryStore struct {
	hub *MemoryHub
	id  string

	events chan Event
	closed bool

	// WriteErr, when non-nil, is returned by Set. Tests use it to
	// simulate quota exhaustion.
	WriteErr error
}

// ID returns the context identifier of this store.
func (s *MemoryStore) ID() string {
	return s.id
}

// Get returns the stored value for key.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	v, ok := s.hub.values[key]
	return v, ok
}

// Set stores value under key and notifies the sibling contexts.
func (s *MemoryStore) Set(key, value string) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}

	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.hub.values[key] = value
	s.hub.broadcast(s.id, Event{Key: key, Op: OpUpdate, Value: value})
	return nil
}

// Remove deletes key and notifies the sibling contexts. Removing an
// absent key changes nothing and fires no event.
func (s *MemoryStore) Remove(key string) error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if _, ok := s.hub.values[key]; !ok {
		return nil
	}

	delete(s.hub.values, key)
	s.hub.broadcast(s.id, Event{Key: key, Op: OpRemove})
	return nil
}

// Events returns the foreign-mutation stream for this context.
func (s *MemoryStore) Events() <-chan Event {
	return s.events
}

// Close detaches the context from the hub.
func (s *MemoryStore) Close() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	delete(s.hub.stores, s.id)
	close(s.events)
	return nil
}
