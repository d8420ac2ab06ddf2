// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// POLLED STORE
// =============================================================================

// PolledStore adds change detection to a backend that emits no native
// mutation events (SQLite). It keeps a snapshot of the session keys and
// periodically diffs it against the backend; mutations routed through
// this wrapper update the snapshot in step, so a context never observes
// its own writes.
type PolledStore struct {
	inner    Store
	interval time.Duration

	mu      sync.Mutex
	known   map[string]string
	present map[string]bool
	closed  bool

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPolledStore wraps inner, snapshotting its current state and
// starting the poll loop.
func NewPolledStore(inner Store, interval time.Duration) *PolledStore {
	ctx, cancel := context.WithCancel(context.Background())

	p := &PolledStore{
		inner:    inner,
		interval: interval,
		known:    make(map[string]string),
		present:  make(map[string]bool),
		events:   make(chan Event, 16),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	for _, key := range Keys() {
		if v, ok := inner.Get(key); ok {
			p.known[key] = v
			p.present[key] = true
		}
	}

	go p.poll(ctx)

	return p
}

// Get reads through to the backend.
func (p *PolledStore) Get(key string) (string, bool) {
	return p.inner.Get(key)
}

// Set writes through to the backend and folds the value into the
// snapshot so the poll loop does not report it back.
func (p *PolledStore) Set(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	if err := p.inner.Set(key, value); err != nil {
		return err
	}

	p.known[key] = value
	p.present[key] = true
	return nil
}

// Remove deletes through to the backend and updates the snapshot.
func (p *PolledStore) Remove(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	if err := p.inner.Remove(key); err != nil {
		return err
	}

	delete(p.known, key)
	delete(p.present, key)
	return nil
}

// Events returns the foreign-mutation stream.
func (p *PolledStore) Events() <-chan Event {
	return p.events
}

// poll periodically diffs the backend against the snapshot.
func (p *PolledStore) poll(ctx context.Context) {
	defer close(p.done)
	defer close(p.events)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			for _, ev := range p.diff() {
				select {
				case p.events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// diff compares the backend to the snapshot and advances the snapshot.
func (p *PolledStore) diff() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var evs []Event
	for _, key := range Keys() {
		cur, ok := p.inner.Get(key)
		switch {
		case ok && (!p.present[key] || p.known[key] != cur):
			p.known[key] = cur
			p.present[key] = true
			evs = append(evs, Event{Key: key, Op: OpUpdate, Value: cur})

		case !ok && p.present[key]:
			delete(p.known, key)
			delete(p.present, key)
			evs = append(evs, Event{Key: key, Op: OpRemove})
		}
	}
	return evs
}

// Close stops the poll loop. The backend itself is left open; whoever
// created it closes it. Safe to call more than once.
func (p *PolledStore) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	<-p.done
	return nil
}
