// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/authsync/internal/util"
)

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore persists each session key as a file in a shared directory.
// Writes are atomic (temp file + fsync + rename), so another context
// never reads a half-written value.
//
// After Watch is called, mutations made by other processes sharing the
// directory surface on Events. The store's own writes are suppressed by
// remembering the last value this context wrote per key; a foreign
// write of the byte-identical value is indistinguishable from our own
// and is suppressed too.
type FileStore struct {
	dir string

	mu          sync.Mutex
	lastSet     map[string]string
	lastRemoved map[string]bool
	closed      bool

	watcher *fsnotify.Watcher
	events  chan Event
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FileStore{
		dir:         dir,
		lastSet:     make(map[string]string),
		lastRemoved: make(map[string]bool),
		events:      make(chan Event, 16),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Dir returns the directory backing this store.
func (s *FileStore) Dir() string {
	return s.dir
}

// =============================================================================
// STORE OPERATIONS
// =============================================================================

// Get returns the stored value for key. Unreadable or missing files are
// reported as absent.
func (s *FileStore) Get(key string) (string, bool) {
	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Set writes value under key. The write is atomic and fsynced; a
// failure propagates to the caller with nothing recorded as written.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	// Record before writing so the watcher goroutine cannot observe the
	// rename ahead of the suppression record.
	prev, hadPrev := s.lastSet[key]
	s.lastSet[key] = value
	delete(s.lastRemoved, key)

	if err := util.AtomicWriteFile(s.filePath(key), []byte(value), 0600); err != nil {
		if hadPrev {
			s.lastSet[key] = prev
		} else {
			delete(s.lastSet, key)
		}
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}

	return nil
}

// Remove deletes key. Removing an absent key is a no-op.
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.lastRemoved[key] = true
	delete(s.lastSet, key)

	if err := os.Remove(s.filePath(key)); err != nil {
		delete(s.lastRemoved, key)
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}

	return nil
}

// =============================================================================
// CHANGE NOTIFICATION
// =============================================================================

// Watch starts observing the store directory for foreign mutations.
func (s *FileStore) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	s.watcher = watcher
	go s.processEvents(watcher)

	return nil
}

// Events returns the foreign-mutation stream. Empty until Watch is
// called; closed when the store shuts down.
func (s *FileStore) Events() <-chan Event {
	return s.events
}

// processEvents translates filesystem events into session-key events.
func (s *FileStore) processEvents(watcher *fsnotify.Watcher) {
	defer close(s.events)

	for {
		select {
		case <-s.ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			key := filepath.Base(event.Name)
			if !IsSessionKey(key) {
				// Temp files from atomic writes land here too.
				continue
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				s.handleUpdate(key)
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				s.handleRemove(key)
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; the periodic expiry check
			// still covers a missed event.
		}
	}
}

// handleUpdate emits an update event unless this context wrote the
// value itself.
func (s *FileStore) handleUpdate(key string) {
	value, ok := s.Get(key)
	if !ok {
		return
	}

	s.mu.Lock()
	own := s.lastSet[key] == value
	s.mu.Unlock()
	if own {
		return
	}

	s.emit(Event{Key: key, Op: OpUpdate, Value: value})
}

// handleRemove emits a remove event unless this context deleted the key
// itself.
func (s *FileStore) handleRemove(key string) {
	s.mu.Lock()
	own := s.lastRemoved[key]
	delete(s.lastRemoved, key)
	delete(s.lastSet, key)
	s.mu.Unlock()
	if own {
		return
	}

	s.emit(Event{Key: key, Op: OpRemove})
}

// emit delivers an event, giving up on shutdown rather than blocking
// forever.
func (s *FileStore) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// Close stops watching and releases resources. Safe to call more than
// once.
func (s *FileStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	watcher := s.watcher
	s.mu.Unlock()

	s.cancel()
	if watcher != nil {
		return watcher.Close()
	}
	close(s.events)
	return nil
}

// filePath returns the file backing a session key.
func (s *FileStore) filePath(key string) string {
	return filepath.Join(s.dir, key)
}
