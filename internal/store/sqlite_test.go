// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SetGetRemove(t *testing.T) {
	s := newTestSQLiteStore(t)

	if _, ok := s.Get(TokenKey); ok {
		t.Error("Get on empty store should report absent")
	}

	if err := s.Set(TokenKey, "h.p.s"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got, ok := s.Get(TokenKey); !ok || got != "h.p.s" {
		t.Errorf("Get = (%q, %v)", got, ok)
	}

	// Overwrite replaces wholesale.
	if err := s.Set(TokenKey, "h.q.s"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got, _ := s.Get(TokenKey); got != "h.q.s" {
		t.Errorf("Get after overwrite = %q", got)
	}

	if err := s.Remove(TokenKey); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := s.Get(TokenKey); ok {
		t.Error("Get after Remove should report absent")
	}
	if err := s.Remove(TokenKey); err != nil {
		t.Errorf("Remove of absent key returned %v", err)
	}
}

func TestPolledStore_ForeignWriteNotifies(t *testing.T) {
	backend := newTestSQLiteStore(t)

	// Two wrappers over the same backend stand in for two contexts.
	observer := NewPolledStore(backend, 10*time.Millisecond)
	defer observer.Close()
	writer := NewPolledStore(backend, 10*time.Millisecond)
	defer writer.Close()

	if err := writer.Set(TokenKey, "h.p.s"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ev := waitEvent(t, observer.Events(), 2*time.Second)
	if ev.Key != TokenKey || ev.Op != OpUpdate || ev.Value != "h.p.s" {
		t.Errorf("event = %+v, want update", ev)
	}

	if err := writer.Remove(TokenKey); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	ev = waitEvent(t, observer.Events(), 2*time.Second)
	if ev.Key != TokenKey || ev.Op != OpRemove {
		t.Errorf("event = %+v, want remove", ev)
	}
}

func TestPolledStore_OwnWritesSuppressed(t *testing.T) {
	backend := newTestSQLiteStore(t)

	p := NewPolledStore(backend, 10*time.Millisecond)
	defer p.Close()

	if err := p.Set(TokenKey, "h.p.s"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := p.Remove(TokenKey); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	assertNoEvent(t, p.Events(), 200*time.Millisecond)
}

func TestPolledStore_InitialStateNotReported(t *testing.T) {
	backend := newTestSQLiteStore(t)
	if err := backend.Set(TokenKey, "h.p.s"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Pre-existing values belong to the snapshot, not the event stream.
	p := NewPolledStore(backend, 10*time.Millisecond)
	defer p.Close()

	assertNoEvent(t, p.Events(), 200*time.Millisecond)
}
