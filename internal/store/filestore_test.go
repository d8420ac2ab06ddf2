// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"testing"
	"time"
)

// waitEvent blocks until an event arrives or the deadline passes.
func waitEvent(t *testing.T, ch <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed while waiting for event")
		}
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// assertNoEvent verifies no event arrives within the window.
func assertNoEvent(t *testing.T, ch <-chan Event, window time.Duration) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %v %s", ev.Op, ev.Key)
	case <-time.After(window):
	}
}

func TestFileStore_SetGetRemove(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer s.Close()

	if _, ok := s.Get(TokenKey); ok {
		t.Error("Get on empty store should report absent")
	}

	if err := s.Set(TokenKey, "h.p.s"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := s.Get(TokenKey)
	if !ok || got != "h.p.s" {
		t.Errorf("Get = (%q, %v), want (%q, true)", got, ok, "h.p.s")
	}

	if err := s.Remove(TokenKey); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := s.Get(TokenKey); ok {
		t.Error("Get after Remove should report absent")
	}

	// Removing an absent key is a no-op.
	if err := s.Remove(TokenKey); err != nil {
		t.Errorf("Remove of absent key returned %v", err)
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	a, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := a.Set(UserKey, `{"userId":"u1"}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	a.Close()

	b, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer b.Close()

	got, ok := b.Get(UserKey)
	if !ok || got != `{"userId":"u1"}` {
		t.Errorf("Get = (%q, %v), want persisted record", got, ok)
	}
}

func TestFileStore_ForeignWriteNotifies(t *testing.T) {
	dir := t.TempDir()

	observer, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer observer.Close()
	if err := observer.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writer, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer writer.Close()

	if err := writer.Set(TokenKey, "h.p.s"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ev := waitEvent(t, observer.Events(), 3*time.Second)
	if ev.Key != TokenKey || ev.Op != OpUpdate || ev.Value != "h.p.s" {
		t.Errorf("event = %+v, want update of %s", ev, TokenKey)
	}

	if err := writer.Remove(TokenKey); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	ev = waitEvent(t, observer.Events(), 3*time.Second)
	if ev.Key != TokenKey || ev.Op != OpRemove {
		t.Errorf("event = %+v, want remove of %s", ev, TokenKey)
	}
}

func TestFileStore_OwnWritesSuppressed(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer s.Close()
	if err := s.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := s.Set(TokenKey, "h.p.s"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Remove(TokenKey); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	assertNoEvent(t, s.Events(), 500*time.Millisecond)
}

func TestFileStore_IgnoresUnknownKeys(t *testing.T) {
	dir := t.TempDir()

	observer, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer observer.Close()
	if err := observer.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writer, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer writer.Close()

	if err := writer.Set("unrelated", "noise"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	assertNoEvent(t, observer.Events(), 500*time.Millisecond)
}

func TestFileStore_ClosedRejectsWrites(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	s.Close()

	if err := s.Set(TokenKey, "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Set on closed store = %v, want ErrClosed", err)
	}
	if err := s.Remove(TokenKey); !errors.Is(err, ErrClosed) {
		t.Errorf("Remove on closed store = %v, want ErrClosed", err)
	}

	// Close is idempotent.
	if err := s.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}
