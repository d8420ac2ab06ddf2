// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the lifecycle of a signed token and its paired
// user record.
//
// A Manager is a three-state machine - Uninitialized, NoSession,
// ActiveSession - and the only component that mutates observable
// session state. Login and logout calls, foreign storage mutations
// reported by a store.Notifier, and the periodic expiry check all
// funnel into the same transition logic, so "is a session active" has a
// single source of truth per context and stays consistent across every
// context sharing the storage scope.
//
// # Key Types
//
//   - Manager: the state machine; the only exported mutation surface
//   - User: the persisted identity record
//   - Snapshot: state + identity handed to the OnChange callback
//
// # Usage
//
// Create a manager over a shared store and start it:
//
//	st, _ := store.NewFileStore(dir)
//	st.Watch()
//	mgr := session.NewManager(session.Config{Store: st, Notifier: st})
//	mgr.Start()
//	defer mgr.Close()
//
//	<-mgr.Ready() // "logged out" is now known, not just unknown
//	if mgr.IsLoggedIn() { ... }
//
// The manager never exposes raw token material to consumers.
package session
