// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides the shared session storage scope.
//
// A Store holds exactly two well-known keys: the signed token and the
// serialized user record. Several contexts (processes, terminals) may
// share one scope; a Notifier delivers the mutations made by *other*
// contexts, never a context's own writes, mirroring the storage-event
// contract of browser local storage.
//
// # Backends
//
//   - FileStore: one file per key in a shared directory, atomic writes,
//     change events via fsnotify.
//   - SQLiteStore: key-value table in a single database file. SQLite
//     emits no change events; pair it with PolledStore.
//   - MemoryHub / MemoryStore: in-process scope for tests, where every
//     attached store is one simulated context.
//
// # Usage
//
//	st, err := store.NewFileStore(dir)
//	if err := st.Watch(); err != nil { ... }
//	defer st.Close()
//	for ev := range st.Events() {
//	    // react to foreign mutation
//	}
package store
