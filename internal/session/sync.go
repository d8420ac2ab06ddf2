// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"github.com/jeranaias/authsync/internal/store"
)

// =============================================================================
// CROSS-CONTEXT SYNCHRONIZER
// =============================================================================

// watchStore consumes foreign mutations of the session keys and
// re-drives the state machine. This is what keeps every context sharing
// the storage scope on the same session: a logout in one context clears
// all of them, a login propagates the new identity, and no context ever
// trusts a token it has not validated itself.
func (m *Manager) watchStore(n store.Notifier, done chan struct{}) {
	defer close(done)

	for ev := range n.Events() {
		if !store.IsSessionKey(ev.Key) {
			continue
		}

		switch ev.Op {
		case store.OpRemove:
			// The key is definitively gone from the scope; there is
			// nothing left to re-validate.
			logEvent("SESSION_SYNC", "op=remove key="+ev.Key)
			m.Invalidate()

		case store.OpUpdate:
			// A foreign update may be a brand-new login, not a refresh
			// of the same session; run the full restore and re-validate
			// everything.
			logEvent("SESSION_SYNC", "op=update key="+ev.Key)
			m.restore(false)
		}
	}
}
