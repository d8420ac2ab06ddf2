// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"time"

	"github.com/jeranaias/authsync/internal/store"
)

// =============================================================================
// PERIODIC EXPIRY MONITOR
// =============================================================================

// The monitor runs only while the session is active. It compensates for
// tokens that expire while a long-lived context receives no foreign
// mutation events: a single open context gets no storage notifications,
// so without the monitor an expired token would stay "logged in"
// indefinitely.

// startMonitorLocked launches the expiry check loop if it is not
// already running. Manager lock must be held.
func (m *Manager) startMonitorLocked() {
	if m.monitorCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.monitorCancel = cancel
	m.monitorDone = done

	go m.runMonitor(ctx, done)
}

// stopMonitorLocked cancels the expiry check loop. It does not wait for
// the goroutine: the goroutine may itself be inside a transition that
// holds the manager lock. Cancellation is enough; the loop observes it
// before its next check. Manager lock must be held.
func (m *Manager) stopMonitorLocked() {
	if m.monitorCancel == nil {
		return
	}
	m.monitorCancel()
	m.monitorCancel = nil
}

// runMonitor re-validates the persisted token on every tick and tears
// the session down once it is absent or expired.
func (m *Manager) runMonitor(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			raw, ok := m.store.Get(store.TokenKey)
			if ok && m.inspector.IsValid(raw) {
				continue
			}

			logEvent("SESSION_EXPIRY_DETECTED", "source=periodic_check")
			m.Invalidate()
			// Invalidate stopped the monitor; the session that might
			// start later gets a fresh loop.
			return
		}
	}
}
