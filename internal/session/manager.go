// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/jeranaias/authsync/internal/store"
	"github.com/jeranaias/authsync/internal/token"
)

// =============================================================================
// SESSION STATE
// =============================================================================

// State is the externally observable lifecycle state.
type State int

const (
	// StateUninitialized means restoration has not completed yet; "logged
	// out" cannot be distinguished from "not yet known".
	StateUninitialized State = iota

	// StateNoSession means the context is known to be logged out.
	StateNoSession

	// StateActive means a validated session with an identity is live.
	StateActive
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateNoSession:
		return "NO_SESSION"
	case StateActive:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is the state handed to change callbacks. User is the zero
// value unless State is StateActive.
type Snapshot struct {
	State State
	User  User
}

// =============================================================================
// MANAGER
// =============================================================================

// DefaultCheckInterval is how often an active session's token is
// re-validated against the store: every 300 seconds.
const DefaultCheckInterval = 5 * time.Minute

// Config holds configuration for the session manager.
type Config struct {
	// Store is the shared persistence scope. Required.
	Store store.Store

	// Notifier delivers mutations made by other contexts sharing the
	// scope. Optional; without it the manager still self-heals through
	// the periodic expiry check. The manager owns the subscription and
	// closes it on Close.
	Notifier store.Notifier

	// CheckInterval is the periodic expiry check interval
	// (default: DefaultCheckInterval).
	CheckInterval time.Duration

	// Now supplies the clock for token expiry comparison.
	// Defaults to time.Now; tests override it.
	Now func() time.Time

	// OnChange, when set, is called after every observable transition,
	// outside the manager's lock.
	OnChange func(Snapshot)
}

// Manager is the session lifecycle state machine. All transitions -
// restore, login, logout, invalidation, foreign mutations, periodic
// expiry - run through it, one at a time.
type Manager struct {
	mu sync.Mutex

	store         store.Store
	inspector     *token.Inspector
	checkInterval time.Duration
	onChange      func(Snapshot)

	state State
	user  User

	ready     chan struct{}
	readyOnce sync.Once

	notifier store.Notifier
	syncDone chan struct{}

	monitorCancel context.CancelFunc
	monitorDone   chan struct{}

	closed bool
}

// NewManager creates a session manager over a shared store. The manager
// stays in StateUninitialized until Start runs the initial restore.
func NewManager(cfg Config) *Manager {
	if cfg.Store == nil {
		panic("session: Config.Store is required")
	}

	inspector := token.NewInspector()
	if cfg.Now != nil {
		inspector.Now = cfg.Now
	}

	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = DefaultCheckInterval
	}

	return &Manager{
		store:         cfg.Store,
		inspector:     inspector,
		checkInterval: interval,
		onChange:      cfg.OnChange,
		state:         StateUninitialized,
		ready:         make(chan struct{}),
		notifier:      cfg.Notifier,
	}
}

// Start performs the initial restore and begins observing foreign
// mutations. Consumers should wait on Ready before trusting IsLoggedIn.
func (m *Manager) Start() {
	m.Restore()

	m.mu.Lock()
	if m.notifier != nil && m.syncDone == nil && !m.closed {
		m.syncDone = make(chan struct{})
		go m.watchStore(m.notifier, m.syncDone)
	}
	m.mu.Unlock()
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Restore re-derives session state from the persisted pair. Any failure
// branch - missing data, invalid token, corrupt user record - fully
// clears both keys before transitioning: a partially valid session is
// not a lesser session, it is no session.
func (m *Manager) Restore() {
	m.restore(true)
}

// restore is the shared restoration pipeline. clearOnMissing is false
// only for restores driven by foreign update events: a login in another
// context writes token and user record as two separate mutations, and
// the restore racing between them must not delete the half-written pair.
// The paired second event re-drives restore moments later; genuinely
// orphaned halves are cleared by the next full restore.
func (m *Manager) restore(clearOnMissing bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	rawToken, okToken := m.store.Get(store.TokenKey)
	rawUser, okUser := m.store.Get(store.UserKey)

	var changed bool
	switch {
	case !okToken || !okUser:
		if clearOnMissing {
			m.clearLocked()
		}
		changed = m.setStateLocked(StateNoSession, User{})
		if changed {
			logEvent("SESSION_RESTORE_FAILED", "reason=missing_data")
		}

	case !m.inspector.IsValid(rawToken):
		m.clearLocked()
		changed = m.setStateLocked(StateNoSession, User{})
		if changed {
			logEvent("SESSION_RESTORE_FAILED", "reason=invalid_token")
		}

	default:
		user, err := parseUser(rawUser)
		if err != nil {
			m.clearLocked()
			changed = m.setStateLocked(StateNoSession, User{})
			if changed {
				logEvent("SESSION_RESTORE_FAILED", "reason=corrupt_user_record")
			}
			break
		}
		changed = m.setStateLocked(StateActive, user)
		if changed {
			logEvent("SESSION_RESTORED", "user="+user.UserID)
		}
	}

	m.finishLocked(changed)
}

// Login persists the token and user record and activates the session.
// If persistence fails the error surfaces to the caller and the
// in-memory state is left exactly as it was.
func (m *Manager) Login(user User, rawToken string) error {
	if err := user.Validate(); err != nil {
		return err
	}

	encoded, err := encodeUser(user)
	if err != nil {
		return fmt.Errorf("failed to encode user record: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}

	if err := m.store.Set(store.TokenKey, rawToken); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to persist session: %w", err)
	}
	if err := m.store.Set(store.UserKey, encoded); err != nil {
		// Token and user record are a unit; never leave half of one
		// behind. Best effort - the restore path clears leftovers too.
		m.store.Remove(store.TokenKey)
		m.mu.Unlock()
		return fmt.Errorf("failed to persist session: %w", err)
	}

	changed := m.setStateLocked(StateActive, user)
	logEvent("SESSION_CREATED", "user="+user.UserID)
	m.finishLocked(changed)

	return nil
}

// Logout ends the session and clears the persisted pair. It never
// fails and is idempotent.
func (m *Manager) Logout() {
	m.end("SESSION_ENDED")
}

// Invalidate tears the session down after the stored token was found
// expired, removed, or malformed. Same transition as Logout under a
// different audit tag.
func (m *Manager) Invalidate() {
	m.end("SESSION_INVALIDATED")
}

// end clears both keys and transitions to NoSession unconditionally.
func (m *Manager) end(event string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	m.clearLocked()
	changed := m.setStateLocked(StateNoSession, User{})
	if changed {
		logEvent(event, "")
	}
	m.finishLocked(changed)
}

// clearLocked removes the persisted pair: user record first so that a
// context catching the scope mid-clear never sees a record without its
// token being about to go too. Removal failures are logged, not
// surfaced; teardown must always complete.
func (m *Manager) clearLocked() {
	if err := m.store.Remove(store.UserKey); err != nil {
		logEvent("SESSION_CLEAR_FAILED", fmt.Sprintf("key=%s error=%v", store.UserKey, err))
	}
	if err := m.store.Remove(store.TokenKey); err != nil {
		logEvent("SESSION_CLEAR_FAILED", fmt.Sprintf("key=%s error=%v", store.TokenKey, err))
	}
}

// setStateLocked applies a transition and manages the expiry monitor.
// Returns true if the observable state actually changed.
func (m *Manager) setStateLocked(next State, user User) bool {
	changed := m.state != next || !m.user.equal(user)

	m.state = next
	m.user = user

	if next == StateActive {
		m.startMonitorLocked()
	} else {
		m.stopMonitorLocked()
	}

	return changed
}

// finishLocked marks initialization complete, releases the lock, and
// fires the change callback outside it.
func (m *Manager) finishLocked(changed bool) {
	snap := Snapshot{State: m.state}
	if m.state == StateActive {
		snap.User = m.user
	}
	callback := m.onChange
	m.mu.Unlock()

	m.readyOnce.Do(func() { close(m.ready) })

	if changed && callback != nil {
		callback(snap)
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// IsLoggedIn reports whether a validated session is active. False while
// uninitialized; use Ready to tell the two apart.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateActive
}

// Initialized reports whether the initial restore has completed.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != StateUninitialized
}

// Ready is closed once the first transition lands, letting consumers
// distinguish "known to be logged out" from "not yet known".
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// User returns the current identity. Reading it before initialization
// is an integration fault and yields ErrNotInitialized; a logged-out
// session yields ErrNoSession.
func (m *Manager) User() (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateUninitialized:
		return User{}, ErrNotInitialized
	case StateNoSession:
		return User{}, ErrNoSession
	}

	u := m.user
	u.Interests = slices.Clone(m.user.Interests)
	return u, nil
}

// CurrentSnapshot returns the observable state for rendering.
func (m *Manager) CurrentSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{State: m.state}
	if m.state == StateActive {
		snap.User = m.user
		snap.User.Interests = slices.Clone(m.user.Interests)
	}
	return snap
}

// =============================================================================
// TEARDOWN
// =============================================================================

// Close releases the expiry monitor and the notifier subscription
// unconditionally. The persisted session is left untouched: closing a
// context is not logging out. Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true

	m.stopMonitorLocked()
	notifier := m.notifier
	m.notifier = nil
	syncDone := m.syncDone
	m.mu.Unlock()

	if notifier != nil {
		notifier.Close()
	}
	if syncDone != nil {
		<-syncDone
	}

	// A consumer blocked on Ready must not hang over a closed manager.
	m.readyOnce.Do(func() { close(m.ready) })
}

// =============================================================================
// HELPERS
// =============================================================================

// logEvent writes an audit-style event line.
func logEvent(event, detail string) {
	if detail == "" {
		log.Printf("%s", event)
		return
	}
	log.Printf("%s: %s", event, detail)
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotInitialized is returned when session state is read before the
// initial restore completes. This is an integration fault, not a
// runtime data fault.
var ErrNotInitialized = &SessionError{Message: "session state read before initialization"}

// ErrNoSession is returned when no session is active.
var ErrNoSession = &SessionError{Message: "no active session"}

// ErrInvalidUser is returned for a user record missing its mandatory
// fields.
var ErrInvalidUser = &SessionError{Message: "user record missing mandatory fields"}

// ErrClosed is returned when operating on a closed manager.
var ErrClosed = &SessionError{Message: "session manager is closed"}

// SessionError represents a session-related error.
// Use errors.Is to compare against the sentinel values above.
type SessionError struct {
	Message string
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing session errors.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
