// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

// Well-known keys of the session scope. Token and user record are a
// paired unit: neither may outlive the other.
const (
	// TokenKey holds the signed session token.
	TokenKey = "jwt_token"

	// UserKey holds the serialized user record.
	UserKey = "user_info"
)

// Keys returns the well-known session keys.
func Keys() []string {
	return []string{TokenKey, UserKey}
}

// IsSessionKey reports whether key is one of the well-known session keys.
func IsSessionKey(key string) bool {
	return key == TokenKey || key == UserKey
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is scoped, synchronous key-value persistence for the session
// keys.
//
// Get treats unreadable values as absent: a value the context cannot
// read is a value it does not have. Set failures (disk full, quota)
// propagate to the caller.
type Store interface {
	// Get returns the stored value, or ok=false if absent.
	Get(key string) (value string, ok bool)

	// Set stores value under key. The write must be visible to other
	// contexts sharing the scope.
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is a no-op.
	Remove(key string) error
}

// =============================================================================
// MUTATION EVENTS
// =============================================================================

// Op is the kind of mutation observed in another context.
type Op int

const (
	// OpUpdate indicates the key was written with a new value.
	OpUpdate Op = iota

	// OpRemove indicates the key was deleted.
	OpRemove
)

// String returns a string representation of the Op.
func (o Op) String() string {
	switch o {
	case OpUpdate:
		return "UPDATE"
	case OpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// Event describes a mutation made by another context sharing the same
// storage scope. The originating context never observes its own writes.
type Event struct {
	// Key is the mutated session key.
	Key string

	// Op is the kind of mutation.
	Op Op

	// Value is the new value for OpUpdate; empty for OpRemove.
	Value string
}

// Notifier is a subscription to foreign mutations of the session keys.
type Notifier interface {
	// Events returns the event stream. The channel is closed when the
	// notifier shuts down.
	Events() <-chan Event

	// Close releases the subscription. Safe to call more than once.
	Close() error
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrClosed is returned when operating on a closed store.
// Use errors.Is(err, ErrClosed) to check for this error.
var ErrClosed = &StoreError{Message: "store is closed"}

// StoreError represents a storage-related error.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
