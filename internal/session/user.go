// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"slices"
)

// =============================================================================
// USER RECORD
// =============================================================================

// User is the identity record persisted alongside the session token.
// The two are a paired unit: created together at login, destroyed
// together at logout or invalidation.
type User struct {
	UserID     string   `json:"userId"`
	Name       string   `json:"name"`
	SecondName string   `json:"secondName"`
	Email      string   `json:"email"`
	Role       string   `json:"role"`
	Interests  []string `json:"interests"`
}

// Validate checks the mandatory fields. A record without a user ID or
// email is corrupt and must be discarded, not repaired.
func (u User) Validate() error {
	if u.UserID == "" || u.Email == "" {
		return ErrInvalidUser
	}
	return nil
}

// equal reports whether two records carry the same identity data.
func (u User) equal(o User) bool {
	return u.UserID == o.UserID &&
		u.Name == o.Name &&
		u.SecondName == o.SecondName &&
		u.Email == o.Email &&
		u.Role == o.Role &&
		slices.Equal(u.Interests, o.Interests)
}

// parseUser decodes a persisted record and enforces its invariant.
func parseUser(raw string) (User, error) {
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return User{}, ErrInvalidUser
	}
	if err := u.Validate(); err != nil {
		return User{}, err
	}
	return u, nil
}

// encodeUser serializes a record for persistence.
func encodeUser(u User) (string, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
