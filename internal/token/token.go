// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package token

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// =============================================================================
// TOKEN INSPECTOR
// =============================================================================

// Inspector validates stored tokens without verifying their signature.
//
// Validation is structural and temporal only: three dot-separated
// segments, a decodable JSON payload, an exp claim strictly in the
// future. Authenticity is the issuer's problem, not ours.
type Inspector struct {
	// Now supplies the current time for expiry comparison.
	// Defaults to time.Now; tests override it.
	Now func() time.Time

	parser *jwt.Parser
}

// NewInspector creates an Inspector using the wall clock.
func NewInspector() *Inspector {
	return &Inspector{
		Now:    time.Now,
		parser: jwt.NewParser(),
	}
}

// IsValid reports whether raw is a structurally well-formed token whose
// exp claim lies strictly in the future. It never returns an error:
// every malformed input, whatever the failure mode, is simply invalid.
func (i *Inspector) IsValid(raw string) bool {
	exp, ok := i.expiresAt(raw)
	if !ok {
		return false
	}
	// Compare in whole seconds since epoch, matching the claim's own
	// resolution.
	return exp.Unix() > i.Now().Unix()
}

// ExpiresAt returns the expiration instant of a structurally valid
// token. ok is false for any malformed token or a token without an exp
// claim; the expiry itself may still be in the past.
func (i *Inspector) ExpiresAt(raw string) (time.Time, bool) {
	return i.expiresAt(raw)
}

// expiresAt runs the validation pipeline up to (but not including) the
// freshness comparison. Each step is a distinct failure mode; all of
// them collapse to ok=false.
func (i *Inspector) expiresAt(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		// Not a three-part signed token.
		return time.Time{}, false
	}

	if parts[1] == "" {
		return time.Time{}, false
	}

	// Only the payload segment is decoded. Header and signature are
	// carried opaquely; a token with a garbage header but a readable
	// payload is still inspectable.
	payload, err := i.parser.DecodeSegment(parts[1])
	if err != nil {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}
