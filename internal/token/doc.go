// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package token inspects stored JWTs for structural well-formedness and
// temporal freshness.
//
// The inspector never verifies signatures. Tokens reach this process
// already issued and already verified by the issuing service; the only
// questions this package answers are "does this look like a three-part
// signed token" and "has it expired". Any malformed input is reported as
// invalid rather than as an error.
//
// # Usage
//
// Create an inspector and validate a stored token:
//
//	insp := token.NewInspector()
//	if !insp.IsValid(raw) {
//	    // treat as logged out
//	}
//
// Tests can pin the clock:
//
//	insp := token.NewInspector()
//	insp.Now = func() time.Time { return fixed }
package token
