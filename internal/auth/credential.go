// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package auth

import "crypto/subtle"

// PasswordMatch is the outcome of checking a password against a stored
// representation.
type PasswordMatch int

// Password check outcomes.
const (
	// NoMatch means neither the hash nor the legacy comparison succeeded.
	NoMatch PasswordMatch = iota
	// HashedMatch means the stored value is a hash of the password.
	HashedMatch
	// LegacyPlaintextMatch means the stored value is the password itself and
	// should be replaced with a hash.
	LegacyPlaintextMatch
)

func (m PasswordMatch) String() string {
	switch m {
	case HashedMatch:
		return "hashed"
	case LegacyPlaintextMatch:
		return "legacy_plaintext"
	default:
		return "no_match"
	}
}

// Matched reports whether the password was accepted by either path.
func (m PasswordMatch) Matched() bool {
	return m == HashedMatch || m == LegacyPlaintextMatch
}

// MatchPassword checks password against stored: first as a hash, then as a
// legacy plaintext value. Values that parse as a supported hash are never
// compared as plaintext, so a leaked hash cannot be replayed as a password.
// Empty inputs never match.
func MatchPassword(hasher PasswordHasher, password, stored string) PasswordMatch {
	if password == "" || stored == "" {
		return NoMatch
	}
	if hasher.Verify(password, stored) {
		return HashedMatch
	}
	if IsHash(stored) {
		return NoMatch
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1 {
		return LegacyPlaintextMatch
	}
	return NoMatch
}
