// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package auth provides the credential core of VolunteerHub.
//
// # Domain Types
//
// Users should be created with NewUser, which normalizes the email and
// validates name and role. Direct struct initialization bypasses validation.
//
// A stored password representation is either a hash produced by a
// PasswordHasher or, for accounts that predate hashing, the raw password.
// MatchPassword classifies a login attempt as HashedMatch,
// LegacyPlaintextMatch, or NoMatch; the Service rewrites legacy values as
// hashes the first time their owner logs in.
//
// # Tokens
//
// TokenIssuer signs HS256 JWTs. Session tokens carry no purpose. Reset
// tokens carry PurposePasswordReset and the user's password version, so each
// one stops working after the password it was issued for changes. There is
// no revocation list: a session token stays valid until it expires, even
// across password changes.
//
// # Services
//
// Service coordinates signup, login, and the forgot/reset/change password
// flows. It is created with NewService or NewServiceWithLogger, which
// validate dependencies.
package auth
