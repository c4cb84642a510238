// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Hash algorithms a Hasher can produce.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// DefaultBcryptCost is the bcrypt work factor used when none is configured.
const DefaultBcryptCost = 10

// MaxPasswordBytes is the longest password bcrypt can take without
// truncation. Longer passwords are hashed with argon2id.
const MaxPasswordBytes = 72

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way representation of the password.
	Hash(password string) (string, error)

	// Verify reports whether password matches hash. Malformed or
	// unrecognized hashes never match; Verify does not fail.
	Verify(password, hash string) bool

	// NeedsUpgrade reports whether hash was produced with a different
	// algorithm or work factor than the hasher now uses.
	NeedsUpgrade(hash string) bool
}

// Hasher produces bcrypt or argon2id hashes and verifies either format.
type Hasher struct {
	algorithm string
	cost      int
}

// NewHasher creates a Hasher for algorithm. A cost of zero selects
// DefaultBcryptCost; cost is ignored for argon2id.
func NewHasher(algorithm string, cost int) (*Hasher, error) {
	switch algorithm {
	case AlgorithmBcrypt, "":
		if cost == 0 {
			cost = DefaultBcryptCost
		}
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return nil, oops.Code("AUTH_INVALID_HASHER").
				With("cost", cost).
				Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
		}
		return &Hasher{algorithm: AlgorithmBcrypt, cost: cost}, nil
	case AlgorithmArgon2id:
		return &Hasher{algorithm: AlgorithmArgon2id}, nil
	default:
		return nil, oops.Code("AUTH_INVALID_HASHER").
			With("algorithm", algorithm).
			Errorf("unsupported hash algorithm: %s", algorithm)
	}
}

// Algorithm returns the algorithm new hashes are produced with.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Hash produces a hash of the password with the configured algorithm, or
// with argon2id when the password is too long for bcrypt.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if h.algorithm == AlgorithmArgon2id || len(password) > MaxPasswordBytes {
		return hashArgon2id(password)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").With("algorithm", h.algorithm).Wrap(err)
	}
	return string(hash), nil
}

// Verify checks if the password matches the hash.
func (h *Hasher) Verify(password, hash string) bool {
	switch {
	case isBcryptHash(hash):
		// bcrypt ignores bytes past the limit, so a longer input is never
		// the password it was made from.
		if len(password) > MaxPasswordBytes {
			return false
		}
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	case strings.HasPrefix(hash, "$argon2id$"):
		ok, err := verifyArgon2id(password, hash)
		return err == nil && ok
	default:
		return false
	}
}

// NeedsUpgrade returns true if hash is not in the configured algorithm and
// work factor, including legacy values that are not hashes at all. Under
// bcrypt, argon2id hashes with the current parameters are kept: they are how
// passwords longer than MaxPasswordBytes are stored.
func (h *Hasher) NeedsUpgrade(hash string) bool {
	if isCurrentArgon2id(hash) {
		return false
	}
	if h.algorithm == AlgorithmArgon2id {
		return true
	}
	if !isBcryptHash(hash) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost != h.cost
}

// IsHash reports whether stored looks like a representation produced by a
// supported algorithm.
func IsHash(stored string) bool {
	return isBcryptHash(stored) || strings.HasPrefix(stored, "$argon2id$")
}

func isCurrentArgon2id(hash string) bool {
	return strings.HasPrefix(hash, fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$",
		argon2.Version, argon2Memory, argon2Time, argon2Threads))
}

func isBcryptHash(s string) bool {
	return len(s) == 60 &&
		(strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

func hashArgon2id(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

var errInvalidArgon2Hash = errors.New("invalid argon2id hash")

func verifyArgon2id(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errInvalidArgon2Hash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, errInvalidArgon2Hash
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, errInvalidArgon2Hash
	}
	// Bound untrusted parameters before they size an allocation.
	if threads == 0 || threads > 255 || time == 0 || memory == 0 || memory > 1<<22 {
		return false, errInvalidArgon2Hash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errInvalidArgon2Hash
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, errInvalidArgon2Hash
	}
	keyLen := len(expectedHash)
	if keyLen == 0 || keyLen > 1024 {
		return false, errInvalidArgon2Hash
	}

	computedHash := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(keyLen))
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1, nil
}
