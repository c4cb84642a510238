// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package auth

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// Role is the kind of account a user holds.
type Role string

// Account roles.
const (
	RoleVolunteer    Role = "VOLUNTEER"
	RoleOrganization Role = "ORGANIZATION"
)

// Field limits.
const (
	MaxNameLength  = 100
	MaxEmailLength = 254
)

// ParseRole parses a role name. An empty name yields RoleVolunteer.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case "", RoleVolunteer:
		return RoleVolunteer, nil
	case RoleOrganization:
		return RoleOrganization, nil
	default:
		return "", errutil.Validation("AUTH_INVALID_ROLE", "Role must be VOLUNTEER or ORGANIZATION")
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleVolunteer || r == RoleOrganization
}

// User is an account. PasswordHash holds either a hasher-produced hash or,
// for accounts created before hashing was introduced, the raw password.
type User struct {
	ID              ulid.ULID
	Email           string
	Name            string
	Role            Role
	PasswordHash    string
	PasswordVersion int
	Skills          *string
	Location        *string
	ProfileImageURL *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that a normalized email looks like local@domain.
func ValidateEmail(email string) error {
	if email == "" {
		return errutil.Validation("AUTH_INVALID_EMAIL", "Email is required")
	}
	if len(email) > MaxEmailLength {
		return errutil.Validation("AUTH_INVALID_EMAIL", "Email is too long")
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return errutil.Validation("AUTH_INVALID_EMAIL", "Email address is invalid")
	}
	return nil
}

// ValidateName checks a display name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errutil.Validation("AUTH_INVALID_NAME", "Name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return errutil.Validation("AUTH_INVALID_NAME", "Name is too long")
	}
	return nil
}

// NewUser builds a validated user with a fresh ID. email is normalized.
func NewUser(email, name string, role Role, passwordHash string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, errutil.Validation("AUTH_INVALID_ROLE", "Role must be VOLUNTEER or ORGANIZATION")
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_USER").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &User{
		ID:              ulid.Make(),
		Email:           email,
		Name:            name,
		Role:            role,
		PasswordHash:    passwordHash,
		PasswordVersion: 1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// PublicUser is the client-facing view returned by signup and login.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public returns the client-facing view of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Profile is the full client-facing view of the caller's own account.
type Profile struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            Role      `json:"role"`
	Skills          *string   `json:"skills"`
	Location        *string   `json:"location"`
	ProfileImageURL *string   `json:"profileImageUrl"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Profile returns the profile view of u.
func (u *User) Profile() Profile {
	return Profile{
		ID:              u.ID.String(),
		Name:            u.Name,
		Email:           u.Email,
		Role:            u.Role,
		Skills:          u.Skills,
		Location:        u.Location,
		ProfileImageURL: u.ProfileImageURL,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// ProfileUpdate lists profile fields to change. Nil fields are left alone.
type ProfileUpdate struct {
	Name            *string
	Skills          *string
	Location        *string
	ProfileImageURL *string
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Skills == nil && p.Location == nil && p.ProfileImageURL == nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user.
	// Returns an error wrapping errutil.ErrConflict if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	// Returns an error wrapping errutil.ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	// Returns an error wrapping errutil.ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpgradePasswordHash replaces the stored representation without
	// changing the password version.
	UpgradePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error

	// UpdatePassword replaces the stored representation and increments the
	// password version.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// UpdateProfile applies update and returns the stored user.
	UpdateProfile(ctx context.Context, id ulid.ULID, update ProfileUpdate) (*User, error)
}
