// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package postgres implements auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/internal/auth"
	"github.com/volunteerhub/volunteerhub/internal/store"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

const userColumns = `id, email, name, role, password_hash, password_version,
	skills, location, profile_image_url, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db store.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db store.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (
			id, email, name, role, password_hash, password_version,
			skills, location, profile_image_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		user.ID.String(),
		user.Email,
		user.Name,
		string(user.Role),
		user.PasswordHash,
		user.PasswordVersion,
		user.Skills,
		user.Location,
		user.ProfileImageURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if store.IsUniqueViolation(err, "users_email_key") {
			return oops.Code("USER_EMAIL_TAKEN").
				With("email", user.Email).
				Wrap(errutil.Conflict("USER_EMAIL_TAKEN", "User with this email already exists"))
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(errutil.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(errutil.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// UpgradePasswordHash replaces the stored representation, keeping the
// password version.
func (r *UserRepository) UpgradePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now().UTC())
	if err != nil {
		return oops.Code("USER_UPGRADE_HASH_FAILED").
			With("operation", "upgrade password hash").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(errutil.ErrNotFound)
	}
	return nil
}

// UpdatePassword replaces the stored representation and bumps the password
// version.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, password_version = password_version + 1, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now().UTC())
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(errutil.ErrNotFound)
	}
	return nil
}

// UpdateProfile applies the non-nil fields of update and returns the row.
func (r *UserRepository) UpdateProfile(ctx context.Context, id ulid.ULID, update auth.ProfileUpdate) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE users SET
			name = COALESCE($2, name),
			skills = COALESCE($3, skills),
			location = COALESCE($4, location),
			profile_image_url = COALESCE($5, profile_image_url),
			updated_at = $6
		WHERE id = $1
		RETURNING `+userColumns,
		id.String(),
		update.Name,
		update.Skills,
		update.Location,
		update.ProfileImageURL,
		time.Now().UTC(),
	)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(errutil.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_UPDATE_PROFILE_FAILED").
			With("operation", "update profile").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr string
		role  string
		user  auth.User
	)
	err := row.Scan(
		&idStr,
		&user.Email,
		&user.Name,
		&role,
		&user.PasswordHash,
		&user.PasswordVersion,
		&user.Skills,
		&user.Location,
		&user.ProfileImageURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	user.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	user.Role = auth.Role(role)
	return &user, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
