// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// Login outcomes reported to a LoginRecorder.
const (
	LoginSucceeded          = "success"
	LoginMigrated           = "legacy_migrated"
	LoginInvalidCredentials = "invalid_credentials"
	LoginError              = "error"
)

// Client-facing messages shared by several operations.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgUserNotFound       = "User not found"
)

// LoginRecorder receives the outcome of every login attempt.
type LoginRecorder interface {
	RecordLogin(outcome string)
}

// ServiceConfig holds token lifetimes. Zero values select the defaults.
type ServiceConfig struct {
	SessionTTL time.Duration
	ResetTTL   time.Duration
}

// SignupInput is the data accepted by Signup.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	Skills   *string
	Location *string
}

// Session is a signed-in user and their session token.
type Session struct {
	User  PublicUser `json:"user"`
	Token string     `json:"token"`
}

// ResetRequest is the result of ForgotPassword. Token is empty when no
// account matched.
type ResetRequest struct {
	Token     string
	ExpiresIn time.Duration
}

// Service provides authentication operations.
type Service struct {
	users    UserRepository
	hasher   PasswordHasher
	tokens   *TokenIssuer
	cfg      ServiceConfig
	logger   *slog.Logger
	recorder LoginRecorder

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a Service that logs through slog.Default.
func NewService(users UserRepository, hasher PasswordHasher, tokens *TokenIssuer, cfg ServiceConfig) (*Service, error) {
	return NewServiceWithLogger(users, hasher, tokens, cfg, slog.Default())
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(
	users UserRepository,
	hasher PasswordHasher,
	tokens *TokenIssuer,
	cfg ServiceConfig,
	logger *slog.Logger,
) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("token issuer is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("logger is required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// SetLoginRecorder installs r to receive login outcomes.
func (s *Service) SetLoginRecorder(r LoginRecorder) {
	s.recorder = r
}

// Signup creates a volunteer or organization account and signs it in.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, errutil.Validation("AUTH_MISSING_FIELDS", "Name, email, and password are required")
	}
	role, err := ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	_, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, errutil.Conflict("AUTH_EMAIL_TAKEN", "User with this email already exists")
	case !errors.Is(err, errutil.ErrNotFound):
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, name, role, hash)
	if err != nil {
		return nil, err
	}
	user.Skills = optionalText(in.Skills)
	user.Location = optionalText(in.Location)

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, errutil.ErrConflict) {
			return nil, errutil.Conflict("AUTH_EMAIL_TAKEN", "User with this email already exists")
		}
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	session, err := s.newSession(user)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID.String(), "role", string(user.Role))
	return session, nil
}

// Login authenticates by email and password. A legacy plaintext password is
// replaced with a hash on success; if that write fails the login still
// succeeds and the migration is retried on the next login.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, errutil.Validation("AUTH_MISSING_FIELDS", "Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			// Keep response time independent of whether the email exists.
			s.hasher.Verify(password, s.dummy())
			s.record(LoginInvalidCredentials)
			return nil, errutil.Unauthenticated("AUTH_INVALID_CREDENTIALS", msgInvalidCredentials)
		}
		s.record(LoginError)
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	match := MatchPassword(s.hasher, password, user.PasswordHash)
	switch {
	case match == NoMatch:
		s.record(LoginInvalidCredentials)
		return nil, errutil.Unauthenticated("AUTH_INVALID_CREDENTIALS", msgInvalidCredentials)
	case match == LegacyPlaintextMatch:
		s.upgradeHash(ctx, user, password, "legacy plaintext")
	case s.hasher.NeedsUpgrade(user.PasswordHash):
		s.upgradeHash(ctx, user, password, "outdated hash")
	}

	session, err := s.newSession(user)
	if err != nil {
		s.record(LoginError)
		return nil, err
	}
	if match == LegacyPlaintextMatch {
		s.record(LoginMigrated)
	} else {
		s.record(LoginSucceeded)
	}
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String(), "match", match.String())
	return session, nil
}

// upgradeHash rewrites the stored representation with a fresh hash of
// password. Failures are logged and otherwise ignored.
func (s *Service) upgradeHash(ctx context.Context, user *User, password, why string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "best-effort password upgrade failed",
			"operation", "hash_password", "user_id", user.ID.String(), "reason", why, "error", err.Error())
		return
	}
	if err := s.users.UpgradePasswordHash(ctx, user.ID, hash); err != nil {
		s.logger.WarnContext(ctx, "best-effort password upgrade failed",
			"operation", "upgrade_password_hash", "user_id", user.ID.String(), "reason", why, "error", err.Error())
		return
	}
	user.PasswordHash = hash
	s.logger.InfoContext(ctx, "password hash upgraded", "user_id", user.ID.String(), "reason", why)
}

// CurrentUser returns the account identified by id.
func (s *Service) CurrentUser(ctx context.Context, id ulid.ULID) (*User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return nil, errutil.NotFound("AUTH_USER_NOT_FOUND", msgUserNotFound)
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("user_id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// AuthenticateSession verifies a bearer token and returns its claims.
// Purpose-scoped tokens are rejected.
func (s *Service) AuthenticateSession(token string) (*Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if !claims.IsSession() {
		return nil, oops.Code("AUTH_TOKEN_INVALID").
			With("purpose", claims.Purpose).
			Wrap(errutil.InvalidToken("AUTH_TOKEN_INVALID", "Invalid or expired token"))
	}
	return claims, nil
}

// ForgotPassword issues a reset token for the account with email. Unknown
// emails get an empty ResetRequest and no error.
func (s *Service) ForgotPassword(ctx context.Context, email string) (*ResetRequest, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, errutil.Validation("AUTH_MISSING_FIELDS", "Email is required")
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	result := &ResetRequest{ExpiresIn: s.cfg.ResetTTL}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return result, nil
		}
		return nil, oops.Code("AUTH_RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, err := s.tokens.Issue(Claims{
		UserID:          user.ID,
		Email:           user.Email,
		Purpose:         PurposePasswordReset,
		PasswordVersion: user.PasswordVersion,
	}, s.cfg.ResetTTL)
	if err != nil {
		return nil, oops.Code("AUTH_RESET_REQUEST_FAILED").
			With("operation", "issue reset token").
			Wrap(err)
	}
	result.Token = token
	s.logger.InfoContext(ctx, "password reset requested", "user_id", user.ID.String())
	return result, nil
}

// ResetPassword sets a new password using a reset token. A token stops
// working once the password it was issued against has changed.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return errutil.Validation("AUTH_MISSING_FIELDS", "Token and new password are required")
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}
	if claims.Purpose != PurposePasswordReset {
		return errutil.Validation("AUTH_TOKEN_WRONG_PURPOSE", "Invalid reset token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return errutil.InvalidToken("AUTH_TOKEN_INVALID", "Invalid or expired token")
		}
		return oops.Code("AUTH_RESET_FAILED").
			With("user_id", claims.UserID.String()).
			Wrap(err)
	}
	if user.PasswordVersion != claims.PasswordVersion {
		return errutil.InvalidToken("AUTH_TOKEN_USED", "Invalid or expired token")
	}

	if err := s.setPassword(ctx, user.ID, newPassword, "AUTH_RESET_FAILED"); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID.String())
	return nil
}

// ChangePassword replaces the caller's password after checking the current
// one. A legacy plaintext current password is accepted but not migrated here.
func (s *Service) ChangePassword(ctx context.Context, userID ulid.ULID, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return errutil.Validation("AUTH_MISSING_FIELDS", "Current password and new password are required")
	}

	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if !MatchPassword(s.hasher, currentPassword, user.PasswordHash).Matched() {
		return errutil.Unauthenticated("AUTH_CURRENT_PASSWORD_INCORRECT", "Current password is incorrect")
	}

	if err := s.setPassword(ctx, user.ID, newPassword, "AUTH_CHANGE_PASSWORD_FAILED"); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password changed", "user_id", user.ID.String())
	return nil
}

func (s *Service) setPassword(ctx context.Context, id ulid.ULID, password, code string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.Code(code).
			With("operation", "hash password").
			Wrap(err)
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return errutil.NotFound("AUTH_USER_NOT_FOUND", msgUserNotFound)
		}
		return oops.Code(code).
			With("operation", "update password").
			With("user_id", id.String()).
			Wrap(err)
	}
	return nil
}

func (s *Service) newSession(user *User) (*Session, error) {
	token, err := s.tokens.Issue(Claims{UserID: user.ID, Email: user.Email}, s.cfg.SessionTTL)
	if err != nil {
		return nil, oops.Code("AUTH_SESSION_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return &Session{User: user.Public(), Token: token}, nil
}

// dummy returns a real hash used to equalize timing for unknown emails.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("volunteerhub-timing-equalizer")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordLogin(outcome)
	}
}

func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
