// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/internal/auth"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// Users resolves message counterparts.
type Users interface {
	GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error)
}

// Service sends and lists messages.
type Service struct {
	users    Users
	messages Repository
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used to timestamp messages.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a messaging Service.
func NewService(users Users, messages Repository, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("MESSAGE_INVALID_SERVICE").Errorf("users repository is required")
	}
	if messages == nil {
		return nil, oops.Code("MESSAGE_INVALID_SERVICE").Errorf("message repository is required")
	}
	s := &Service{users: users, messages: messages, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Send delivers content from senderID to the user identified by receiverID.
func (s *Service) Send(ctx context.Context, senderID ulid.ULID, receiverID, content string) (*Message, error) {
	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" || strings.TrimSpace(content) == "" {
		return nil, errutil.Validation("MESSAGE_MISSING_FIELDS", "Receiver and content are required")
	}
	receiver, err := s.counterpart(ctx, receiverID, "MESSAGE_RECEIVER_NOT_FOUND", "Receiver not found")
	if err != nil {
		return nil, err
	}
	msg, err := NewMessage(senderID, receiver, content, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, oops.Code("MESSAGE_SEND_FAILED").
			With("sender_id", senderID.String()).
			With("receiver_id", receiver.String()).
			Wrap(err)
	}
	s.logger.DebugContext(ctx, "message sent",
		"message_id", msg.ID.String(),
		"sender_id", senderID.String(),
		"receiver_id", receiver.String())
	return msg, nil
}

// Conversation returns the messages exchanged by userID and otherID, oldest
// first.
func (s *Service) Conversation(ctx context.Context, userID ulid.ULID, otherID string) ([]Message, error) {
	other, err := s.counterpart(ctx, otherID, "MESSAGE_USER_NOT_FOUND", "User not found")
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.Between(ctx, userID, other)
	if err != nil {
		return nil, oops.Code("MESSAGE_LIST_FAILED").
			With("user_id", userID.String()).
			With("other_id", other.String()).
			Wrap(err)
	}
	return msgs, nil
}

// Conversations returns one summary per counterpart of userID, most recent
// first.
func (s *Service) Conversations(ctx context.Context, userID ulid.ULID) ([]Conversation, error) {
	convs, err := s.messages.Conversations(ctx, userID)
	if err != nil {
		return nil, oops.Code("MESSAGE_CONVERSATIONS_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return convs, nil
}

// counterpart parses id and checks the user exists.
func (s *Service) counterpart(ctx context.Context, id, code, public string) (ulid.ULID, error) {
	uid, err := ulid.Parse(strings.TrimSpace(id))
	if err != nil {
		return ulid.ULID{}, errutil.NotFound(code, public)
	}
	if _, err := s.users.GetByID(ctx, uid); err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return ulid.ULID{}, errutil.NotFound(code, public)
		}
		return ulid.ULID{}, oops.Code("MESSAGE_USER_LOOKUP_FAILED").With("user_id", id).Wrap(err)
	}
	return uid, nil
}
