// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package messaging implements direct messages between users. Clients poll
// for new messages; there is no push channel.
package messaging

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/internal/auth"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// MaxContentLength is the longest message body accepted, in characters.
const MaxContentLength = 5000

// Message is a single direct message.
type Message struct {
	ID         ulid.ULID `json:"id"`
	SenderID   ulid.ULID `json:"senderId"`
	ReceiverID ulid.ULID `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Conversation summarizes the exchange with one counterpart.
type Conversation struct {
	UserID        ulid.ULID `json:"userId"`
	Name          string    `json:"name"`
	Role          auth.Role `json:"role"`
	LastMessage   string    `json:"lastMessage"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	LastSenderID  ulid.ULID `json:"lastSenderId"`
}

// Repository persists messages.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	// Between lists the messages exchanged by a and b, oldest first.
	Between(ctx context.Context, a, b ulid.ULID) ([]Message, error)
	// Conversations lists one entry per counterpart of userID, newest first.
	Conversations(ctx context.Context, userID ulid.ULID) ([]Conversation, error)
}

// NewMessage validates content and builds a message from sender to receiver.
func NewMessage(sender, receiver ulid.ULID, content string, now time.Time) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errutil.Validation("MESSAGE_MISSING_FIELDS", "Receiver and content are required")
	}
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return nil, oops.Code("MESSAGE_TOO_LONG").
			With("length", n).
			Wrap(errutil.Validation("MESSAGE_TOO_LONG", "Message is too long"))
	}
	if sender == receiver {
		return nil, errutil.Validation("MESSAGE_SELF", "Cannot send a message to yourself")
	}
	return &Message{
		ID:         ulid.Make(),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		CreatedAt:  now.UTC(),
	}, nil
}
