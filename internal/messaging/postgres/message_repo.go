// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package postgres implements the message repository on PostgreSQL.
package postgres

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/internal/auth"
	"github.com/volunteerhub/volunteerhub/internal/messaging"
	"github.com/volunteerhub/volunteerhub/internal/store"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// MessageRepository implements messaging.Repository using PostgreSQL.
type MessageRepository struct {
	db store.DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db store.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create stores a message.
func (r *MessageRepository) Create(ctx context.Context, m *messaging.Message) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID.String(), m.SenderID.String(), m.ReceiverID.String(), m.Content, m.CreatedAt)
	if err != nil {
		if store.IsForeignKeyViolation(err) {
			return oops.Code("MESSAGE_USER_NOT_FOUND").
				With("receiver_id", m.ReceiverID.String()).
				Wrap(errutil.ErrNotFound)
		}
		return oops.Code("MESSAGE_CREATE_FAILED").
			With("operation", "insert message").
			With("id", m.ID.String()).
			Wrap(err)
	}
	return nil
}

// Between lists the messages exchanged by a and b, oldest first.
func (r *MessageRepository) Between(ctx context.Context, a, b ulid.ULID) ([]messaging.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, sender_id, receiver_id, content, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC
	`, a.String(), b.String())
	if err != nil {
		return nil, oops.Code("MESSAGE_LIST_FAILED").With("user_id", a.String()).Wrap(err)
	}
	defer rows.Close()

	msgs := []messaging.Message{}
	for rows.Next() {
		var (
			m                       messaging.Message
			idStr, sender, receiver string
		)
		if err := rows.Scan(&idStr, &sender, &receiver, &m.Content, &m.CreatedAt); err != nil {
			return nil, oops.Code("MESSAGE_SCAN_FAILED").Wrap(err)
		}
		if m.ID, err = parseID(idStr, "message id"); err != nil {
			return nil, err
		}
		if m.SenderID, err = parseID(sender, "sender id"); err != nil {
			return nil, err
		}
		if m.ReceiverID, err = parseID(receiver, "receiver id"); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("MESSAGE_ITERATE_FAILED").Wrap(err)
	}
	return msgs, nil
}

// Conversations lists the latest message exchanged with each counterpart of
// userID, newest first.
func (r *MessageRepository) Conversations(ctx context.Context, userID ulid.ULID) ([]messaging.Conversation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.other_id, u.name, u.role, c.content, c.created_at, c.sender_id
		FROM (
			SELECT DISTINCT ON (other_id) other_id, content, created_at, sender_id
			FROM (
				SELECT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS other_id,
					content, created_at, sender_id, id
				FROM messages
				WHERE sender_id = $1 OR receiver_id = $1
			) m
			ORDER BY other_id, created_at DESC, id DESC
		) c
		JOIN users u ON u.id = c.other_id
		ORDER BY c.created_at DESC
	`, userID.String())
	if err != nil {
		return nil, oops.Code("MESSAGE_CONVERSATIONS_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	defer rows.Close()

	convs := []messaging.Conversation{}
	for rows.Next() {
		var (
			c             messaging.Conversation
			other, sender string
			role          string
		)
		if err := rows.Scan(&other, &c.Name, &role, &c.LastMessage, &c.LastMessageAt, &sender); err != nil {
			return nil, oops.Code("MESSAGE_SCAN_FAILED").Wrap(err)
		}
		if c.UserID, err = parseID(other, "user id"); err != nil {
			return nil, err
		}
		if c.LastSenderID, err = parseID(sender, "sender id"); err != nil {
			return nil, err
		}
		c.Role = auth.Role(role)
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("MESSAGE_ITERATE_FAILED").Wrap(err)
	}
	return convs, nil
}

func parseID(s, field string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_STORED_ID").With("field", field).With("value", s).Wrap(err)
	}
	return id, nil
}

// Compile-time interface check.
var _ messaging.Repository = (*MessageRepository)(nil)
