// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package postgres implements the payment repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/internal/payment"
	"github.com/volunteerhub/volunteerhub/internal/store"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

const paymentColumns = `id, pidx, status, amount_paisa, user_id, opportunity_id, transaction_id,
	metadata, created_at, updated_at`

// PaymentRepository implements payment.Repository using PostgreSQL.
type PaymentRepository struct {
	db store.DB
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db store.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create stores a new payment.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payments (id, pidx, status, amount_paisa, user_id, opportunity_id, transaction_id,
			metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID.String(), p.Pidx, string(p.Status), p.AmountPaisa, idString(p.UserID), idString(p.OpportunityID),
		p.TransactionID, p.Metadata, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err, "payments_pidx_key") {
			return oops.Code("PAYMENT_EXISTS").With("pidx", p.Pidx).Wrap(errutil.ErrConflict)
		}
		if store.IsForeignKeyViolation(err) {
			return oops.Code("PAYMENT_REFERENCE_MISSING").
				With("pidx", p.Pidx).
				Wrap(errutil.NotFound("PAYMENT_REFERENCE_MISSING", "Opportunity not found"))
		}
		return oops.Code("PAYMENT_CREATE_FAILED").
			With("operation", "insert payment").
			With("pidx", p.Pidx).
			Wrap(err)
	}
	return nil
}

// GetByPidx retrieves a payment by gateway index.
func (r *PaymentRepository) GetByPidx(ctx context.Context, pidx string) (*payment.Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE pidx = $1`, pidx)
	return one(row, pidx)
}

// ApplyVerification stores a lookup result and returns the updated payment.
func (r *PaymentRepository) ApplyVerification(ctx context.Context, pidx string, v payment.Verification) (*payment.Payment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE payments
		SET status = $2, transaction_id = $3, metadata = $4, updated_at = $5
		WHERE pidx = $1
		RETURNING `+paymentColumns,
		pidx, string(v.Status), v.TransactionID, v.Metadata, v.At)
	return one(row, pidx)
}

func one(row pgx.Row, pidx string) (*payment.Payment, error) {
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PAYMENT_NOT_FOUND").With("pidx", pidx).Wrap(errutil.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PAYMENT_GET_FAILED").With("pidx", pidx).Wrap(err)
	}
	return p, nil
}

// scanPayment scans a single payment row.
// Callers are responsible for handling pgx.ErrNoRows.
func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var (
		p             payment.Payment
		idStr, status string
		user, opp     *string
	)
	if err := row.Scan(&idStr, &p.Pidx, &status, &p.AmountPaisa, &user, &opp, &p.TransactionID,
		&p.Metadata, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
	}
	var err error
	if p.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("INVALID_STORED_ID").With("field", "payment id").With("value", idStr).Wrap(err)
	}
	if p.UserID, err = optionalID(user, "user id"); err != nil {
		return nil, err
	}
	if p.OpportunityID, err = optionalID(opp, "opportunity id"); err != nil {
		return nil, err
	}
	p.Status = payment.Status(status)
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	return &p, nil
}

func idString(id *ulid.ULID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func optionalID(s *string, field string) (*ulid.ULID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := ulid.Parse(*s)
	if err != nil {
		return nil, oops.Code("INVALID_STORED_ID").With("field", field).With("value", *s).Wrap(err)
	}
	return &id, nil
}

// Compile-time interface check.
var _ payment.Repository = (*PaymentRepository)(nil)
