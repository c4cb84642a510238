// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/volunteerhub/internal/payment"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

var (
	at             = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	paymentColumns = []string{
		"id", "pidx", "status", "amount_paisa", "user_id", "opportunity_id", "transaction_id",
		"metadata", "created_at", "updated_at",
	}
)

func ptr[T any](v T) *T { return &v }

func TestPaymentRepository_Create(t *testing.T) {
	user := ulid.Make()
	p := &payment.Payment{
		ID: ulid.Make(), Pidx: "px1", Status: payment.StatusInitiated, AmountPaisa: 1000,
		UserID: &user, Metadata: map[string]any{"orderId": "order_1"}, CreatedAt: at, UpdatedAt: at,
	}

	tests := []struct {
		name     string
		dbErr    error
		wantCode string
		wantKind error
	}{
		{name: "inserts"},
		{name: "duplicate pidx", dbErr: &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "payments_pidx_key"}, wantCode: "PAYMENT_EXISTS", wantKind: errutil.ErrConflict},
		{name: "unknown opportunity", dbErr: &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, wantCode: "PAYMENT_REFERENCE_MISSING", wantKind: errutil.ErrNotFound},
		{name: "database error", dbErr: errors.New("broken pipe"), wantCode: "PAYMENT_CREATE_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			exec := mock.ExpectExec(`INSERT INTO payments`).
				WithArgs(p.ID.String(), "px1", "INITIATED", int64(1000), ptr(user.String()), (*string)(nil),
					(*string)(nil), p.Metadata, at, at)
			if tt.dbErr != nil {
				exec.WillReturnError(tt.dbErr)
			} else {
				exec.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			err = NewPaymentRepository(mock).Create(context.Background(), p)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.NoError(t, mock.ExpectationsWereMet())
				return
			}
			errutil.AssertErrorCode(t, err, tt.wantCode)
			if tt.wantKind != nil {
				errutil.AssertErrorKind(t, err, tt.wantKind)
			}
		})
	}
}

func TestPaymentRepository_GetByPidx(t *testing.T) {
	id, opp := ulid.Make(), ulid.Make()

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM payments WHERE pidx = \$1`).WithArgs("px1").
			WillReturnRows(pgxmock.NewRows(paymentColumns).AddRow(
				id.String(), "px1", "PENDING", int64(500), (*string)(nil), ptr(opp.String()), (*string)(nil),
				map[string]any{"orderId": "order_1"}, at, at))

		p, err := NewPaymentRepository(mock).GetByPidx(context.Background(), "px1")
		require.NoError(t, err)
		assert.Equal(t, id, p.ID)
		assert.Equal(t, payment.StatusPending, p.Status)
		assert.Nil(t, p.UserID)
		require.NotNil(t, p.OpportunityID)
		assert.Equal(t, opp, *p.OpportunityID)
		assert.Equal(t, "order_1", p.Metadata["orderId"])
	})

	t.Run("missing", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM payments`).WithArgs("nope").WillReturnRows(pgxmock.NewRows(paymentColumns))

		_, err = NewPaymentRepository(mock).GetByPidx(context.Background(), "nope")
		errutil.AssertErrorKind(t, err, errutil.ErrNotFound)
		errutil.AssertErrorCode(t, err, "PAYMENT_NOT_FOUND")
	})
}

func TestPaymentRepository_ApplyVerification(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := ulid.Make()
	meta := map[string]any{"rawVerify": map[string]any{"status": "Completed"}}
	mock.ExpectQuery(`UPDATE payments\s+SET status = \$2, transaction_id = \$3, metadata = \$4, updated_at = \$5\s+WHERE pidx = \$1\s+RETURNING`).
		WithArgs("px1", "COMPLETED", ptr("tx9"), meta, at).
		WillReturnRows(pgxmock.NewRows(paymentColumns).AddRow(
			id.String(), "px1", "COMPLETED", int64(500), (*string)(nil), (*string)(nil), ptr("tx9"), meta, at, at))

	p, err := NewPaymentRepository(mock).ApplyVerification(context.Background(), "px1", payment.Verification{
		Status: payment.StatusCompleted, TransactionID: ptr("tx9"), Metadata: meta, At: at,
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, p.Status)
	assert.Equal(t, "tx9", *p.TransactionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
