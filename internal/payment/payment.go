// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package payment records donations collected through an external payment
// gateway.
package payment

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// Status is the lifecycle state of a payment.
type Status string

// Payment statuses.
const (
	StatusInitiated Status = "INITIATED"
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRefunded
}

// MapGatewayStatus converts a gateway lookup status. Anything not final is
// PENDING.
func MapGatewayStatus(s string) Status {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusCompleted, StatusFailed, StatusRefunded:
		return st
	default:
		return StatusPending
	}
}

// Payment is a donation tracked by the gateway's payment index.
type Payment struct {
	ID            ulid.ULID      `json:"id"`
	Pidx          string         `json:"pidx"`
	Status        Status         `json:"status"`
	AmountPaisa   int64          `json:"amountPaisa"`
	UserID        *ulid.ULID     `json:"userId"`
	OpportunityID *ulid.ULID     `json:"opportunityId"`
	TransactionID *string        `json:"transactionId"`
	Metadata      map[string]any `json:"metadata"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Verification is the result of a gateway lookup to store on a payment.
type Verification struct {
	Status        Status
	TransactionID *string
	Metadata      map[string]any
	At            time.Time
}

// Repository persists payments.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	// GetByPidx returns an error wrapping errutil.ErrNotFound if absent.
	GetByPidx(ctx context.Context, pidx string) (*Payment, error)
	// ApplyVerification stores v and returns the updated payment.
	ApplyVerification(ctx context.Context, pidx string, v Verification) (*Payment, error)
}

// ToPaisa converts an amount in rupees to paisa, rounding to the nearest
// paisa. The result must be positive.
func ToPaisa(npr string) (int64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(npr), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errutil.Validation("PAYMENT_INVALID_AMOUNT", "Invalid amount")
	}
	paisa := math.Round(v * 100)
	if paisa <= 0 || paisa > math.MaxInt64/2 {
		return 0, errutil.Validation("PAYMENT_INVALID_AMOUNT", "Invalid amount")
	}
	return int64(paisa), nil
}
