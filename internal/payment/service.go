// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package payment

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// Defaults applied to blank initiate fields.
const (
	DefaultOrderName     = "Volunteer Donation"
	DefaultCustomerName  = "Donor"
	DefaultCustomerEmail = "donor@example.com"
)

// Config configures a Service.
type Config struct {
	// WebsiteURL is the frontend origin the gateway returns the payer to.
	WebsiteURL string
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// InitiateInput describes a donation to start.
type InitiateInput struct {
	AmountNpr         string
	OpportunityID     string
	Name              string
	Email             string
	PurchaseOrderName string
	// UserID is the authenticated donor, if any.
	UserID *ulid.ULID
}

// Checkout is returned to the client to continue payment on the gateway.
type Checkout struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
}

// VerifyResult is a payment after verification. AlreadyVerified is set when
// the payment was final before this call.
type VerifyResult struct {
	Payment         *Payment
	AlreadyVerified bool
}

// Service implements donation operations.
type Service struct {
	gateway  Gateway
	payments Repository
	website  string
	now      func() time.Time
	logger   *slog.Logger
}

// NewService creates a payment Service.
func NewService(gateway Gateway, payments Repository, cfg Config, logger *slog.Logger) (*Service, error) {
	if gateway == nil || payments == nil {
		return nil, oops.Code("PAYMENT_INVALID_SERVICE").Errorf("gateway and repository are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		gateway:  gateway,
		payments: payments,
		website:  strings.TrimRight(cfg.WebsiteURL, "/"),
		now:      now,
		logger:   logger,
	}, nil
}

// Initiate starts a gateway checkout and records the payment as INITIATED.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (*Checkout, error) {
	if strings.TrimSpace(in.AmountNpr) == "" {
		return nil, errutil.Validation("PAYMENT_MISSING_AMOUNT", "amountNpr is required")
	}
	amount, err := ToPaisa(in.AmountNpr)
	if err != nil {
		return nil, err
	}
	var opportunityID *ulid.ULID
	if id := strings.TrimSpace(in.OpportunityID); id != "" {
		parsed, err := ulid.Parse(id)
		if err != nil {
			return nil, errutil.Validation("PAYMENT_INVALID_OPPORTUNITY", "Opportunity is invalid")
		}
		opportunityID = &parsed
	}

	now := s.now().UTC()
	orderID := "order_" + strconv.FormatInt(now.UnixMilli(), 10)
	orderName := orDefault(in.PurchaseOrderName, DefaultOrderName)
	resp, err := s.gateway.Initiate(ctx, InitiateRequest{
		ReturnURL:         s.website + "/payment-return",
		WebsiteURL:        s.website,
		Amount:            amount,
		PurchaseOrderID:   orderID,
		PurchaseOrderName: orderName,
		CustomerInfo: CustomerInfo{
			Name:  orDefault(in.Name, DefaultCustomerName),
			Email: orDefault(in.Email, DefaultCustomerEmail),
		},
	})
	if err != nil {
		return nil, gatewayFailure(err, "PAYMENT_INITIATE_FAILED", "Failed to initiate payment")
	}

	p := &Payment{
		ID:            ulid.Make(),
		Pidx:          resp.Pidx,
		Status:        StatusInitiated,
		AmountPaisa:   amount,
		UserID:        in.UserID,
		OpportunityID: opportunityID,
		Metadata: map[string]any{
			"name":      nullable(in.Name),
			"email":     nullable(in.Email),
			"orderId":   orderID,
			"orderName": orderName,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, oops.Code("PAYMENT_RECORD_FAILED").With("pidx", resp.Pidx).Wrap(err)
	}
	s.logger.InfoContext(ctx, "payment initiated",
		"payment_id", p.ID.String(),
		"pidx", p.Pidx,
		"amount_paisa", amount)
	return &Checkout{Pidx: resp.Pidx, PaymentURL: resp.PaymentURL}, nil
}

// Verify refreshes a payment from the gateway. Final payments are returned
// without a lookup.
func (s *Service) Verify(ctx context.Context, pidx string) (*VerifyResult, error) {
	return s.verify(ctx, pidx, "pidx is required")
}

// Callback handles the gateway's return redirect. It is Verify with its own
// missing-field message.
func (s *Service) Callback(ctx context.Context, pidx string) (*VerifyResult, error) {
	return s.verify(ctx, pidx, "pidx is required in callback")
}

func (s *Service) verify(ctx context.Context, pidx, missing string) (*VerifyResult, error) {
	pidx = strings.TrimSpace(pidx)
	if pidx == "" {
		return nil, errutil.Validation("PAYMENT_MISSING_PIDX", missing)
	}
	p, err := s.payments.GetByPidx(ctx, pidx)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return nil, errutil.NotFound("PAYMENT_NOT_FOUND", "Payment not found")
		}
		return nil, oops.Code("PAYMENT_GET_FAILED").With("pidx", pidx).Wrap(err)
	}
	if p.Status.Terminal() {
		return &VerifyResult{Payment: p, AlreadyVerified: true}, nil
	}

	lookup, err := s.gateway.Lookup(ctx, pidx)
	if err != nil {
		return nil, gatewayFailure(err, "PAYMENT_VERIFY_FAILED", "Failed to verify payment")
	}

	metadata := make(map[string]any, len(p.Metadata)+1)
	for k, v := range p.Metadata {
		metadata[k] = v
	}
	metadata["rawVerify"] = lookup.Raw

	status := MapGatewayStatus(lookup.Status)
	updated, err := s.payments.ApplyVerification(ctx, pidx, Verification{
		Status:        status,
		TransactionID: lookup.TransactionID,
		Metadata:      metadata,
		At:            s.now().UTC(),
	})
	if err != nil {
		return nil, oops.Code("PAYMENT_UPDATE_FAILED").With("pidx", pidx).Wrap(err)
	}
	s.logger.InfoContext(ctx, "payment verified",
		"payment_id", updated.ID.String(),
		"pidx", pidx,
		"gateway_status", lookup.Status,
		"status", string(status))
	return &VerifyResult{Payment: updated}, nil
}

// gatewayFailure classifies a gateway error. Rejections by the gateway are
// the caller's problem; everything else is an upstream failure.
func gatewayFailure(err error, code, fallback string) error {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && !gwErr.Temporary() {
		msg := gwErr.Detail
		if msg == "" {
			msg = fallback
		}
		return oops.Code(code).
			With("gateway_status", gwErr.StatusCode).
			Wrap(errutil.Validation(code, msg))
	}
	return oops.Code(code).Public(fallback).Wrap(errors.Join(errutil.ErrUpstream, err))
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func nullable(s string) any {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return nil
}
