// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package payment

import (
	"context"
	"fmt"
)

// CustomerInfo identifies the payer to the gateway.
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// InitiateRequest starts a gateway checkout.
type InitiateRequest struct {
	ReturnURL         string       `json:"return_url"`
	WebsiteURL        string       `json:"website_url"`
	Amount            int64        `json:"amount"`
	PurchaseOrderID   string       `json:"purchase_order_id"`
	PurchaseOrderName string       `json:"purchase_order_name"`
	CustomerInfo      CustomerInfo `json:"customer_info"`
}

// InitiateResponse is the gateway's answer to InitiateRequest.
type InitiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expires_at,omitempty"`
}

// LookupResponse reports the gateway's view of a payment. Raw holds the
// complete decoded body.
type LookupResponse struct {
	Pidx          string
	Status        string
	TransactionID *string
	TotalAmount   int64
	Raw           map[string]any
}

// Gateway is an external payment provider.
type Gateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
	Lookup(ctx context.Context, pidx string) (*LookupResponse, error)
}

// GatewayError is a non-2xx gateway response.
type GatewayError struct {
	StatusCode int
	Detail     string
	Body       map[string]any
}

func (e *GatewayError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("gateway returned %d", e.StatusCode)
}

// Temporary reports whether retrying the request may succeed.
func (e *GatewayError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
