// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	initiatePath = "/api/v2/epayment/initiate/"
	lookupPath   = "/api/v2/epayment/lookup/"

	// maxResponseBytes bounds gateway response bodies.
	maxResponseBytes = 1 << 20
)

// KhaltiConfig configures a KhaltiClient.
type KhaltiConfig struct {
	BaseURL   string
	SecretKey string
	// Timeout bounds a single HTTP attempt. Zero means 15s.
	Timeout time.Duration
	// LookupRetries is the number of extra lookup attempts after a
	// transient failure. Zero means 3; negative disables retries.
	LookupRetries int
	// RetryDelay is the first retry delay; it doubles on every retry.
	// Zero means 250ms.
	RetryDelay time.Duration
	// Transport overrides the base round tripper. Tests only.
	Transport http.RoundTripper
}

// KhaltiClient talks to the Khalti ePayment API.
type KhaltiClient struct {
	baseURL    string
	secretKey  string
	http       *http.Client
	retries    uint64
	retryDelay time.Duration
}

// NewKhaltiClient creates a client for cfg.BaseURL. Requests are traced
// with OpenTelemetry.
func NewKhaltiClient(cfg KhaltiConfig) (*KhaltiClient, error) {
	if cfg.BaseURL == "" {
		return nil, oops.Code("PAYMENT_GATEWAY_CONFIG_INVALID").Errorf("gateway base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	retries := uint64(3)
	switch {
	case cfg.LookupRetries < 0:
		retries = 0
	case cfg.LookupRetries > 0:
		retries = uint64(cfg.LookupRetries)
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &KhaltiClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(base),
		},
		retries:    retries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Initiate starts a checkout. It is not retried: a lost response may
// already have created a payment on the gateway.
func (c *KhaltiClient) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	var out InitiateResponse
	if _, err := c.post(ctx, initiatePath, req, &out); err != nil {
		return nil, err
	}
	if out.Pidx == "" {
		return nil, oops.Code("PAYMENT_GATEWAY_BAD_RESPONSE").Errorf("initiate response has no pidx")
	}
	return &out, nil
}

// Lookup fetches the current state of pidx, retrying transport failures
// and 5xx responses with exponential backoff.
func (c *KhaltiClient) Lookup(ctx context.Context, pidx string) (*LookupResponse, error) {
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.retryDelay))

	var out *LookupResponse
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var body struct {
			Pidx          string  `json:"pidx"`
			Status        string  `json:"status"`
			TransactionID *string `json:"transaction_id"`
			TotalAmount   int64   `json:"total_amount"`
		}
		raw, err := c.post(ctx, lookupPath, map[string]string{"pidx": pidx}, &body)
		if err != nil {
			var gwErr *GatewayError
			if errors.As(err, &gwErr) && !gwErr.Temporary() {
				return err
			}
			return retry.RetryableError(err)
		}
		out = &LookupResponse{
			Pidx:          body.Pidx,
			Status:        body.Status,
			TransactionID: body.TransactionID,
			TotalAmount:   body.TotalAmount,
			Raw:           raw,
		}
		return nil
	})
	if err != nil {
		return nil, oops.Code("PAYMENT_LOOKUP_FAILED").With("pidx", pidx).With("attempts", attempt).Wrap(err)
	}
	return out, nil
}

// post sends payload as JSON and decodes a 2xx response into out. It also
// returns the response as a generic map.
func (c *KhaltiClient) post(ctx context.Context, path string, payload, out any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, oops.Code("PAYMENT_GATEWAY_ENCODE_FAILED").Wrap(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, oops.Code("PAYMENT_GATEWAY_REQUEST_FAILED").With("path", path).Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, oops.Code("PAYMENT_GATEWAY_UNREACHABLE").With("path", path).Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, oops.Code("PAYMENT_GATEWAY_READ_FAILED").With("path", path).Wrap(err)
	}
	raw := map[string]any{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil && resp.StatusCode < 300 {
			return nil, oops.Code("PAYMENT_GATEWAY_BAD_RESPONSE").With("path", path).Wrap(err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := raw["detail"].(string)
		return nil, oops.Code("PAYMENT_GATEWAY_REJECTED").
			With("path", path).
			With("status", resp.StatusCode).
			Wrap(&GatewayError{StatusCode: resp.StatusCode, Detail: detail, Body: raw})
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, oops.Code("PAYMENT_GATEWAY_BAD_RESPONSE").With("path", path).Wrap(err)
	}
	return raw, nil
}

// Compile-time interface check.
var _ Gateway = (*KhaltiClient)(nil)
