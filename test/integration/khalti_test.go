// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

//go:build integration

package integration_test

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/oklog/ulid/v2"
)

// fakeKhalti is an in-memory stand-in for the Khalti ePayment API.
type fakeKhalti struct {
	mu       sync.Mutex
	payments map[string]*fakePayment
	lookups  int
}

type fakePayment struct {
	amount      int64
	status      string
	transaction string
}

func newFakeKhalti() *fakeKhalti {
	return &fakeKhalti{payments: map[string]*fakePayment{}}
}

// settle moves pidx to a final gateway status.
func (k *fakeKhalti) settle(pidx, status string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p := k.payments[pidx]
	p.status = status
	p.transaction = "txn-" + pidx
}

func (k *fakeKhalti) lookupCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lookups
}

func (k *fakeKhalti) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Key test-secret-key" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid token."})
		return
	}
	switch r.URL.Path {
	case "/api/v2/epayment/initiate/":
		var req struct {
			Amount    int64  `json:"amount"`
			ReturnURL string `json:"return_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount < 1000 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Amount should be greater than Rs. 10"})
			return
		}
		pidx := ulid.Make().String()
		k.mu.Lock()
		k.payments[pidx] = &fakePayment{amount: req.Amount, status: "Initiated"}
		k.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"pidx":        pidx,
			"payment_url": "https://test-pay.khalti.com/?pidx=" + pidx,
		})
	case "/api/v2/epayment/lookup/":
		var req struct {
			Pidx string `json:"pidx"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		k.mu.Lock()
		k.lookups++
		p, ok := k.payments[req.Pidx]
		var body map[string]any
		if ok {
			body = map[string]any{
				"pidx":         req.Pidx,
				"total_amount": p.amount,
				"status":       p.status,
				"fee":          0,
				"refunded":     false,
			}
			if p.transaction != "" {
				body["transaction_id"] = p.transaction
			}
		}
		k.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
			return
		}
		writeJSON(w, http.StatusOK, body)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
