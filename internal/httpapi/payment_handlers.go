// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/volunteerhub/volunteerhub/internal/payment"
)

// flexString accepts a JSON string or number, the forms clients send
// amounts in.
type flexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type initiatePaymentRequest struct {
	AmountNpr         flexString `json:"amountNpr"`
	OpportunityID     string     `json:"opportunityId"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	PurchaseOrderName string     `json:"purchaseOrderName"`
}

type pidxRequest struct {
	Pidx string `json:"pidx"`
}

func (s *Server) initiatePayment(c *gin.Context) {
	var req initiatePaymentRequest
	if !s.bindJSON(c, &req) {
		return
	}
	in := payment.InitiateInput{
		AmountNpr:         string(req.AmountNpr),
		OpportunityID:     req.OpportunityID,
		Name:              req.Name,
		Email:             req.Email,
		PurchaseOrderName: req.PurchaseOrderName,
	}
	if claims, found := claimsFrom(c); found {
		id := claims.UserID
		in.UserID = &id
	}
	checkout, err := s.svc.Payments.Initiate(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", checkout)
}

// verifyPayment takes pidx from the body, falling back to the query string
// used by the gateway's return URL.
func (s *Server) verifyPayment(c *gin.Context) {
	var req pidxRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if req.Pidx == "" {
		req.Pidx = c.Query("pidx")
	}
	result, err := s.svc.Payments.Verify(c.Request.Context(), req.Pidx)
	s.writeVerification(c, result, err)
}

func (s *Server) paymentCallback(c *gin.Context) {
	var req pidxRequest
	if !s.bindJSON(c, &req) {
		return
	}
	result, err := s.svc.Payments.Callback(c.Request.Context(), req.Pidx)
	s.writeVerification(c, result, err)
}

func (s *Server) writeVerification(c *gin.Context, result *payment.VerifyResult, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	message := ""
	if result.AlreadyVerified {
		message = "Payment already verified"
	}
	ok(c, http.StatusOK, message, result.Payment)
}
