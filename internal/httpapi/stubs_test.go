// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/volunteerhub/internal/auth"
	"github.com/volunteerhub/volunteerhub/internal/messaging"
	"github.com/volunteerhub/volunteerhub/internal/opportunity"
	"github.com/volunteerhub/volunteerhub/internal/payment"
	"github.com/volunteerhub/volunteerhub/internal/profile"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

const validToken = "valid-session-token"

var (
	callerULID = ulid.MustParse("01HZX3Y7K9Q2W4E6R8T0Y2V4M6")
	fixedNow   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type stubAuth struct {
	signup  func(auth.SignupInput) (*auth.Session, error)
	login   func(email, password string) (*auth.Session, error)
	current func(ulid.ULID) (*auth.User, error)
	forgot  func(email string) (*auth.ResetRequest, error)
	reset   func(token, password string) error
	change  func(id ulid.ULID, current, next string) error
}

func (s *stubAuth) AuthenticateSession(token string) (*auth.Claims, error) {
	if token != validToken {
		return nil, errutil.InvalidToken("AUTH_TOKEN_INVALID", "Invalid or expired token")
	}
	return &auth.Claims{UserID: callerULID, Email: "caller@example.com"}, nil
}

func (s *stubAuth) Signup(_ context.Context, in auth.SignupInput) (*auth.Session, error) {
	return s.signup(in)
}

func (s *stubAuth) Login(_ context.Context, email, password string) (*auth.Session, error) {
	return s.login(email, password)
}

func (s *stubAuth) CurrentUser(_ context.Context, id ulid.ULID) (*auth.User, error) {
	return s.current(id)
}

func (s *stubAuth) ForgotPassword(_ context.Context, email string) (*auth.ResetRequest, error) {
	return s.forgot(email)
}

func (s *stubAuth) ResetPassword(_ context.Context, token, password string) error {
	return s.reset(token, password)
}

func (s *stubAuth) ChangePassword(_ context.Context, id ulid.ULID, current, next string) error {
	return s.change(id, current, next)
}

type stubOpportunities struct {
	create       func(ulid.ULID, opportunity.CreateInput) (*opportunity.Opportunity, error)
	listOrg      func(ulid.ULID) ([]opportunity.Listing, error)
	browse       func(query, category string) ([]opportunity.Listing, error)
	apply        func(ulid.ULID, string) (*opportunity.Application, error)
	listMine     func(ulid.ULID) ([]opportunity.VolunteerApplication, error)
	listOrgApps  func(ulid.ULID) ([]opportunity.OrganizationApplication, error)
	updateStatus func(org ulid.ULID, id, status string) (*opportunity.Application, error)
	certify      func(org ulid.ULID, volunteer, opp string) (*opportunity.Certificate, error)
	certificates func(ulid.ULID) ([]opportunity.CertificateView, error)
}

func (s *stubOpportunities) CreateOpportunity(_ context.Context, org ulid.ULID, in opportunity.CreateInput) (*opportunity.Opportunity, error) {
	return s.create(org, in)
}

func (s *stubOpportunities) ListOrganizationOpportunities(_ context.Context, org ulid.ULID) ([]opportunity.Listing, error) {
	return s.listOrg(org)
}

func (s *stubOpportunities) Browse(_ context.Context, query, category string) ([]opportunity.Listing, error) {
	return s.browse(query, category)
}

func (s *stubOpportunities) Apply(_ context.Context, volunteer ulid.ULID, id string) (*opportunity.Application, error) {
	return s.apply(volunteer, id)
}

func (s *stubOpportunities) ListVolunteerApplications(_ context.Context, volunteer ulid.ULID) ([]opportunity.VolunteerApplication, error) {
	return s.listMine(volunteer)
}

func (s *stubOpportunities) ListOrganizationApplications(_ context.Context, org ulid.ULID) ([]opportunity.OrganizationApplication, error) {
	return s.listOrgApps(org)
}

func (s *stubOpportunities) UpdateApplicationStatus(_ context.Context, org ulid.ULID, id, status string) (*opportunity.Application, error) {
	return s.updateStatus(org, id, status)
}

func (s *stubOpportunities) GenerateCertificate(_ context.Context, org ulid.ULID, volunteer, opp string) (*opportunity.Certificate, error) {
	return s.certify(org, volunteer, opp)
}

func (s *stubOpportunities) ListCertificates(_ context.Context, user ulid.ULID) ([]opportunity.CertificateView, error) {
	return s.certificates(user)
}

type stubMessages struct {
	send          func(sender ulid.ULID, receiver, content string) (*messaging.Message, error)
	conversation  func(user ulid.ULID, other string) ([]messaging.Message, error)
	conversations func(user ulid.ULID) ([]messaging.Conversation, error)
}

func (s *stubMessages) Send(_ context.Context, sender ulid.ULID, receiver, content string) (*messaging.Message, error) {
	return s.send(sender, receiver, content)
}

func (s *stubMessages) Conversation(_ context.Context, user ulid.ULID, other string) ([]messaging.Message, error) {
	return s.conversation(user, other)
}

func (s *stubMessages) Conversations(_ context.Context, user ulid.ULID) ([]messaging.Conversation, error) {
	return s.conversations(user)
}

type stubProfiles struct {
	get    func(ulid.ULID) (*auth.Profile, error)
	update func(ulid.ULID, profile.UpdateInput) (*auth.Profile, error)
}

func (s *stubProfiles) Get(_ context.Context, id ulid.ULID) (*auth.Profile, error) {
	return s.get(id)
}

func (s *stubProfiles) Update(_ context.Context, id ulid.ULID, in profile.UpdateInput) (*auth.Profile, error) {
	return s.update(id, in)
}

type stubPayments struct {
	initiate func(payment.InitiateInput) (*payment.Checkout, error)
	verify   func(pidx string) (*payment.VerifyResult, error)
	callback func(pidx string) (*payment.VerifyResult, error)
}

func (s *stubPayments) Initiate(_ context.Context, in payment.InitiateInput) (*payment.Checkout, error) {
	return s.initiate(in)
}

func (s *stubPayments) Verify(_ context.Context, pidx string) (*payment.VerifyResult, error) {
	return s.verify(pidx)
}

func (s *stubPayments) Callback(_ context.Context, pidx string) (*payment.VerifyResult, error) {
	return s.callback(pidx)
}

type recordedRequest struct {
	method, route string
	status        int
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []recordedRequest
}

func (r *recordingObserver) ObserveRequest(method, route string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recordedRequest{method: method, route: route, status: status})
}

type harness struct {
	auth          *stubAuth
	opportunities *stubOpportunities
	messages      *stubMessages
	profiles      *stubProfiles
	payments      *stubPayments
	observer      *recordingObserver
	cfg           Config
}

func newHarness() *harness {
	gin.SetMode(gin.TestMode)
	return &harness{
		auth:          &stubAuth{},
		opportunities: &stubOpportunities{},
		messages:      &stubMessages{},
		profiles:      &stubProfiles{},
		payments:      &stubPayments{},
		observer:      &recordingObserver{},
		cfg: Config{
			CORSOrigins: []string{"http://localhost:*"},
			Now:         func() time.Time { return fixedNow },
		},
	}
}

func (h *harness) server(t *testing.T) *Server {
	t.Helper()
	h.cfg.Observer = h.observer
	srv, err := NewServer(h.cfg, Services{
		Auth:          h.auth,
		Opportunities: h.opportunities,
		Messages:      h.messages,
		Profiles:      h.profiles,
		Payments:      h.payments,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return srv
}

type response struct {
	Status int
	Header http.Header
	Body   map[string]any
}

func (h *harness) do(t *testing.T, method, path string, body any, headers ...string) response {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return h.send(t, req)
}

func (h *harness) send(t *testing.T, req *http.Request) response {
	t.Helper()
	rec := httptest.NewRecorder()
	h.server(t).Handler().ServeHTTP(rec, req)

	out := response{Status: rec.Code, Header: rec.Header()}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out.Body), rec.Body.String())
	}
	return out
}

func bearer() []string {
	return []string{"Authorization", "Bearer " + validToken}
}
