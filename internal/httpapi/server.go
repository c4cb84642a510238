// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package httpapi exposes the VolunteerHub services as a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/internal/auth"
	"github.com/volunteerhub/volunteerhub/internal/messaging"
	"github.com/volunteerhub/volunteerhub/internal/opportunity"
	"github.com/volunteerhub/volunteerhub/internal/payment"
	"github.com/volunteerhub/volunteerhub/internal/profile"
	"github.com/volunteerhub/volunteerhub/internal/ratelimit"
)

// AuthService is the account surface the API needs.
type AuthService interface {
	SessionAuthenticator
	Signup(ctx context.Context, in auth.SignupInput) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	CurrentUser(ctx context.Context, id ulid.ULID) (*auth.User, error)
	ForgotPassword(ctx context.Context, email string) (*auth.ResetRequest, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, userID ulid.ULID, currentPassword, newPassword string) error
}

// OpportunityService manages opportunities, applications and certificates.
type OpportunityService interface {
	CreateOpportunity(ctx context.Context, organizationID ulid.ULID, in opportunity.CreateInput) (*opportunity.Opportunity, error)
	ListOrganizationOpportunities(ctx context.Context, organizationID ulid.ULID) ([]opportunity.Listing, error)
	Browse(ctx context.Context, query, category string) ([]opportunity.Listing, error)
	Apply(ctx context.Context, volunteerID ulid.ULID, opportunityID string) (*opportunity.Application, error)
	ListVolunteerApplications(ctx context.Context, volunteerID ulid.ULID) ([]opportunity.VolunteerApplication, error)
	ListOrganizationApplications(ctx context.Context, organizationID ulid.ULID) ([]opportunity.OrganizationApplication, error)
	UpdateApplicationStatus(ctx context.Context, organizationID ulid.ULID, applicationID, status string) (*opportunity.Application, error)
	GenerateCertificate(ctx context.Context, organizationID ulid.ULID, volunteerID, opportunityID string) (*opportunity.Certificate, error)
	ListCertificates(ctx context.Context, userID ulid.ULID) ([]opportunity.CertificateView, error)
}

// MessagingService sends and lists direct messages.
type MessagingService interface {
	Send(ctx context.Context, senderID ulid.ULID, receiverID, content string) (*messaging.Message, error)
	Conversation(ctx context.Context, userID ulid.ULID, otherID string) ([]messaging.Message, error)
	Conversations(ctx context.Context, userID ulid.ULID) ([]messaging.Conversation, error)
}

// ProfileService reads and updates the caller's profile.
type ProfileService interface {
	Get(ctx context.Context, userID ulid.ULID) (*auth.Profile, error)
	Update(ctx context.Context, userID ulid.ULID, in profile.UpdateInput) (*auth.Profile, error)
}

// PaymentService runs donations through the payment gateway.
type PaymentService interface {
	Initiate(ctx context.Context, in payment.InitiateInput) (*payment.Checkout, error)
	Verify(ctx context.Context, pidx string) (*payment.VerifyResult, error)
	Callback(ctx context.Context, pidx string) (*payment.VerifyResult, error)
}

// Services are the handlers' dependencies. All are required.
type Services struct {
	Auth          AuthService
	Opportunities OpportunityService
	Messages      MessagingService
	Profiles      ProfileService
	Payments      PaymentService
}

// Config configures a Server.
type Config struct {
	Addr        string
	CORSOrigins []string
	// UploadsDir is served under /uploads when set.
	UploadsDir string
	// APILimiter applies to every /api route when set.
	APILimiter *ratelimit.Limiter
	// PaymentLimiter applies to /api/payments when set.
	PaymentLimiter *ratelimit.Limiter
	// Observer receives per-request metrics when set.
	Observer RequestObserver
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// Server is the public API server.
type Server struct {
	cfg        Config
	svc        Services
	logger     *slog.Logger
	router     *gin.Engine
	httpServer *http.Server
	running    atomic.Bool
	now        func() time.Time
}

// NewServer builds the router for svc.
func NewServer(cfg Config, svc Services, logger *slog.Logger) (*Server, error) {
	switch {
	case svc.Auth == nil, svc.Opportunities == nil, svc.Messages == nil,
		svc.Profiles == nil, svc.Payments == nil:
		return nil, oops.Code("HTTP_INVALID_SERVER").Errorf("all services are required")
	case logger == nil:
		return nil, oops.Code("HTTP_INVALID_SERVER").Errorf("logger is required")
	}
	cors, err := CORS(cfg.CORSOrigins)
	if err != nil {
		return nil, err
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	r := gin.New()
	r.HandleMethodNotAllowed = false
	r.Use(Recovery(logger))
	r.Use(RequestLogger(logger, cfg.Observer))
	r.Use(cors)

	s := &Server{cfg: cfg, svc: svc, logger: logger, router: r, now: now}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	if s.cfg.UploadsDir != "" {
		r.Static("/uploads", s.cfg.UploadsDir)
	}
	r.NoRoute(func(c *gin.Context) {
		reject(c, http.StatusNotFound, msgRouteNotFound)
	})

	api := r.Group("/api")
	if s.cfg.APILimiter != nil {
		api.Use(RateLimit(s.cfg.APILimiter))
	}
	api.GET("/health", s.health)

	authed := RequireAuth(s.svc.Auth, s.logger)

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", s.signup)
	authGroup.POST("/login", s.login)
	authGroup.POST("/forgot-password", s.forgotPassword)
	authGroup.POST("/reset-password", s.resetPassword)
	authGroup.GET("/me", authed, s.me)
	authGroup.POST("/change-password", authed, s.changePassword)

	payments := api.Group("/payments")
	if s.cfg.PaymentLimiter != nil {
		payments.Use(RateLimit(s.cfg.PaymentLimiter))
	}
	payments.Use(OptionalAuth(s.svc.Auth))
	payments.POST("/initiate", s.initiatePayment)
	payments.POST("/verify", s.verifyPayment)
	payments.POST("/callback", s.paymentCallback)

	profileGroup := api.Group("/profile", authed)
	profileGroup.GET("/me", s.getProfile)
	profileGroup.PATCH("", s.updateProfile)

	volunteer := api.Group("/volunteer", authed)
	volunteer.GET("/opportunities/browse", s.browseOpportunities)
	volunteer.POST("/opportunities/:opportunityId/apply", s.apply)
	volunteer.GET("/applications/my", s.myApplications)
	volunteer.POST("/messages/send", s.sendMessage)
	volunteer.GET("/messages/conversations", s.conversations)
	volunteer.GET("/messages/:userId", s.conversation)
	volunteer.GET("/certificates/my", s.myCertificates)

	org := api.Group("", authed)
	org.POST("/opportunities/create", s.createOpportunity)
	org.GET("/opportunities", s.organizationOpportunities)
	org.GET("/applications", s.organizationApplications)
	org.PATCH("/applications/:id/status", s.updateApplicationStatus)
	org.POST("/messages/send", s.sendMessage)
	org.GET("/messages/conversations", s.conversations)
	org.GET("/messages/:userId", s.conversation)
	org.POST("/certificates/generate", s.generateCertificate)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Server is running",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	})
}

// ListenAndServe serves the API on cfg.Addr until Shutdown is called. It
// returns nil after a graceful shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return oops.Code("HTTP_ALREADY_RUNNING").Errorf("api server already running")
	}
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	s.logger.InfoContext(ctx, "api server listening", "addr", listener.Addr().String())

	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return oops.Code("HTTP_SERVE_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// expires. A server shut down before it started never serves.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}
