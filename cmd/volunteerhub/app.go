// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package main

import (
	"log/slog"
	"time"

	"github.com/volunteerhub/volunteerhub/internal/auth"
	authpg "github.com/volunteerhub/volunteerhub/internal/auth/postgres"
	"github.com/volunteerhub/volunteerhub/internal/config"
	"github.com/volunteerhub/volunteerhub/internal/httpapi"
	"github.com/volunteerhub/volunteerhub/internal/messaging"
	messagingpg "github.com/volunteerhub/volunteerhub/internal/messaging/postgres"
	"github.com/volunteerhub/volunteerhub/internal/observability"
	"github.com/volunteerhub/volunteerhub/internal/opportunity"
	oppg "github.com/volunteerhub/volunteerhub/internal/opportunity/postgres"
	"github.com/volunteerhub/volunteerhub/internal/payment"
	paymentpg "github.com/volunteerhub/volunteerhub/internal/payment/postgres"
	"github.com/volunteerhub/volunteerhub/internal/profile"
	"github.com/volunteerhub/volunteerhub/internal/ratelimit"
	"github.com/volunteerhub/volunteerhub/internal/store"
)

// app is the wired API server and the resources it owns.
type app struct {
	server   *httpapi.Server
	limiters []*ratelimit.Limiter
}

// Close stops the limiters' cleanup goroutines.
func (a *app) Close() {
	for _, l := range a.limiters {
		l.Close()
	}
}

// newApp wires repositories over db into the services and the HTTP server.
// metrics may be nil when the observability server is disabled.
func newApp(cfg *config.Config, db store.DB, metrics *observability.Metrics, logger *slog.Logger) (*app, error) {
	users := authpg.NewUserRepository(db)

	hasher, err := auth.NewHasher(cfg.Auth.Hasher, cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}
	authSvc, err := auth.NewServiceWithLogger(users, hasher, tokens, auth.ServiceConfig{
		SessionTTL: cfg.Auth.SessionTTL.Std(),
		ResetTTL:   cfg.Auth.ResetTTL.Std(),
	}, logger)
	if err != nil {
		return nil, err
	}

	oppSvc, err := opportunity.NewServiceWithLogger(
		users,
		oppg.NewOpportunityRepository(db),
		oppg.NewApplicationRepository(db),
		oppg.NewCertificateRepository(db),
		opportunity.Config{CertificateBaseURL: cfg.HTTP.PublicBaseURL},
		logger,
	)
	if err != nil {
		return nil, err
	}

	msgSvc, err := messaging.NewService(users, messagingpg.NewMessageRepository(db), messaging.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	images, err := profile.NewDiskStore(cfg.HTTP.UploadsDir)
	if err != nil {
		return nil, err
	}
	profileSvc, err := profile.NewService(users, images, logger)
	if err != nil {
		return nil, err
	}

	gateway, err := payment.NewKhaltiClient(payment.KhaltiConfig{
		BaseURL:   cfg.Payments.APIURL,
		SecretKey: cfg.Payments.SecretKey,
		Timeout:   cfg.Payments.Timeout.Std(),
	})
	if err != nil {
		return nil, err
	}
	if cfg.Payments.SecretKey == "" {
		logger.Warn("payments.secret_key is empty; gateway calls will be rejected")
	}
	paySvc, err := payment.NewService(gateway, paymentpg.NewPaymentRepository(db),
		payment.Config{WebsiteURL: cfg.Payments.WebsiteURL}, logger)
	if err != nil {
		return nil, err
	}

	a := &app{}
	apiLimiter := a.limiter(cfg.HTTP.RateLimit, "api", metrics)
	paymentLimiter := a.limiter(cfg.Payments.RateLimit, "payments", metrics)

	httpCfg := httpapi.Config{
		Addr:           cfg.HTTP.Addr,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		UploadsDir:     cfg.HTTP.UploadsDir,
		APILimiter:     apiLimiter,
		PaymentLimiter: paymentLimiter,
	}
	if metrics != nil {
		authSvc.SetLoginRecorder(metrics)
		httpCfg.Observer = metrics
	}

	a.server, err = httpapi.NewServer(httpCfg, httpapi.Services{
		Auth:          authSvc,
		Opportunities: oppSvc,
		Messages:      msgSvc,
		Profiles:      profileSvc,
		Payments:      paySvc,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// limiter returns nil for a zero budget, which disables limiting.
func (a *app) limiter(l config.Limit, name string, metrics *observability.Metrics) *ratelimit.Limiter {
	if l.Burst == 0 && l.PerMinute == 0 {
		return nil
	}
	rc := ratelimit.Config{
		Burst:     l.Burst,
		PerMinute: l.PerMinute,
		MaxAge:    time.Hour,
	}
	if metrics != nil {
		rc.Gauge = metrics.RateLimitGauge(name)
	}
	limiter := ratelimit.New(rc)
	a.limiters = append(a.limiters, limiter)
	return limiter
}
