// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package httpapi

import (
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/volunteerhub/volunteerhub/internal/auth"
	"github.com/volunteerhub/volunteerhub/internal/ratelimit"
)

const (
	tracerName = "github.com/volunteerhub/volunteerhub/internal/httpapi"
	claimsKey  = "volunteerhub.claims"
)

// RequestObserver records per-request metrics.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// RequestLogger starts a span for each request, then logs and records it
// once the handler chain returns.
func RequestLogger(logger *slog.Logger, observer RequestObserver) gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
			))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if observer != nil {
			observer.ObserveRequest(c.Request.Method, route, status, latency)
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", route,
			"status", status,
			"client_ip", c.ClientIP(),
			"latency_ms", latency.Milliseconds(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.ErrorContext(ctx, "http request", attrs...)
		case status >= http.StatusBadRequest:
			logger.WarnContext(ctx, "http request", attrs...)
		default:
			logger.InfoContext(ctx, "http request", attrs...)
		}
	}
}

// Recovery turns a handler panic into a 500 envelope.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.ErrorContext(c.Request.Context(), "panic in handler",
			"route", c.FullPath(), "panic", recovered)
		reject(c, http.StatusInternalServerError, msgInternal)
	})
}

// CORS allows browser requests from origins matching any of patterns
// ("http://localhost:*"). Preflight requests are answered directly.
func CORS(patterns []string) (gin.HandlerFunc, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.TrimSpace(p))
		if err != nil {
			return nil, oops.Code("HTTP_INVALID_CORS_ORIGIN").With("pattern", p).Wrap(err)
		}
		globs = append(globs, g)
	}
	allowed := func(origin string) bool {
		return lo.ContainsBy(globs, func(g glob.Glob) bool { return g.Match(origin) })
	}

	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" && allowed(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}, nil
}

// SessionAuthenticator verifies bearer session tokens.
type SessionAuthenticator interface {
	AuthenticateSession(token string) (*auth.Claims, error)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireAuth rejects requests without a valid session token: 401 when
// none is sent, 403 when it does not verify.
func RequireAuth(authn SessionAuthenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			reject(c, http.StatusUnauthorized, msgNoToken)
			return
		}
		claims, err := authn.AuthenticateSession(token)
		if err != nil {
			logger.DebugContext(c.Request.Context(), "bearer token rejected", "error", err.Error())
			reject(c, http.StatusForbidden, msgInvalidToken)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// OptionalAuth attaches the caller's claims when a valid session token is
// sent and otherwise lets the request through anonymously.
func OptionalAuth(authn SessionAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := authn.AuthenticateSession(token); err == nil {
				c.Set(claimsKey, claims)
			}
		}
		c.Next()
	}
}

// RateLimit applies limiter per client IP.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := limiter.Allow(c.ClientIP())
		if !allowed {
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			reject(c, http.StatusTooManyRequests, msgTooManyRequest)
			return
		}
		c.Next()
	}
}

// claimsFrom returns the claims set by RequireAuth or OptionalAuth.
func claimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, isClaims := v.(*auth.Claims)
	return claims, isClaims
}

// callerID returns the authenticated user id. Routes calling it sit behind
// RequireAuth.
func callerID(c *gin.Context) ulid.ULID {
	claims, _ := claimsFrom(c)
	if claims == nil {
		return ulid.ULID{}
	}
	return claims.UserID
}
