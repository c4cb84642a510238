// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/volunteerhub/internal/config"
	"github.com/volunteerhub/volunteerhub/internal/observability"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

func TestServe_RequiresDatabaseURL(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "serve", "--log-format", "text")

	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestServe_RejectsInvalidFlagValues(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "serve", "--log-format", "xml", "--database-url", "postgres://localhost/db")

	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	errutil.AssertErrorContext(t, err, "log.format", "xml")
}

func TestServe_ProductionRequiresSecret(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "serve", "--env", "production", "--database-url", "postgres://localhost/db")

	errutil.AssertErrorCode(t, err, "CONFIG_INSECURE_SECRET")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	clearEnv(t)
	cfg, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)
	cfg.HTTP.UploadsDir = t.TempDir()
	cfg.Auth.BcryptCost = 4
	return cfg
}

func TestNewApp_ServesHealth(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	metrics := observability.NewServer("127.0.0.1:0", nil).Metrics()
	a, err := newApp(testConfig(t), mock, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.Len(t, a.limiters, 2)

	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Server is running", body["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_ZeroLimitsDisableLimiting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	cfg := testConfig(t)
	cfg.HTTP.RateLimit = config.Limit{}
	cfg.Payments.RateLimit = config.Limit{}

	a, err := newApp(cfg, mock, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.Empty(t, a.limiters)
}

func TestNewApp_InvalidSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		code   string
	}{
		{"bcrypt cost out of range", func(c *config.Config) { c.Auth.BcryptCost = 99 }, "AUTH_INVALID_HASHER"},
		{"short jwt secret", func(c *config.Config) { c.Auth.JWTSecret = "short" }, "AUTH_INVALID_SECRET"},
		{"missing gateway url", func(c *config.Config) { c.Payments.APIURL = "" }, "PAYMENT_GATEWAY_CONFIG_INVALID"},
		{"bad cors pattern", func(c *config.Config) { c.HTTP.CORSOrigins = []string{"http://[x"} }, "HTTP_INVALID_CORS_ORIGIN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			t.Cleanup(mock.Close)

			cfg := testConfig(t)
			tt.mutate(cfg)

			_, err = newApp(cfg, mock, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}
