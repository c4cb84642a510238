// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package store provides PostgreSQL connection and schema management.
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DB is the query surface repositories depend on. *pgxpool.Pool and
// pgxmock.PgxPoolIface both satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// ConnectOptions controls how Connect waits for the database.
type ConnectOptions struct {
	// Retries is the number of additional attempts after the first failure.
	Retries uint64
	// BaseDelay is the first backoff delay; it doubles on every retry.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff delay.
	MaxDelay time.Duration
	// MaxConns overrides the pool size when non-zero.
	MaxConns int32
	Logger   *slog.Logger
}

// Connect opens a pool and pings it, retrying with exponential backoff while
// the server is unreachable. Configuration errors are not retried.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, oops.Code("DB_CONFIG_INVALID").Errorf("database url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backoff := retry.NewExponential(opts.BaseDelay)
	backoff = retry.WithCappedDuration(opts.MaxDelay, backoff)
	backoff = retry.WithMaxRetries(opts.Retries, backoff)

	var pool *pgxpool.Pool
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").With("attempt", attempt).Wrap(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.WarnContext(ctx, "database not ready",
				"attempt", attempt, "host", cfg.ConnConfig.Host, "error", err.Error())
			return retry.RetryableError(oops.Code("DB_CONNECT_FAILED").With("attempt", attempt).Wrap(err))
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("attempts", attempt).
			With("host", cfg.ConnConfig.Host).
			Wrap(err)
	}
	logger.InfoContext(ctx, "connected to database", "host", cfg.ConnConfig.Host, "attempts", attempt)
	return pool, nil
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally restricted to the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	return hasCode(err, pgerrcode.UniqueViolation, constraint)
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, pgerrcode.ForeignKeyViolation, "")
}

func hasCode(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
