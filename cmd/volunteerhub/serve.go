// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/volunteerhub/volunteerhub/internal/observability"
	"github.com/volunteerhub/volunteerhub/internal/store"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// Default values for serve command flags.
const defaultShutdownTimeout = 10 * time.Second

// serveConfig holds configuration for the serve command.
type serveConfig struct {
	autoMigrate     bool
	shutdownTimeout time.Duration
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API and, when metrics.addr is set, the metrics and
health probe server. Both stop gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().String("http-addr", "", "HTTP API listen address")
	cmd.Flags().String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("uploads-dir", "", "directory for uploaded profile images")
	cmd.Flags().BoolVar(&cfg.autoMigrate, "auto-migrate", false, "apply pending migrations before serving")
	cmd.Flags().DurationVar(&cfg.shutdownTimeout, "shutdown-timeout", defaultShutdownTimeout, "grace period for in-flight requests")

	return cmd
}

func runServe(cmd *cobra.Command, cfg *serveConfig) error {
	appCfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireDatabaseURL(appCfg); err != nil {
		return err
	}

	logger.Info("starting volunteerhub",
		"version", version,
		"env", appCfg.Env,
		"http_addr", appCfg.HTTP.Addr,
		"metrics_addr", appCfg.Metrics.Addr,
	)

	if cfg.autoMigrate {
		if err := migrateUp(appCfg.Database.URL, logger); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := connectDB(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	var obs *observability.Server
	var metrics *observability.Metrics
	if appCfg.Metrics.Addr != "" {
		obs = observability.NewServer(appCfg.Metrics.Addr, pool.Ping)
		metrics = obs.Metrics()
	}

	a, err := newApp(appCfg, pool, metrics, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	g.Add(func() error {
		return a.server.ListenAndServe(ctx)
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errutil.LogError(logger, "error stopping http server", err)
		}
	})

	if obs != nil {
		errCh, err := obs.Start()
		if err != nil {
			return err
		}
		stop := make(chan struct{})
		g.Add(func() error {
			select {
			case err := <-errCh:
				return err
			case <-stop:
				return nil
			}
		}, func(error) {
			close(stop)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
			defer cancel()
			if err := obs.Stop(shutdownCtx); err != nil {
				errutil.LogError(logger, "error stopping observability server", err)
			}
		})
	}

	cmd.Println("VolunteerHub started")
	err = g.Run()

	var sig run.SignalError
	if errors.As(err, &sig) {
		logger.Info("received shutdown signal", "signal", sig.Signal.String())
		err = nil
	}
	logger.Info("shutdown complete")
	return err
}

// migrateUp applies pending migrations.
func migrateUp(databaseURL string, logger *slog.Logger) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer closeMigrator(migrator, logger)

	applied, err := migrator.Up()
	if err != nil {
		return err
	}
	logger.Info("database schema up to date",
		"applied", lo.Map(applied, func(m store.Migration, _ int) string { return m.Name }))
	return nil
}

func closeMigrator(m *store.Migrator, logger *slog.Logger) {
	if err := m.Close(); err != nil {
		errutil.LogError(logger, "error closing migrator", err)
	}
}
