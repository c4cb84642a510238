// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/volunteerhub/volunteerhub/internal/config"
	"github.com/volunteerhub/volunteerhub/internal/logging"
	"github.com/volunteerhub/volunteerhub/internal/store"
)

const serviceName = "volunteerhub"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the VolunteerHub CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volunteerhub",
		Short: "VolunteerHub - volunteer coordination backend",
		Long: `VolunteerHub connects volunteers with organizations: accounts,
opportunities, applications, certificates, messaging and donations.`,
		SilenceUsage: true,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	cmd.PersistentFlags().String("env", "", "environment name (production enables strict checks)")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "", "log format (json or text)")
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL (default: DATABASE_URL)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewValidateSeedsCmd())
	cmd.AddCommand(NewGenSchemaCmd())

	return cmd
}

// loadConfig reads the layered configuration, with the command's explicitly
// set flags applied last, and installs the process logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{File: configFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, nil, err
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)
	return cfg, logger, nil
}

func requireDatabaseURL(cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("database url is required: set DATABASE_URL, VOLUNTEERHUB_DATABASE__URL or --database-url")
	}
	return nil
}

// connectDB opens the pool, retrying until database.connect_timeout elapses.
func connectDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if err := requireDatabaseURL(cfg); err != nil {
		return nil, err
	}
	if timeout := cfg.Database.ConnectTimeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	pool, err := store.Connect(ctx, cfg.Database.URL, store.ConnectOptions{
		Retries:  cfg.Database.ConnectRetries,
		MaxConns: cfg.Database.MaxConns,
		Logger:   logger,
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	return pool, nil
}
