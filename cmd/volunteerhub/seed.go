// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/volunteerhub/volunteerhub/internal/auth"
	authpg "github.com/volunteerhub/volunteerhub/internal/auth/postgres"
	oppg "github.com/volunteerhub/volunteerhub/internal/opportunity/postgres"
	"github.com/volunteerhub/volunteerhub/internal/seed"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	timeout time.Duration
	migrate bool
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo accounts and opportunities",
		Long: `Creates the organizations, volunteers and opportunities in a seed
file. Without --file the built-in demo seed is used.
This command is idempotent - existing emails and opportunities are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.file, "file", "", "seed file (YAML); empty loads the built-in demo")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().BoolVar(&cfg.migrate, "migrate", true, "apply pending migrations first")

	return cmd
}

func runSeed(cmd *cobra.Command, cfg *seedConfig) error {
	appCfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireDatabaseURL(appCfg); err != nil {
		return err
	}

	file, err := seed.LoadFile(cfg.file)
	if err != nil {
		return err
	}

	if cfg.migrate {
		cmd.Println("Running migrations...")
		if err := migrateUp(appCfg.Database.URL, logger); err != nil {
			return err
		}
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := connectDB(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	hasher, err := auth.NewHasher(appCfg.Auth.Hasher, appCfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	seeder, err := seed.NewSeeder(authpg.NewUserRepository(pool), oppg.NewOpportunityRepository(pool), hasher, logger)
	if err != nil {
		return err
	}

	report, err := seeder.Apply(ctx, file)
	if err != nil {
		return oops.Code("SEED_FAILED").With("file", cfg.file).Wrap(err)
	}

	cmd.Printf("Users: %d created, %d already present\n", report.UsersCreated, report.UsersSkipped)
	cmd.Printf("Opportunities: %d created, %d already present\n", report.OpportunitiesCreated, report.OpportunitiesSkipped)
	return nil
}
