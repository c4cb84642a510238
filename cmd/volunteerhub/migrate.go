// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package main

import (
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/volunteerhub/volunteerhub/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back or inspect database migrations. Running migrate
without a subcommand applies all pending migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd)
		},
	})
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateVersion(cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Mark the schema as being at VERSION and clear the dirty flag.
Use only after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateForce(cmd, args[0])
		},
	})

	return cmd
}

func newMigrateDownCmd() *cobra.Command {
	var (
		steps int
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long: `Roll back the most recent migrations. --all drops every table
and all data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !all && steps < 1 {
				return oops.Code("INVALID_STEPS").Errorf("--steps must be at least 1, got %d", steps)
			}
			return withMigrator(cmd, func(m *store.Migrator) error {
				var (
					reverted []store.Migration
					err      error
				)
				if all {
					reverted, err = m.RollbackAll()
				} else {
					reverted, err = m.Rollback(steps)
				}
				if err != nil {
					return err
				}
				if len(reverted) == 0 {
					cmd.Println("Nothing to roll back")
				}
				for _, mig := range reverted {
					cmd.Println("Rolled back " + mig.Name)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration")
	return cmd
}

func runMigrateUp(cmd *cobra.Command) error {
	return withMigrator(cmd, func(m *store.Migrator) error {
		applied, err := m.Up()
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			cmd.Println("No pending migrations")
		}
		for _, mig := range applied {
			cmd.Println("Applied " + mig.Name)
		}
		return nil
	})
}

func runMigrateVersion(cmd *cobra.Command) error {
	return withMigrator(cmd, func(m *store.Migrator) error {
		status, err := m.Status()
		if err != nil {
			return err
		}
		cmd.Print(formatStatus(status))
		return nil
	})
}

func runMigrateForce(cmd *cobra.Command, arg string) error {
	version, err := parseForceVersion(arg)
	if err != nil {
		return err
	}
	return withMigrator(cmd, func(m *store.Migrator) error {
		if err := m.Force(version); err != nil {
			return err
		}
		cmd.Printf("Schema version forced to %d\n", version)
		return nil
	})
}

// withMigrator loads configuration, opens a migrator and runs fn with it.
func withMigrator(cmd *cobra.Command, fn func(*store.Migrator) error) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireDatabaseURL(cfg); err != nil {
		return err
	}
	m, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer closeMigrator(m, logger)
	return fn(m)
}

// parseForceVersion parses the force argument: a non-negative integer.
func parseForceVersion(s string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("value", s).Errorf("version must be an integer")
	}
	if version < 0 {
		return 0, oops.Code("INVALID_VERSION").With("value", s).Errorf("version must be non-negative")
	}
	return version, nil
}

func formatStatus(s *store.Status) string {
	var b strings.Builder
	if s.Version == 0 {
		b.WriteString("Schema version: none (no migrations applied)\n")
	} else {
		b.WriteString("Schema version: " + strconv.FormatUint(uint64(s.Version), 10))
		if s.Name != "" {
			b.WriteString(" (" + s.Name + ")")
		}
		b.WriteString("\n")
	}
	if s.Dirty {
		b.WriteString("State: DIRTY - repair the database, then run 'migrate force VERSION'\n")
	}
	if len(s.Pending) == 0 {
		b.WriteString("Pending: none\n")
		return b.String()
	}
	pending := lo.Map(s.Pending, func(m store.Migration, _ int) string { return m.Name })
	b.WriteString("Pending: " + strings.Join(pending, ", ") + "\n")
	return b.String()
}
