// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/volunteerhub/volunteerhub/internal/seed"
)

// NewValidateSeedsCmd creates the validate-seeds subcommand.
func NewValidateSeedsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate-seeds",
		Short: "Validate a seed file without touching the database",
		Long: `Validates a seed file against the seed JSON Schema and the
cross-record rules (unique emails, opportunities owned by seeded organizations).
Does NOT require a database connection.
Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines to catch seed errors early:
  volunteerhub validate-seeds --file seeds/staging.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidateSeeds(cmd, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "seed file (YAML); empty checks the built-in demo")
	return cmd
}

func runValidateSeeds(cmd *cobra.Command, path string) error {
	f, err := seed.LoadFile(path)
	if err != nil {
		return err
	}
	name := path
	if name == "" {
		name = "built-in demo seed"
	}
	cmd.Printf("%s is valid: %d organizations, %d volunteers, %d opportunities\n",
		name, len(f.Organizations), len(f.Volunteers), len(f.Opportunities))
	return nil
}
