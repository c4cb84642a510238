// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/volunteerhub/volunteerhub/internal/seed"
)

const defaultSchemaPath = "schemas/seed.schema.json"

// NewGenSchemaCmd creates the gen-schema subcommand.
func NewGenSchemaCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "gen-schema",
		Short: "Write the seed file JSON Schema",
		Long: `Generates the JSON Schema for seed files from the Go types and
writes it to --out. Editors use it to validate seed files as they are written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenSchema(cmd, out)
		},
	}
	cmd.Flags().StringVar(&out, "out", defaultSchemaPath, "output path")
	return cmd
}

func runGenSchema(cmd *cobra.Command, outPath string) error {
	schema, err := seed.GenerateSchema()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", outPath).Wrap(err)
	}
	if err := os.WriteFile(outPath, append(schema, '\n'), 0o600); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", outPath).Wrap(err)
	}
	cmd.Printf("Generated %s\n", outPath)
	return nil
}
