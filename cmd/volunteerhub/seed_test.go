// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/volunteerhub/internal/seed"
	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidateSeeds_BuiltInDemo(t *testing.T) {
	output, err := execute(t, "validate-seeds")

	require.NoError(t, err)
	assert.Contains(t, output, "built-in demo seed is valid")
}

func TestValidateSeeds_File(t *testing.T) {
	path := writeSeed(t, `
organizations:
  - email: org@example.com
    name: Helping Hands
    password: secret1
opportunities:
  - organization: org@example.com
    title: Park cleanup
    date: "2026-05-01"
`)

	output, err := execute(t, "validate-seeds", "--file", path)

	require.NoError(t, err)
	assert.Contains(t, output, "1 organizations, 0 volunteers, 1 opportunities")
}

func TestValidateSeeds_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    string
	}{
		{
			name:    "schema violation",
			content: "volunteers:\n  - email: v@example.com\n    password: secret1\n",
			code:    "SEED_SCHEMA_VIOLATION",
		},
		{
			name: "opportunity without seeded organization",
			content: `
opportunities:
  - organization: ghost@example.com
    title: Park cleanup
    date: "2026-05-01"
`,
			code: "SEED_INVALID",
		},
		{
			name:    "empty file",
			content: "",
			code:    "SEED_EMPTY",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "validate-seeds", "--file", writeSeed(t, tt.content))
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestValidateSeeds_MissingFile(t *testing.T) {
	_, err := execute(t, "validate-seeds", "--file", filepath.Join(t.TempDir(), "absent.yaml"))

	errutil.AssertErrorCode(t, err, "SEED_READ_FAILED")
}

func TestSeed_RequiresDatabaseURL(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "seed")

	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestSeed_RejectsInvalidFileBeforeConnecting(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "seed", "--database-url", "postgres://localhost:1/none",
		"--file", writeSeed(t, "organizations: nope\n"))

	errutil.AssertErrorCode(t, err, "SEED_SCHEMA_VIOLATION")
}

func TestGenSchema_WritesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "schemas", "seed.schema.json")

	output, err := execute(t, "gen-schema", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, output, "Generated "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, seed.SchemaID, schema["$id"])
	assert.Contains(t, schema, "properties")
}
