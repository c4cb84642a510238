// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package store

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

func TestMigrations_Catalog(t *testing.T) {
	catalog, err := Migrations()
	require.NoError(t, err)

	assert.Equal(t, []Migration{
		{Version: 1, Name: "000001_users"},
		{Version: 2, Name: "000002_opportunities"},
		{Version: 3, Name: "000003_messages"},
		{Version: 4, Name: "000004_payments"},
	}, catalog)

	catalog[0].Name = "mutated"
	again, err := Migrations()
	require.NoError(t, err)
	assert.Equal(t, "000001_users", again[0].Name, "callers get their own copy")
}

func TestMigrations_SchemaContent(t *testing.T) {
	users, err := fs.ReadFile(migrationsFS, "migrations/000001_users.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(users), "CREATE UNIQUE INDEX IF NOT EXISTS users_email_key")
	assert.Contains(t, string(users), "password_version  INTEGER NOT NULL DEFAULT 1")

	for _, down := range []string{"000001_users", "000002_opportunities", "000003_messages", "000004_payments"} {
		sql, err := fs.ReadFile(migrationsFS, "migrations/"+down+".down.sql")
		require.NoError(t, err)
		assert.Contains(t, string(sql), "DROP TABLE", "%s.down.sql drops what its up file creates", down)
	}
}

func TestReadCatalog(t *testing.T) {
	file := &fstest.MapFile{Data: []byte("SELECT 1;")}

	t.Run("sorts by version", func(t *testing.T) {
		catalog, err := readCatalog(fstest.MapFS{
			"migrations/000010_later.up.sql":   file,
			"migrations/000010_later.down.sql": file,
			"migrations/000002_early.up.sql":   file,
			"migrations/000002_early.down.sql": file,
		})
		require.NoError(t, err)
		assert.Equal(t, []Migration{{Version: 2, Name: "000002_early"}, {Version: 10, Name: "000010_later"}}, catalog)
	})

	invalid := []struct {
		name    string
		fsys    fstest.MapFS
		key     string
		wantCtx any
	}{
		{
			name: "file outside the naming scheme",
			fsys: fstest.MapFS{"migrations/notes.txt": file},
			key:  "file", wantCtx: "notes.txt",
		},
		{
			name: "version zero",
			fsys: fstest.MapFS{"migrations/000000_init.up.sql": file},
			key:  "file", wantCtx: "000000_init.up.sql",
		},
		{
			name: "two names share a version",
			fsys: fstest.MapFS{
				"migrations/000001_users.up.sql":  file,
				"migrations/000001_people.up.sql": file,
			},
			key: "version", wantCtx: uint64(1),
		},
		{
			name: "up without down",
			fsys: fstest.MapFS{"migrations/000003_messages.up.sql": file},
			key:  "migration", wantCtx: "000003_messages",
		},
		{
			name: "down without up",
			fsys: fstest.MapFS{"migrations/000003_messages.down.sql": file},
			key:  "migration", wantCtx: "000003_messages",
		},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readCatalog(tt.fsys)
			errutil.AssertErrorCode(t, err, "MIGRATION_CATALOG_INVALID")
			errutil.AssertErrorContext(t, err, tt.key, tt.wantCtx)
		})
	}

	t.Run("missing directory", func(t *testing.T) {
		_, err := readCatalog(fstest.MapFS{})
		errutil.AssertErrorCode(t, err, "MIGRATION_CATALOG_INVALID")
	})
}
