// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package store

import (
	"embed"
	"errors"
	"io/fs"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

var migrationFile = regexp.MustCompile(`^(\d{6})_([a-z0-9_]+)\.(up|down)\.sql$`)

// Migration is one embedded schema change.
type Migration struct {
	Version uint
	// Name is the file stem, e.g. "000002_opportunities".
	Name string
}

func (m Migration) String() string { return m.Name }

// Status describes the database schema relative to the embedded migrations.
type Status struct {
	// Version is the last applied migration, 0 when none is.
	Version uint
	// Name is the name of migration Version, empty when unknown.
	Name    string
	Dirty   bool
	Applied []Migration
	Pending []Migration
}

var loadCatalog = sync.OnceValues(func() ([]Migration, error) {
	return readCatalog(migrationsFS)
})

// Migrations returns the embedded migrations in version order.
func Migrations() ([]Migration, error) {
	all, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	return slices.Clone(all), nil
}

// readCatalog lists the migrations under migrations/ in fsys. Every version
// needs exactly one up file and one down file with the same name.
func readCatalog(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_CATALOG_INVALID").With("operation", "read migrations dir").Wrap(err)
	}

	type pair struct {
		name     string
		up, down bool
	}
	byVersion := make(map[uint]*pair)
	for _, entry := range entries {
		parts := migrationFile.FindStringSubmatch(entry.Name())
		if parts == nil {
			return nil, oops.Code("MIGRATION_CATALOG_INVALID").
				With("file", entry.Name()).
				Errorf("migration file must be named NNNNNN_name.up.sql or NNNNNN_name.down.sql")
		}
		v, _ := strconv.ParseUint(parts[1], 10, 32)
		if v == 0 {
			return nil, oops.Code("MIGRATION_CATALOG_INVALID").With("file", entry.Name()).Errorf("migration versions start at 1")
		}
		name := parts[1] + "_" + parts[2]
		p, seen := byVersion[uint(v)]
		if !seen {
			p = &pair{name: name}
			byVersion[uint(v)] = p
		}
		if p.name != name {
			return nil, oops.Code("MIGRATION_CATALOG_INVALID").
				With("version", v).
				Errorf("version %d is used by both %s and %s", v, p.name, name)
		}
		if parts[3] == "up" {
			p.up = true
		} else {
			p.down = true
		}
	}

	catalog := make([]Migration, 0, len(byVersion))
	for v, p := range byVersion {
		if !p.up || !p.down {
			return nil, oops.Code("MIGRATION_CATALOG_INVALID").
				With("migration", p.name).
				Errorf("%s needs both an up and a down file", p.name)
		}
		catalog = append(catalog, Migration{Version: v, Name: p.name})
	}
	slices.SortFunc(catalog, func(a, b Migration) int { return int(a.Version) - int(b.Version) })
	return catalog, nil
}

// schemaEngine is the part of *migrate.Migrate the Migrator drives.
type schemaEngine interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies and reverts the embedded migrations.
type Migrator struct {
	engine  schemaEngine
	catalog []Migration
}

// NewMigrator opens a migrator for a postgres:// or postgresql:// database URL.
func NewMigrator(databaseURL string) (*Migrator, error) {
	catalog, err := Migrations()
	if err != nil {
		return nil, err
	}
	target, err := migrateURL(databaseURL)
	if err != nil {
		return nil, err
	}
	source, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "open embedded migrations").Wrap(err)
	}
	engine, err := migrate.NewWithSourceInstance("iofs", source, target)
	if err != nil {
		_ = source.Close()
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "connect").Wrap(err)
	}
	return &Migrator{engine: engine, catalog: catalog}, nil
}

// migrateURL points a Postgres URL at the pgx/v5 driver, registered as pgx5://.
func migrateURL(databaseURL string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		// The parse error echoes the URL, password included.
		return "", oops.Code("MIGRATION_INVALID_URL").Errorf("database url is not a valid URL")
	}
	switch u.Scheme {
	case "postgres", "postgresql", "pgx5":
		u.Scheme = "pgx5"
		return u.String(), nil
	default:
		return "", oops.Code("MIGRATION_INVALID_URL").
			With("scheme", u.Scheme).
			Errorf("database url must use the postgres:// scheme")
	}
}

// Status reports the applied version and splits the catalog around it.
func (m *Migrator) Status() (*Status, error) {
	version, dirty, err := m.engine.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		version, dirty, err = 0, false, nil
	}
	if err != nil {
		return nil, oops.Code("MIGRATION_STATUS_FAILED").Wrap(err)
	}

	s := &Status{Version: version, Dirty: dirty}
	for _, mig := range m.catalog {
		if mig.Version > version {
			s.Pending = append(s.Pending, mig)
			continue
		}
		s.Applied = append(s.Applied, mig)
		if mig.Version == version {
			s.Name = mig.Name
		}
	}
	return s, nil
}

// Up applies every pending migration and returns those it applied.
func (m *Migrator) Up() ([]Migration, error) {
	before, err := m.cleanStatus()
	if err != nil {
		return nil, err
	}
	if len(before.Pending) == 0 {
		return nil, nil
	}
	if err := m.engine.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, oops.Code("MIGRATION_UP_FAILED").With("from_version", before.Version).Wrap(err)
	}
	after, err := m.Status()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(slices.Clone(before.Pending), func(mig Migration) bool {
		return mig.Version > after.Version
	}), nil
}

// Rollback reverts the latest steps migrations and returns them, newest first.
func (m *Migrator) Rollback(steps int) ([]Migration, error) {
	if steps < 1 {
		return nil, oops.Code("INVALID_STEPS").With("steps", steps).Errorf("steps must be at least 1, got %d", steps)
	}
	before, err := m.cleanStatus()
	if err != nil {
		return nil, err
	}
	if steps > len(before.Applied) {
		return nil, oops.Code("INVALID_STEPS").
			With("steps", steps).
			With("applied", len(before.Applied)).
			Errorf("cannot roll back %d migrations, %d applied", steps, len(before.Applied))
	}
	if err := m.engine.Steps(-steps); err != nil {
		return nil, oops.Code("MIGRATION_ROLLBACK_FAILED").With("steps", steps).Wrap(err)
	}
	return newestFirst(before.Applied[len(before.Applied)-steps:]), nil
}

// RollbackAll reverts every applied migration, dropping all tables and data.
func (m *Migrator) RollbackAll() ([]Migration, error) {
	before, err := m.cleanStatus()
	if err != nil {
		return nil, err
	}
	if len(before.Applied) == 0 {
		return nil, nil
	}
	if err := m.engine.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, oops.Code("MIGRATION_ROLLBACK_FAILED").With("steps", "all").Wrap(err)
	}
	return newestFirst(before.Applied), nil
}

// Force records version as applied and clears the dirty flag without running
// anything. Version 0 marks the schema as empty.
func (m *Migrator) Force(version int) error {
	known := version == 0 || slices.ContainsFunc(m.catalog, func(mig Migration) bool {
		return version > 0 && mig.Version == uint(version)
	})
	if !known {
		return oops.Code("INVALID_VERSION").With("version", version).Errorf("no migration has version %d", version)
	}
	if err := m.engine.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases the migration source and the database connection.
func (m *Migrator) Close() error {
	if err := errors.Join(m.engine.Close()); err != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

// cleanStatus returns the status, refusing to continue on a dirty schema.
func (m *Migrator) cleanStatus() (*Status, error) {
	s, err := m.Status()
	if err != nil {
		return nil, err
	}
	if s.Dirty {
		return nil, oops.Code("MIGRATION_DIRTY").
			With("version", s.Version).
			Errorf("schema is dirty at version %d; repair it, then run 'migrate force VERSION'", s.Version)
	}
	return s, nil
}

func newestFirst(ms []Migration) []Migration {
	out := slices.Clone(ms)
	slices.Reverse(out)
	return out
}
