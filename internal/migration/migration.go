package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Result reports where the schema ended up after RunMigrations.
type Result struct {
	Version uint
	Latest  uint
	Applied bool
}

// RunMigrations brings the affiliate schema up to the newest embedded
// version. Only postgres is supported; other dialects are provisioned out
// of band.
func RunMigrations(db *sql.DB) (Result, error) {
	if db == nil {
		return Result{}, errors.New("migration database handle is required")
	}

	latest, err := latestVersion()
	if err != nil {
		return Result{}, err
	}

	migrator, err := newMigrator(db)
	if err != nil {
		return Result{}, err
	}
	// migrator.Close would also close the shared *sql.DB

	res := Result{Latest: latest}
	if version, dirty, err := migrator.Version(); err == nil && dirty {
		return res, fmt.Errorf("schema is dirty at version %d; fix it by hand and force the version", version)
	}

	switch err := migrator.Up(); {
	case err == nil:
		res.Applied = true
	case errors.Is(err, migrate.ErrNoChange):
	default:
		return res, fmt.Errorf("apply migrations: %w", err)
	}

	version, _, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return res, fmt.Errorf("read schema version: %w", err)
	}
	res.Version = version
	return res, nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return migrator, nil
}

// latestVersion is the highest NNNNNN_ prefix among the embedded up files.
func latestVersion() (uint, error) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		return 0, fmt.Errorf("list migrations: %w", err)
	}
	var versions []uint
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return 0, fmt.Errorf("migration %q has no version prefix", name)
		}
		v, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("migration %q: %w", name, err)
		}
		versions = append(versions, uint(v))
	}
	if len(versions) == 0 {
		return 0, errors.New("no embedded migrations")
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions[len(versions)-1], nil
}
