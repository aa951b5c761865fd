package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/owl/schemas"
)

// Migrate applies every pending migration for the database's driver.
func Migrate(db *sqlx.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("m.Up() > %w", err)
	}
	return nil
}

// Version returns the applied schema version. ok is false before the first migration.
func Version(db *sqlx.DB) (version uint, dirty bool, ok bool, err error) {
	m, err := newMigrate(db)
	if err != nil {
		return 0, false, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("m.Version() > %w", err)
	}
	return version, dirty, true, nil
}

// The returned instance is never closed: closing it would close db too.
func newMigrate(db *sqlx.DB) (*migrate.Migrate, error) {
	var (
		driver database.Driver
		err    error
	)
	driverName := db.DriverName()
	switch driverName {
	case "sqlite":
		driver, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	case "mysql":
		driver, err = migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	default:
		return nil, fmt.Errorf("no migrations for driver %q", driverName)
	}
	if err != nil {
		return nil, fmt.Errorf("%s.WithInstance() > %w", driverName, err)
	}

	source, err := iofs.New(schemas.Migrations, "migrations/"+driverName)
	if err != nil {
		return nil, fmt.Errorf("iofs.New() > %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, driverName, driver)
	if err != nil {
		return nil, fmt.Errorf("migrate.NewWithInstance() > %w", err)
	}
	return m, nil
}
