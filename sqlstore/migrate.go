package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// DefaultMigrationsTable records the applied version of application
// migrations.
const DefaultMigrationsTable = "schema_migrations"

// Migrator applies versioned SQL files (NNN_name.up.sql / NNN_name.down.sql)
// to one database. It owns its connection; Close releases it.
type Migrator struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

// migrateLogger adapts zap to migrate.Logger.
type migrateLogger struct {
	sugar *zap.SugaredLogger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.sugar.Debugf(strings.TrimSuffix(format, "\n"), v...)
}

func (l migrateLogger) Verbose() bool { return false }

// NewMigrator reads migrations from dir inside fsys and prepares them for the
// database at dsn. The version is tracked in table, or DefaultMigrationsTable
// when empty.
func NewMigrator(fsys fs.FS, dir, driver, dsn, table string, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == "" {
		table = DefaultMigrationsTable
	}
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations from %s: %w", dir, err)
	}

	db, err := sql.Open(dialect.Name(), dsn)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name(), err)
	}
	var target database.Driver
	switch dialect.Name() {
	case DriverPostgres:
		target, err = postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
	default:
		target, err = sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: table})
	}
	if err != nil {
		src.Close()
		db.Close()
		return nil, fmt.Errorf("failed to prepare %s migrations: %w", dialect.Name(), err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect.Name(), target)
	if err != nil {
		src.Close()
		target.Close()
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	m.Log = migrateLogger{sugar: logger.Sugar()}
	return &Migrator{m: m, logger: logger}, nil
}

// Up applies every pending migration. Being up to date is not an error.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	m.logVersion("Migrations applied")
	return nil
}

// Down rolls back steps migrations, or all of them when steps <= 0.
func (m *Migrator) Down(steps int) error {
	var err error
	if steps > 0 {
		err = m.m.Steps(-steps)
	} else {
		err = m.m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	m.logVersion("Migrations rolled back")
	return nil
}

// Version returns the applied version. ok is false before the first
// migration.
func (m *Migrator) Version() (version uint, dirty bool, ok bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, err
	}
	return version, dirty, true, nil
}

func (m *Migrator) logVersion(msg string) {
	v, dirty, ok, err := m.Version()
	if err != nil || !ok {
		m.logger.Info(msg)
		return
	}
	m.logger.Info(msg, zap.Uint("version", v), zap.Bool("dirty", dirty))
}

// Close releases the source and the connection.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}
