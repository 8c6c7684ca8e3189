package admin

import (
	"embed"
	"fmt"
	"path"

	"github.com/asaidimu/go-restful/sqlstore"
	"go.uber.org/zap"
)

// MigrationsTable tracks the admin schema apart from application migrations.
const MigrationsTable = "restful_admin_migrations"

//go:embed migrations
var migrationFiles embed.FS

// NewMigrator returns a migrator for the admin tables of the given driver.
func NewMigrator(driver, dsn string, logger *zap.Logger) (*sqlstore.Migrator, error) {
	dialect, err := sqlstore.DialectFor(driver)
	if err != nil {
		return nil, err
	}
	return sqlstore.NewMigrator(migrationFiles, path.Join("migrations", dialect.Name()), dialect.Name(), dsn, MigrationsTable, logger)
}

// Migrate creates or upgrades the admin tables.
func Migrate(driver, dsn string, logger *zap.Logger) error {
	m, err := NewMigrator(driver, dsn, logger)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil {
		m.Close()
		return fmt.Errorf("admin: %w", err)
	}
	return m.Close()
}
