// Package sqlstore implements persistence.DatabaseInteractor over database/sql
// for SQLite and PostgreSQL. It compiles filters into SQL, generates DDL from
// model definitions and converts driver rows into plain records.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/persistence"
	"github.com/asaidimu/go-restful/core/query"
	"github.com/asaidimu/go-restful/core/schema"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// dbRunner abstracts the common methods of *sqlx.DB and *sqlx.Tx, allowing
// the same code to be used for transactional and non-transactional work.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	Rebind(query string) string
}

// SQLInteractor executes generated SQL against a database. It operates in
// transactional mode when created by StartTransaction.
type SQLInteractor struct {
	db       *sqlx.DB
	tx       *sqlx.Tx
	dialect  Dialect
	compiler *SQLCompiler
	mapper   *Mapper
	logger   *zap.Logger
	options  *persistence.InteractorOptions
}

// Ensure SQLInteractor implements the persistence.DatabaseInteractor interface.
var _ persistence.DatabaseInteractor = (*SQLInteractor)(nil)

// Open connects to a database and verifies the connection.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger, options *persistence.InteractorOptions) (*SQLInteractor, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(dialect.Name(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect.Name(), err)
	}
	return NewSQLInteractor(db.DB, dialect, logger, options), nil
}

// NewSQLInteractor wraps an open *sql.DB.
func NewSQLInteractor(db *sql.DB, dialect Dialect, logger *zap.Logger, options *persistence.InteractorOptions) *SQLInteractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultInteractorOptions()
	}
	return &SQLInteractor{
		db:       sqlx.NewDb(db, dialect.Name()),
		dialect:  dialect,
		compiler: NewSQLCompiler(dialect),
		mapper:   NewMapper(dialect, options),
		logger:   logger,
		options:  options,
	}
}

// DB returns the underlying connection pool.
func (i *SQLInteractor) DB() *sql.DB {
	return i.db.DB
}

// Dialect returns the interactor's dialect.
func (i *SQLInteractor) Dialect() Dialect {
	return i.dialect
}

// Close closes the connection pool. It must not be called on a transactional
// interactor.
func (i *SQLInteractor) Close() error {
	if i.tx != nil {
		return fmt.Errorf("close not applicable: interactor is transactional")
	}
	return i.db.Close()
}

// Compiler returns the filter compiler.
func (i *SQLInteractor) Compiler() query.Compiler {
	return i.compiler
}

// runner returns the active transaction or the connection pool.
func (i *SQLInteractor) runner() dbRunner {
	if i.tx != nil {
		return i.tx
	}
	return i.db
}

func (i *SQLInteractor) queryRows(ctx context.Context, kind string, model *schema.ModelDefinition, q string, params []any) ([]core.Record, error) {
	q = i.runner().Rebind(q)
	i.logger.Debug("Executing SQL "+kind, zap.String("sql", q), zap.Any("params", params))

	rows, err := i.runner().QueryxContext(ctx, q, params...)
	if err != nil {
		i.logger.Error("Failed to execute "+kind+" query", zap.Error(err), zap.String("sql", q))
		return nil, fmt.Errorf("failed to execute %s query: %w", kind, err)
	}
	defer rows.Close()
	return readRows(i.logger, model, rows)
}

// readRows scans every row with sqlx.MapScan and normalizes the values.
func readRows(logger *zap.Logger, model *schema.ModelDefinition, rows *sqlx.Rows) ([]core.Record, error) {
	results := make([]core.Record, 0)
	for rows.Next() {
		raw := make(map[string]any)
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, normalizeRow(logger, model, raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}

// Select executes a SELECT query.
func (i *SQLInteractor) Select(ctx context.Context, model *schema.ModelDefinition, sel persistence.Selection) ([]core.Record, error) {
	gen, err := NewQuery(i.dialect, model)
	if err != nil {
		return nil, err
	}
	q, params, err := gen.SelectSQL(sel.Filters, sel.Orders, sel.Pagination)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL query: %w", err)
	}
	return i.queryRows(ctx, "SELECT", model, q, params)
}

// Count executes a count-only query.
func (i *SQLInteractor) Count(ctx context.Context, model *schema.ModelDefinition, filters []query.QueryFilter) (int64, error) {
	gen, err := NewQuery(i.dialect, model)
	if err != nil {
		return 0, err
	}
	q, params, err := gen.CountSQL(filters)
	if err != nil {
		return 0, fmt.Errorf("failed to generate SQL COUNT query: %w", err)
	}
	q = i.runner().Rebind(q)
	i.logger.Debug("Executing SQL COUNT", zap.String("sql", q), zap.Any("params", params))

	var count int64
	if err := i.runner().QueryRowxContext(ctx, q, params...).Scan(&count); err != nil {
		i.logger.Error("Failed to execute COUNT query", zap.Error(err), zap.String("sql", q))
		return 0, fmt.Errorf("failed to execute COUNT query: %w", err)
	}
	return count, nil
}

// Insert executes an INSERT ... RETURNING query and returns the stored row.
func (i *SQLInteractor) Insert(ctx context.Context, model *schema.ModelDefinition, data core.Record) (core.Record, error) {
	gen, err := NewQuery(i.dialect, model)
	if err != nil {
		return nil, err
	}
	q, params, err := gen.InsertSQL(data)
	if err != nil {
		return nil, fmt.Errorf("failed to generate INSERT SQL: %w", err)
	}
	rows, err := i.queryRows(ctx, "INSERT", model, q, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("INSERT into %s returned no row", model.Table)
	}
	return rows[0], nil
}

// Update executes an UPDATE ... RETURNING query.
func (i *SQLInteractor) Update(ctx context.Context, model *schema.ModelDefinition, data core.Record, filters []query.QueryFilter) ([]core.Record, error) {
	gen, err := NewQuery(i.dialect, model)
	if err != nil {
		return nil, err
	}
	q, params, err := gen.UpdateSQL(data, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL UPDATE query: %w", err)
	}
	return i.queryRows(ctx, "UPDATE", model, q, params)
}

// Delete executes a DELETE ... RETURNING query. The returned rows are the
// values the deleted rows held.
func (i *SQLInteractor) Delete(ctx context.Context, model *schema.ModelDefinition, filters []query.QueryFilter) ([]core.Record, error) {
	gen, err := NewQuery(i.dialect, model)
	if err != nil {
		return nil, err
	}
	q, params, err := gen.DeleteSQL(filters)
	if err != nil {
		return nil, fmt.Errorf("failed to generate DELETE SQL: %w", err)
	}
	return i.queryRows(ctx, "DELETE", model, q, params)
}

// CreateTable generates and executes the DDL of a model.
func (i *SQLInteractor) CreateTable(ctx context.Context, model *schema.ModelDefinition) error {
	if i.options.DropIfExists {
		if err := i.DropTable(ctx, model); err != nil {
			return err
		}
	}
	statements, err := i.mapper.CreateTableSQL(model)
	if err != nil {
		return fmt.Errorf("failed to generate SQL for table %s: %w", model.Table, err)
	}
	for _, stmt := range statements {
		i.logger.Debug("Executing DDL", zap.String("sql", stmt))
		if _, err := i.runner().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute SQL statement '%s': %w", stmt, err)
		}
	}
	return nil
}

// DropTable drops the table of a model.
func (i *SQLInteractor) DropTable(ctx context.Context, model *schema.ModelDefinition) error {
	stmt := i.mapper.DropTableSQL(model)
	if _, err := i.runner().ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", model.Table, err)
	}
	return nil
}

// TableExists checks if a table exists in the database.
func (i *SQLInteractor) TableExists(ctx context.Context, table string) (bool, error) {
	q := i.runner().Rebind(i.dialect.TableExistsSQL())
	var name string
	err := i.runner().QueryRowxContext(ctx, q, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	return true, nil
}

// StartTransaction begins a new database transaction and returns a new
// SQLInteractor that is scoped to that transaction.
func (i *SQLInteractor) StartTransaction(ctx context.Context) (persistence.DatabaseInteractor, error) {
	if i.tx != nil {
		return nil, fmt.Errorf("cannot start a new transaction from an existing transactional interactor")
	}
	tx, err := i.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	i.logger.Debug("Transaction initiated, returning new transactional interactor")
	scoped := *i
	scoped.tx = tx
	return &scoped, nil
}

// Commit commits the current transaction.
func (i *SQLInteractor) Commit(ctx context.Context) error {
	if i.tx == nil {
		return fmt.Errorf("commit not applicable: not in a transactional context")
	}
	i.logger.Debug("Committing transaction")
	return i.tx.Commit()
}

// Rollback rolls back the current transaction. Rolling back a finished
// transaction is a no-op.
func (i *SQLInteractor) Rollback(ctx context.Context) error {
	if i.tx == nil {
		return fmt.Errorf("rollback not applicable: not in a transactional context")
	}
	i.logger.Debug("Rolling back transaction")
	if err := i.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
