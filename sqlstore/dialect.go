package sqlstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/schema"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Driver names accepted by Open and DialectFor.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Dialect isolates the SQL differences between the supported engines. Every
// fragment it renders uses "?" placeholders; statements are rebound to the
// engine's bind style right before execution.
type Dialect interface {
	// Name returns the database/sql driver name.
	Name() string
	// BindType returns the sqlx bind style of the driver.
	BindType() int
	// ColumnType maps a field to a column type.
	ColumnType(field *schema.FieldDefinition) string
	// AutoIncrementKey renders the column definition of an auto-increment key.
	AutoIncrementKey(column string) string
	// AsText renders an expression that reads a column as text.
	AsText(column string) string
	// ILike renders a case-insensitive LIKE with one placeholder.
	ILike(column string) string
	// Match renders a full-text match with one placeholder.
	Match(column string) string
	// MatchArg converts the match value into its bind argument.
	MatchArg(value string) string
	// Bool converts a boolean into its bind argument.
	Bool(b bool) any
	// Time converts a timestamp into its bind argument.
	Time(t time.Time, typ schema.FieldType) any
	// Window renders LIMIT and OFFSET.
	Window(limit, offset *int64) string
	// TableExistsSQL returns a query with one placeholder that yields a row
	// when the table exists.
	TableExistsSQL() string
}

// DialectFor returns the dialect of a driver.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverSQLite, "sqlite":
		return SQLiteDialect{}, nil
	case DriverPostgres, "pgx", "postgresql":
		return PostgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// quoteIdentifier properly quotes an identifier. Both engines accept ANSI quotes.
func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// SQLiteDialect targets github.com/mattn/go-sqlite3. LIKE is expected to be
// case sensitive, which the default DSN enables with _cslike=1.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string  { return DriverSQLite }
func (SQLiteDialect) BindType() int { return sqlx.QUESTION }

func (SQLiteDialect) ColumnType(field *schema.FieldDefinition) string {
	switch field.Type {
	case schema.FieldTypeString, schema.FieldTypeEnum, schema.FieldTypeUUID:
		if field.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", field.Length)
		}
		return "TEXT"
	case schema.FieldTypeInteger:
		return "INTEGER"
	case schema.FieldTypeNumber:
		return "REAL"
	case schema.FieldTypeDecimal:
		return "NUMERIC"
	case schema.FieldTypeBoolean:
		return "BOOLEAN"
	case schema.FieldTypeDateTime:
		return "DATETIME"
	case schema.FieldTypeDate:
		return "DATE"
	case schema.FieldTypeObject, schema.FieldTypeArray:
		return "TEXT"
	default:
		return "BLOB"
	}
}

func (SQLiteDialect) AutoIncrementKey(column string) string {
	return quoteIdentifier(column) + " INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (SQLiteDialect) AsText(column string) string { return column }

func (SQLiteDialect) ILike(column string) string {
	return fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", column)
}

// Match falls back to case-insensitive containment: SQLite only offers
// full-text search on FTS virtual tables.
func (d SQLiteDialect) Match(column string) string {
	return d.ILike(column)
}

func (SQLiteDialect) MatchArg(value string) string { return "%" + value + "%" }

func (SQLiteDialect) Bool(b bool) any {
	if b {
		return 1
	}
	return 0
}

func (SQLiteDialect) Time(t time.Time, typ schema.FieldType) any {
	if typ == schema.FieldTypeDate {
		return t.Format(core.DateLayout)
	}
	return t.Format(core.DateTimeLayout)
}

func (SQLiteDialect) Window(limit, offset *int64) string {
	var sb strings.Builder
	switch {
	case limit != nil:
		fmt.Fprintf(&sb, " LIMIT %d", *limit)
	case offset != nil && *offset > 0:
		sb.WriteString(" LIMIT -1")
	}
	if offset != nil && *offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", *offset)
	}
	return sb.String()
}

func (SQLiteDialect) TableExistsSQL() string {
	return "SELECT name FROM sqlite_master WHERE type='table' AND name = ?;"
}

// PostgresDialect targets github.com/lib/pq.
type PostgresDialect struct{}

func (PostgresDialect) Name() string  { return DriverPostgres }
func (PostgresDialect) BindType() int { return sqlx.DOLLAR }

func (PostgresDialect) ColumnType(field *schema.FieldDefinition) string {
	switch field.Type {
	case schema.FieldTypeString, schema.FieldTypeEnum:
		if field.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", field.Length)
		}
		return "TEXT"
	case schema.FieldTypeUUID:
		return "UUID"
	case schema.FieldTypeInteger:
		return "BIGINT"
	case schema.FieldTypeNumber:
		return "DOUBLE PRECISION"
	case schema.FieldTypeDecimal:
		return "NUMERIC"
	case schema.FieldTypeBoolean:
		return "BOOLEAN"
	case schema.FieldTypeDateTime:
		return "TIMESTAMP"
	case schema.FieldTypeDate:
		return "DATE"
	case schema.FieldTypeObject, schema.FieldTypeArray:
		return "JSONB"
	default:
		return "BYTEA"
	}
}

func (PostgresDialect) AutoIncrementKey(column string) string {
	return quoteIdentifier(column) + " BIGSERIAL PRIMARY KEY"
}

func (PostgresDialect) AsText(column string) string {
	return fmt.Sprintf("CAST(%s AS TEXT)", column)
}

func (d PostgresDialect) ILike(column string) string {
	return fmt.Sprintf("%s ILIKE ?", d.AsText(column))
}

func (d PostgresDialect) Match(column string) string {
	return fmt.Sprintf("to_tsvector(%s) @@ plainto_tsquery(?)", d.AsText(column))
}

func (PostgresDialect) MatchArg(value string) string { return value }

func (PostgresDialect) Bool(b bool) any { return b }

func (PostgresDialect) Time(t time.Time, typ schema.FieldType) any {
	if typ == schema.FieldTypeDate {
		return t.Format(core.DateLayout)
	}
	return t
}

func (PostgresDialect) Window(limit, offset *int64) string {
	var sb strings.Builder
	if limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *limit)
	}
	if offset != nil && *offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", *offset)
	}
	return sb.String()
}

func (PostgresDialect) TableExistsSQL() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?;"
}
