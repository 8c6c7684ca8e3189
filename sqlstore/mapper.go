package sqlstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/persistence"
	"github.com/asaidimu/go-restful/core/schema"
	"go.uber.org/zap"
)

// DefaultInteractorOptions returns the options used when none are given:
// tables and indexes are created only when missing.
func DefaultInteractorOptions() *persistence.InteractorOptions {
	return &persistence.InteractorOptions{
		IfNotExists:   true,
		CreateIndexes: true,
	}
}

// Mapper generates DDL for models in one dialect.
type Mapper struct {
	dialect Dialect
	options *persistence.InteractorOptions
}

// NewMapper creates a DDL generator.
func NewMapper(dialect Dialect, options *persistence.InteractorOptions) *Mapper {
	if options == nil {
		options = DefaultInteractorOptions()
	}
	return &Mapper{dialect: dialect, options: options}
}

// CreateTableSQL generates the statements that create the table of a model
// followed by its indexes.
func (m *Mapper) CreateTableSQL(model *schema.ModelDefinition) ([]string, error) {
	if err := model.Check(); err != nil {
		return nil, err
	}
	table := quoteIdentifier(model.Table)

	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if m.options.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(table + " (\n")

	columns := make([]string, 0, len(model.Columns))
	for _, name := range model.Columns {
		def, err := m.buildColumnDefinition(model.Fields[name])
		if err != nil {
			return nil, fmt.Errorf("error on field '%s': %w", name, err)
		}
		columns = append(columns, "    "+def)
	}
	sb.WriteString(strings.Join(columns, ",\n"))
	sb.WriteString("\n);")

	statements := []string{sb.String()}
	if !m.options.CreateIndexes {
		return statements, nil
	}

	for _, name := range model.Columns {
		f := model.Fields[name]
		if !f.Index || f.PrimaryKey || f.IsUnique() {
			continue
		}
		statements = append(statements, m.CreateIndexSQL(model.Table, schema.IndexDefinition{
			Fields: []string{name},
			Type:   schema.IndexTypeNormal,
		}))
	}
	for _, index := range model.Indexes {
		statements = append(statements, m.CreateIndexSQL(model.Table, index))
	}
	return statements, nil
}

// buildColumnDefinition constructs the DDL of one column.
func (m *Mapper) buildColumnDefinition(field *schema.FieldDefinition) (string, error) {
	if field.PrimaryKey && field.AutoIncrement {
		return m.dialect.AutoIncrementKey(field.Name), nil
	}

	parts := []string{quoteIdentifier(field.Name), m.dialect.ColumnType(field)}
	if field.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if field.IsRequired() {
		parts = append(parts, "NOT NULL")
	}
	if field.Default != nil {
		def, err := m.formatDefaultValue(field.Default, field.Type)
		if err != nil {
			return "", err
		}
		parts = append(parts, "DEFAULT "+def)
	}
	if field.IsUnique() && !field.PrimaryKey {
		parts = append(parts, "UNIQUE")
	}
	if field.Type == schema.FieldTypeEnum && len(field.Values) > 0 {
		values := make([]string, 0, len(field.Values))
		for _, v := range field.Values {
			s, _ := m.formatDefaultValue(v, schema.FieldTypeString)
			values = append(values, s)
		}
		parts = append(parts, fmt.Sprintf("CHECK(%s IN (%s))", quoteIdentifier(field.Name), strings.Join(values, ", ")))
	}
	return strings.Join(parts, " "), nil
}

// formatDefaultValue renders a constant for a DEFAULT clause.
func (m *Mapper) formatDefaultValue(value any, fieldType schema.FieldType) (string, error) {
	if value == nil {
		return "NULL", nil
	}
	quote := func(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }

	switch fieldType {
	case schema.FieldTypeString, schema.FieldTypeEnum, schema.FieldTypeUUID:
		return quote(core.ToString(value)), nil
	case schema.FieldTypeInteger, schema.FieldTypeNumber, schema.FieldTypeDecimal:
		if _, ok := core.ToFloat64(value); !ok {
			return "", fmt.Errorf("default value %v is not a number", value)
		}
		return core.ToString(value), nil
	case schema.FieldTypeBoolean:
		b, ok := core.ToBool(value)
		if !ok {
			return "", fmt.Errorf("default value %v is not a boolean", value)
		}
		if m.dialect.Name() == DriverPostgres {
			if b {
				return "TRUE", nil
			}
			return "FALSE", nil
		}
		if b {
			return "1", nil
		}
		return "0", nil
	case schema.FieldTypeDateTime, schema.FieldTypeDate:
		t, ok := schema.ParseTime(value)
		if !ok {
			return "", fmt.Errorf("default value %v is not a %s", value, fieldType)
		}
		if fieldType == schema.FieldTypeDate {
			return quote(t.Format(core.DateLayout)), nil
		}
		return quote(t.Format(core.DateTimeLayout)), nil
	case schema.FieldTypeObject, schema.FieldTypeArray:
		data, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to marshal default value to JSON: %w", err)
		}
		return quote(string(data)), nil
	default:
		return "", fmt.Errorf("unsupported type for default value: %s", fieldType)
	}
}

// CreateIndexSQL generates the DDL of an index on table.
func (m *Mapper) CreateIndexSQL(table string, index schema.IndexDefinition) string {
	var sb strings.Builder
	sb.WriteString("CREATE ")
	if (index.Unique != nil && *index.Unique) || index.Type == schema.IndexTypeUnique {
		sb.WriteString("UNIQUE ")
	}
	sb.WriteString("INDEX IF NOT EXISTS ")
	name := index.Name
	if name == "" {
		name = fmt.Sprintf("idx_%s_%s", table, strings.Join(index.Fields, "_"))
	}
	sb.WriteString(quoteIdentifier(name))
	sb.WriteString(" ON " + quoteIdentifier(table) + " (")

	parts := make([]string, 0, len(index.Fields))
	for _, field := range index.Fields {
		part := quoteIdentifier(field)
		if index.Order != nil && strings.EqualFold(*index.Order, "desc") {
			part += " DESC"
		}
		parts = append(parts, part)
	}
	sb.WriteString(strings.Join(parts, ", ") + ");")
	return sb.String()
}

// DropTableSQL generates the DDL that drops the table of a model.
func (m *Mapper) DropTableSQL(model *schema.ModelDefinition) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", quoteIdentifier(model.Table))
}

// normalizeRow converts driver values into the Go types of the model's fields.
func normalizeRow(logger *zap.Logger, model *schema.ModelDefinition, raw map[string]any) core.Record {
	row := make(core.Record, len(raw))
	for col, val := range raw {
		if val == nil {
			row[col] = nil
			continue
		}
		field, ok := model.Fields[col]
		if !ok {
			logger.Warn("Column not found in model, using raw value", zap.String("model", model.Name), zap.String("column", col))
			row[col] = val
			continue
		}
		row[col] = normalizeValue(field, val)
	}
	return row
}

func normalizeValue(field *schema.FieldDefinition, val any) any {
	if b, ok := val.([]byte); ok && field.Type != schema.FieldTypeObject && field.Type != schema.FieldTypeArray {
		val = string(b)
	}

	switch field.Type {
	case schema.FieldTypeBoolean:
		if b, ok := core.ToBool(val); ok {
			return b
		}
	case schema.FieldTypeInteger:
		if i, ok := core.ToInt64(val); ok {
			return i
		}
	case schema.FieldTypeNumber, schema.FieldTypeDecimal:
		if f, ok := core.ToFloat64(val); ok {
			return f
		}
	case schema.FieldTypeDateTime:
		if t, ok := schema.ParseTime(val); ok {
			return t
		}
	case schema.FieldTypeDate:
		if t, ok := schema.ParseTime(val); ok {
			return t.Format(core.DateLayout)
		}
	case schema.FieldTypeObject, schema.FieldTypeArray:
		var data []byte
		switch v := val.(type) {
		case []byte:
			data = v
		case string:
			data = []byte(v)
		}
		if data != nil {
			var decoded any
			if err := json.Unmarshal(data, &decoded); err == nil {
				return decoded
			}
			return string(data)
		}
	case schema.FieldTypeString, schema.FieldTypeEnum, schema.FieldTypeUUID:
		if t, ok := val.(time.Time); ok {
			return t.Format(core.DateTimeLayout)
		}
		if _, ok := val.(string); !ok {
			return core.ToString(val)
		}
	}
	return val
}
