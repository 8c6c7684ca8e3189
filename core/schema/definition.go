// Package schema describes database models: their columns, identifiers,
// indexes and the columns the framework fills in on behalf of the caller.
// Storage backends read these definitions to generate DDL, to validate
// filter fields and to coerce values.
package schema

import (
	"fmt"
	"sort"
)

// FieldType represents the basic field types supported by the schema system.
type FieldType string

const (
	FieldTypeString   FieldType = "string"   // Text data
	FieldTypeInteger  FieldType = "integer"  // Whole numbers
	FieldTypeNumber   FieldType = "number"   // Floating point numbers
	FieldTypeDecimal  FieldType = "decimal"  // Fixed point numbers
	FieldTypeBoolean  FieldType = "boolean"  // True/false values
	FieldTypeDateTime FieldType = "datetime" // Timestamps
	FieldTypeDate     FieldType = "date"     // Calendar dates
	FieldTypeEnum     FieldType = "enum"     // One out of a set of pre-defined items
	FieldTypeUUID     FieldType = "uuid"     // UUIDs stored as text
	FieldTypeObject   FieldType = "object"   // JSON object stored as text
	FieldTypeArray    FieldType = "array"    // JSON array stored as text
)

// IndexType represents index types.
type IndexType string

const (
	IndexTypeNormal IndexType = "normal" // General-purpose index
	IndexTypeUnique IndexType = "unique" // Unique index
)

// Operation names a mutating operation that can trigger autofill.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
)

// ValueFunc produces a column value at write time.
type ValueFunc func() any

// FieldDefinition defines a column of a model.
type FieldDefinition struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
	// Required marks the column NOT NULL and mandatory on create.
	Required *bool `json:"required,omitempty"`
	// Default is a constant used when a create omits the column.
	Default any `json:"default,omitempty"`
	// DefaultFunc computes the value when a create omits the column.
	DefaultFunc ValueFunc `json:"-"`
	// OnUpdate computes a fresh value on every update.
	OnUpdate ValueFunc `json:"-"`
	// Values lists the allowed values of an enum column.
	Values []any `json:"values,omitempty"`
	// Length bounds string columns. Zero means unbounded.
	Length int `json:"length,omitempty"`
	// Unique indicates if the field must have unique values.
	Unique *bool `json:"unique,omitempty"`
	// Index requests a plain index on the column.
	Index bool `json:"index,omitempty"`
	// PrimaryKey marks the identifier column.
	PrimaryKey bool `json:"primaryKey,omitempty"`
	// AutoIncrement lets the database assign the value.
	AutoIncrement bool `json:"autoIncrement,omitempty"`
	// Hidden columns are never returned to clients.
	Hidden bool `json:"hidden,omitempty"`
	// Description provides a brief explanation of the field.
	Description *string `json:"description,omitempty"`
}

// IsRequired reports whether the column must be present on create.
func (f *FieldDefinition) IsRequired() bool {
	return f.Required != nil && *f.Required
}

// IsUnique reports whether the column carries a unique constraint.
func (f *FieldDefinition) IsUnique() bool {
	return f.Unique != nil && *f.Unique
}

// IndexDefinition defines an index for optimizing queries or enforcing uniqueness.
type IndexDefinition struct {
	Fields      []string  `json:"fields"`
	Type        IndexType `json:"type"`
	Unique      *bool     `json:"unique,omitempty"`
	Description *string   `json:"description,omitempty"`
	Order       *string   `json:"order,omitempty"` // "asc" | "desc"
	Name        string    `json:"name"`
}

// AutoFillField declares a column set from the authenticated caller on the
// listed operations.
type AutoFillField struct {
	Field      string      `json:"field"`
	Operations []Operation `json:"operations"`
}

// ModelDefinition is the catalog entry for a table.
type ModelDefinition struct {
	// Name is the Go-facing model name, e.g. "AuthUser".
	Name string `json:"name"`
	// Table is the storage table name, e.g. "auth_users".
	Table string `json:"table"`
	// Fields maps column names to their definitions.
	Fields map[string]*FieldDefinition `json:"fields"`
	// Columns lists column names in declaration order.
	Columns []string `json:"columns"`
	// Indexes lists secondary indexes.
	Indexes []IndexDefinition `json:"indexes,omitempty"`
	// IDField names the primary key column.
	IDField string `json:"idField"`
	// AutoFill lists columns filled from the caller.
	AutoFill []AutoFillField `json:"autoFill,omitempty"`
}

// ModelOption configures a ModelDefinition.
type ModelOption func(*ModelDefinition)

// NewModel builds a model. The table name defaults to the snake-case plural
// of name and the identifier to "id".
func NewModel(name string, opts ...ModelOption) *ModelDefinition {
	m := &ModelDefinition{
		Name:    name,
		Table:   TableName(name),
		Fields:  make(map[string]*FieldDefinition),
		IDField: "id",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithTable overrides the table name.
func WithTable(table string) ModelOption {
	return func(m *ModelDefinition) { m.Table = table }
}

// WithIDField overrides the primary key column name.
func WithIDField(name string) ModelOption {
	return func(m *ModelDefinition) { m.IDField = name }
}

// WithIndex adds a secondary index.
func WithIndex(index IndexDefinition) ModelOption {
	return func(m *ModelDefinition) { m.Indexes = append(m.Indexes, index) }
}

// WithAutoFill declares a caller-filled column.
func WithAutoFill(field string, ops ...Operation) ModelOption {
	return func(m *ModelDefinition) {
		m.AutoFill = append(m.AutoFill, AutoFillField{Field: field, Operations: ops})
	}
}

// FieldOption configures a FieldDefinition.
type FieldOption func(*FieldDefinition)

// Field adds a column. Declaring a name twice replaces the earlier definition
// but keeps its position.
func Field(name string, typ FieldType, opts ...FieldOption) ModelOption {
	return func(m *ModelDefinition) {
		f := &FieldDefinition{Name: name, Type: typ}
		for _, opt := range opts {
			opt(f)
		}
		m.AddField(f)
	}
}

// Required marks the field NOT NULL.
func Required() FieldOption {
	return func(f *FieldDefinition) { t := true; f.Required = &t }
}

// Unique adds a unique constraint.
func Unique() FieldOption {
	return func(f *FieldDefinition) { t := true; f.Unique = &t }
}

// Default sets a constant default.
func Default(v any) FieldOption {
	return func(f *FieldDefinition) { f.Default = v }
}

// DefaultFunc sets a computed default.
func DefaultFunc(fn ValueFunc) FieldOption {
	return func(f *FieldDefinition) { f.DefaultFunc = fn }
}

// OnUpdate sets a value refreshed by every update.
func OnUpdate(fn ValueFunc) FieldOption {
	return func(f *FieldDefinition) { f.OnUpdate = fn }
}

// Length bounds a string column.
func Length(n int) FieldOption {
	return func(f *FieldDefinition) { f.Length = n }
}

// Values sets the allowed values of an enum column.
func Values(values ...any) FieldOption {
	return func(f *FieldDefinition) { f.Values = values }
}

// Indexed requests a plain index on the column.
func Indexed() FieldOption {
	return func(f *FieldDefinition) { f.Index = true }
}

// Hidden keeps the column out of responses.
func Hidden() FieldOption {
	return func(f *FieldDefinition) { f.Hidden = true }
}

// Describe sets the field description.
func Describe(text string) FieldOption {
	return func(f *FieldDefinition) { f.Description = &text }
}

// AddField adds or replaces a column definition.
func (m *ModelDefinition) AddField(f *FieldDefinition) {
	if _, exists := m.Fields[f.Name]; !exists {
		m.Columns = append(m.Columns, f.Name)
	}
	m.Fields[f.Name] = f
}

// Field returns the definition of a column.
func (m *ModelDefinition) Field(name string) (*FieldDefinition, bool) {
	f, ok := m.Fields[name]
	return f, ok
}

// HasField reports whether the model declares the column.
func (m *ModelDefinition) HasField(name string) bool {
	_, ok := m.Fields[name]
	return ok
}

// IDDefinition returns the primary key column.
func (m *ModelDefinition) IDDefinition() *FieldDefinition {
	return m.Fields[m.IDField]
}

// HiddenFields lists the columns that must not reach clients.
func (m *ModelDefinition) HiddenFields() []string {
	var out []string
	for _, name := range m.Columns {
		if m.Fields[name].Hidden {
			out = append(out, name)
		}
	}
	return out
}

// RequiresAutoFill reports whether any column is filled from the caller.
func (m *ModelDefinition) RequiresAutoFill() bool {
	return len(m.AutoFill) > 0
}

// AutoFillFor returns the caller-filled columns for an operation, sorted.
func (m *ModelDefinition) AutoFillFor(op Operation) []string {
	var out []string
	for _, af := range m.AutoFill {
		for _, o := range af.Operations {
			if o == op {
				out = append(out, af.Field)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Check verifies the definition is usable by a storage backend.
func (m *ModelDefinition) Check() error {
	if m.Name == "" {
		return fmt.Errorf("model must have a name")
	}
	if m.Table == "" {
		return fmt.Errorf("model %s must define a table name", m.Name)
	}
	if len(m.Fields) == 0 {
		return fmt.Errorf("model %s declares no fields", m.Name)
	}
	id, ok := m.Fields[m.IDField]
	if !ok {
		return fmt.Errorf("model %s has no identifier field %q", m.Name, m.IDField)
	}
	if !id.PrimaryKey {
		return fmt.Errorf("model %s identifier %q is not a primary key", m.Name, m.IDField)
	}
	for _, af := range m.AutoFill {
		if !m.HasField(af.Field) {
			return fmt.Errorf("model %s autofills unknown field %q", m.Name, af.Field)
		}
	}
	for _, idx := range m.Indexes {
		for _, f := range idx.Fields {
			if !m.HasField(f) {
				return fmt.Errorf("model %s index %q references unknown field %q", m.Name, idx.Name, f)
			}
		}
	}
	for _, name := range m.Columns {
		f := m.Fields[name]
		if f.Type == FieldTypeEnum && len(f.Values) == 0 {
			return fmt.Errorf("model %s enum field %q has no values", m.Name, name)
		}
	}
	return nil
}

// Issue describes a single validation problem.
type Issue struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Path        string `json:"path,omitempty"`
	Severity    string `json:"severity,omitempty"` // e.g., "error", "warning"
	Description string `json:"description,omitempty"`
}
