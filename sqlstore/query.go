package sqlstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/query"
	"github.com/asaidimu/go-restful/core/schema"
)

// SQLCompiler translates filters into SQL predicates for one dialect.
type SQLCompiler struct {
	dialect Dialect
}

// Ensure SQLCompiler implements the query.Compiler interface.
var _ query.Compiler = (*SQLCompiler)(nil)

// NewSQLCompiler creates a compiler for a dialect.
func NewSQLCompiler(dialect Dialect) *SQLCompiler {
	return &SQLCompiler{dialect: dialect}
}

// Compile renders filter as a parameterized predicate.
func (c *SQLCompiler) Compile(model *schema.ModelDefinition, filter query.QueryFilter) (query.Predicate, error) {
	if model == nil {
		return query.Predicate{}, fmt.Errorf("model definition cannot be nil")
	}
	if err := filter.Validate(); err != nil {
		return query.Predicate{}, err
	}
	var args []any
	sql, err := c.buildWhereClause(model, filter, &args)
	if err != nil {
		return query.Predicate{}, err
	}
	return query.Predicate{SQL: sql, Args: args}, nil
}

// compileAll renders filters joined with AND. An empty list renders "".
func (c *SQLCompiler) compileAll(model *schema.ModelDefinition, filters []query.QueryFilter, args *[]any) (string, error) {
	clauses := make([]string, 0, len(filters))
	for _, f := range filters {
		p, err := c.Compile(model, f)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, p.SQL)
		*args = append(*args, p.Args...)
	}
	return strings.Join(clauses, " AND "), nil
}

// buildWhereClause recursively builds the predicate of a filter.
func (c *SQLCompiler) buildWhereClause(model *schema.ModelDefinition, filter query.QueryFilter, args *[]any) (string, error) {
	switch {
	case filter.Equality != nil:
		return c.buildCondition(model, query.ComparisonOperatorEq, filter.Equality.Field, filter.Equality.Value, args)
	case filter.Condition != nil:
		cond := filter.Condition
		return c.buildCondition(model, cond.Operator, cond.Field, cond.Value, args)
	case filter.Group != nil:
		g := filter.Group
		if len(g.Conditions) == 1 && g.Operator != query.LogicalOperatorNot {
			return c.buildWhereClause(model, g.Conditions[0], args)
		}
		clauses := make([]string, 0, len(g.Conditions))
		for _, child := range g.Conditions {
			clause, err := c.buildWhereClause(model, child, args)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, clause)
		}
		switch g.Operator {
		case query.LogicalOperatorAnd:
			return "(" + strings.Join(clauses, " AND ") + ")", nil
		case query.LogicalOperatorOr:
			return "(" + strings.Join(clauses, " OR ") + ")", nil
		case query.LogicalOperatorNot:
			return "NOT (" + strings.Join(clauses, " AND ") + ")", nil
		default:
			return "", fmt.Errorf("unsupported logical operator %q", g.Operator)
		}
	default:
		return "", fmt.Errorf("invalid filter structure: no member is set")
	}
}

// buildCondition translates one comparison into SQL.
func (c *SQLCompiler) buildCondition(model *schema.ModelDefinition, op query.ComparisonOperator, fieldName string, value query.FilterValue, args *[]any) (string, error) {
	field, ok := model.Fields[fieldName]
	if !ok {
		return "", &core.UnknownFieldError{Model: model.Name, Field: fieldName}
	}
	column := quoteIdentifier(fieldName)

	switch op {
	case query.ComparisonOperatorEq, query.ComparisonOperatorNe:
		if value == nil {
			if op == query.ComparisonOperatorEq {
				return column + " IS NULL", nil
			}
			return column + " IS NOT NULL", nil
		}
		fallthrough
	case query.ComparisonOperatorGt, query.ComparisonOperatorLt, query.ComparisonOperatorGe, query.ComparisonOperatorLe:
		prepared, err := prepareValue(c.dialect, field, value)
		if err != nil {
			return "", err
		}
		*args = append(*args, prepared)
		return fmt.Sprintf("%s %s ?", column, sqlOperators[op]), nil
	case query.ComparisonOperatorLike:
		*args = append(*args, "%"+core.ToString(value)+"%")
		return c.dialect.AsText(column) + " LIKE ?", nil
	case query.ComparisonOperatorILike:
		*args = append(*args, "%"+core.ToString(value)+"%")
		return c.dialect.ILike(column), nil
	case query.ComparisonOperatorMatch:
		*args = append(*args, c.dialect.MatchArg(core.ToString(value)))
		return c.dialect.Match(column), nil
	case query.ComparisonOperatorIn, query.ComparisonOperatorNotIn:
		values, _ := value.([]query.FilterValue)
		if len(values) == 0 {
			if op == query.ComparisonOperatorIn {
				return "1=0", nil
			}
			return "1=1", nil
		}
		for _, v := range values {
			prepared, err := prepareValue(c.dialect, field, v)
			if err != nil {
				return "", err
			}
			*args = append(*args, prepared)
		}
		placeholders := strings.Repeat("?, ", len(values)-1) + "?"
		return fmt.Sprintf("%s %s (%s)", column, sqlOperators[op], placeholders), nil
	default:
		return "", fmt.Errorf("unsupported comparison operator for direct SQL: %s", op)
	}
}

var sqlOperators = map[query.ComparisonOperator]string{
	query.ComparisonOperatorEq:    "=",
	query.ComparisonOperatorNe:    "!=",
	query.ComparisonOperatorGt:    ">",
	query.ComparisonOperatorLt:    "<",
	query.ComparisonOperatorGe:    ">=",
	query.ComparisonOperatorLe:    "<=",
	query.ComparisonOperatorIn:    "IN",
	query.ComparisonOperatorNotIn: "NOT IN",
}

// prepareValue converts a Go or query-string value into the bind argument of
// a column, so that "true" binds as a boolean and "42" as an integer.
func prepareValue(d Dialect, field *schema.FieldDefinition, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch field.Type {
	case schema.FieldTypeBoolean:
		b, ok := core.ToBool(value)
		if !ok {
			return nil, fmt.Errorf("expected boolean for field '%s', got %v", field.Name, value)
		}
		return d.Bool(b), nil
	case schema.FieldTypeInteger:
		i, ok := core.ToInt64(value)
		if !ok {
			return nil, fmt.Errorf("expected integer for field '%s', got %v", field.Name, value)
		}
		return i, nil
	case schema.FieldTypeNumber, schema.FieldTypeDecimal:
		f, ok := core.ToFloat64(value)
		if !ok {
			return nil, fmt.Errorf("expected number for field '%s', got %v", field.Name, value)
		}
		return f, nil
	case schema.FieldTypeDateTime, schema.FieldTypeDate:
		t, ok := schema.ParseTime(value)
		if !ok {
			return nil, fmt.Errorf("expected %s for field '%s', got %v", field.Type, field.Name, value)
		}
		return d.Time(t, field.Type), nil
	case schema.FieldTypeObject, schema.FieldTypeArray:
		switch v := value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize field '%s' to JSON: %w", field.Name, err)
		}
		return string(data), nil
	case schema.FieldTypeString, schema.FieldTypeEnum, schema.FieldTypeUUID:
		return core.ToString(value), nil
	default:
		return value, nil
	}
}

// Query is a schema-aware statement generator for one model.
type Query struct {
	dialect  Dialect
	compiler *SQLCompiler
	model    *schema.ModelDefinition
}

// NewQuery creates a statement generator for a model.
func NewQuery(dialect Dialect, model *schema.ModelDefinition) (*Query, error) {
	if model == nil {
		return nil, fmt.Errorf("model definition cannot be nil")
	}
	if model.Table == "" {
		return nil, fmt.Errorf("model %s must define a table name", model.Name)
	}
	return &Query{dialect: dialect, compiler: NewSQLCompiler(dialect), model: model}, nil
}

func (q *Query) table() string {
	return quoteIdentifier(q.model.Table)
}

func (q *Query) where(filters []query.QueryFilter, args *[]any) (string, error) {
	clause, err := q.compiler.compileAll(q.model, filters, args)
	if err != nil {
		return "", err
	}
	if clause == "" {
		return "", nil
	}
	return " WHERE " + clause, nil
}

// SelectSQL renders a SELECT with filters, orders and the result window.
func (q *Query) SelectSQL(filters []query.QueryFilter, orders []query.SortConfiguration, page query.Pagination) (string, []any, error) {
	var args []any
	where, err := q.where(filters, &args)
	if err != nil {
		return "", nil, fmt.Errorf("error building WHERE clause: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM " + q.table())
	sb.WriteString(where)

	if len(orders) > 0 {
		parts := make([]string, 0, len(orders))
		for _, o := range orders {
			if !q.model.HasField(o.Field) {
				return "", nil, fmt.Errorf("sort error: %w", &core.UnknownFieldError{Model: q.model.Name, Field: o.Field})
			}
			dir := "DESC"
			if o.Direction == query.SortDirectionAsc {
				dir = "ASC"
			}
			parts = append(parts, quoteIdentifier(o.Field)+" "+dir)
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	sb.WriteString(q.dialect.Window(page.Limit, page.Offset))
	return sb.String() + ";", args, nil
}

// CountSQL renders a count-only query.
func (q *Query) CountSQL(filters []query.QueryFilter) (string, []any, error) {
	var args []any
	where, err := q.where(filters, &args)
	if err != nil {
		return "", nil, fmt.Errorf("error building WHERE clause for count: %w", err)
	}
	return "SELECT COUNT(*) FROM " + q.table() + where + ";", args, nil
}

// columnsOf returns the keys of data in declaration order.
func (q *Query) columnsOf(data core.Record) ([]string, error) {
	for name := range data {
		if !q.model.HasField(name) {
			return nil, &core.UnknownFieldError{Model: q.model.Name, Field: name}
		}
	}
	columns := make([]string, 0, len(data))
	for _, name := range q.model.Columns {
		if _, ok := data[name]; ok {
			columns = append(columns, name)
		}
	}
	return columns, nil
}

// InsertSQL renders an INSERT of one row that returns the stored row.
func (q *Query) InsertSQL(data core.Record) (string, []any, error) {
	columns, err := q.columnsOf(data)
	if err != nil {
		return "", nil, err
	}
	if len(columns) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *;", q.table()), nil, nil
	}

	quoted := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, name := range columns {
		prepared, err := prepareValue(q.dialect, q.model.Fields[name], data[name])
		if err != nil {
			return "", nil, fmt.Errorf("error preparing value for field '%s': %w", name, err)
		}
		quoted[i] = quoteIdentifier(name)
		args[i] = prepared
	}
	placeholders := strings.Repeat("?, ", len(columns)-1) + "?"
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *;", q.table(), strings.Join(quoted, ", "), placeholders)
	return sql, args, nil
}

// UpdateSQL renders an UPDATE that returns the updated rows.
func (q *Query) UpdateSQL(updates core.Record, filters []query.QueryFilter) (string, []any, error) {
	if len(updates) == 0 {
		return "", nil, fmt.Errorf("no fields provided for update")
	}
	columns, err := q.columnsOf(updates)
	if err != nil {
		return "", nil, err
	}

	sets := make([]string, len(columns))
	args := make([]any, 0, len(columns))
	for i, name := range columns {
		prepared, err := prepareValue(q.dialect, q.model.Fields[name], updates[name])
		if err != nil {
			return "", nil, fmt.Errorf("error preparing value for field '%s': %w", name, err)
		}
		sets[i] = quoteIdentifier(name) + " = ?"
		args = append(args, prepared)
	}

	where, err := q.where(filters, &args)
	if err != nil {
		return "", nil, fmt.Errorf("error building WHERE clause for update: %w", err)
	}
	return fmt.Sprintf("UPDATE %s SET %s%s RETURNING *;", q.table(), strings.Join(sets, ", "), where), args, nil
}

// DeleteSQL renders a DELETE that returns the removed rows. A DELETE without
// filters is refused.
func (q *Query) DeleteSQL(filters []query.QueryFilter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, fmt.Errorf("DELETE without WHERE clause is not allowed")
	}
	var args []any
	where, err := q.where(filters, &args)
	if err != nil {
		return "", nil, fmt.Errorf("error building WHERE clause for delete: %w", err)
	}
	return fmt.Sprintf("DELETE FROM %s%s RETURNING *;", q.table(), where), args, nil
}
