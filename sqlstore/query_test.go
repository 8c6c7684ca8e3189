package sqlstore

import (
	"testing"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/query"
	"github.com/asaidimu/go-restful/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func peopleModel() *schema.ModelDefinition {
	return schema.NewModel("Person",
		schema.IncrementalID(),
		schema.Field("name", schema.FieldTypeString, schema.Required(), schema.Length(32)),
		schema.Field("age", schema.FieldTypeInteger),
		schema.Field("active", schema.FieldTypeBoolean, schema.Default(true)),
		schema.Field("score", schema.FieldTypeNumber),
		schema.Field("status", schema.FieldTypeEnum, schema.Values("active", "inactive"), schema.Default("active")),
		schema.Field("tags", schema.FieldTypeArray),
		schema.Field("born", schema.FieldTypeDate),
		schema.CreateTime(),
	)
}

func TestSQLCompiler_Compile(t *testing.T) {
	model := peopleModel()
	name := query.Equal("name", "Ann")
	adult := query.Where(query.ComparisonOperatorGt, "age", "17")

	tests := []struct {
		name     string
		dialect  Dialect
		filter   query.QueryFilter
		wantSQL  string
		wantArgs []any
	}{
		{"equality", SQLiteDialect{}, name, `"name" = ?`, []any{"Ann"}},
		{"equality with nil", SQLiteDialect{}, query.Equal("age", nil), `"age" IS NULL`, nil},
		{"ne with nil", SQLiteDialect{}, query.Where(query.ComparisonOperatorNe, "age", nil), `"age" IS NOT NULL`, nil},
		{"ne", SQLiteDialect{}, query.Where(query.ComparisonOperatorNe, "name", "Ann"), `"name" != ?`, []any{"Ann"}},
		{"gt coerces integers", SQLiteDialect{}, adult, `"age" > ?`, []any{int64(17)}},
		{"lt", SQLiteDialect{}, query.Where(query.ComparisonOperatorLt, "score", "2.5"), `"score" < ?`, []any{2.5}},
		{"ge", SQLiteDialect{}, query.Where(query.ComparisonOperatorGe, "age", 18), `"age" >= ?`, []any{int64(18)}},
		{"le", SQLiteDialect{}, query.Where(query.ComparisonOperatorLe, "age", 65.0), `"age" <= ?`, []any{int64(65)}},
		{"boolean sqlite", SQLiteDialect{}, query.Equal("active", "true"), `"active" = ?`, []any{1}},
		{"boolean postgres", PostgresDialect{}, query.Equal("active", "false"), `"active" = ?`, []any{false}},
		{
			"datetime sqlite",
			SQLiteDialect{},
			query.Where(query.ComparisonOperatorGe, "created_at", "2024-01-02T03:04:05Z"),
			`"created_at" >= ?`,
			[]any{"2024-01-02 03:04:05"},
		},
		{"date", SQLiteDialect{}, query.Equal("born", "2000-02-03"), `"born" = ?`, []any{"2000-02-03"}},
		{"like", SQLiteDialect{}, query.Where(query.ComparisonOperatorLike, "name", "nn"), `"name" LIKE ?`, []any{"%nn%"}},
		{"like postgres", PostgresDialect{}, query.Where(query.ComparisonOperatorLike, "age", 1), `CAST("age" AS TEXT) LIKE ?`, []any{"%1%"}},
		{"ilike sqlite", SQLiteDialect{}, query.Where(query.ComparisonOperatorILike, "name", "NN"), `LOWER("name") LIKE LOWER(?)`, []any{"%NN%"}},
		{"ilike postgres", PostgresDialect{}, query.Where(query.ComparisonOperatorILike, "name", "NN"), `CAST("name" AS TEXT) ILIKE ?`, []any{"%NN%"}},
		{"match sqlite", SQLiteDialect{}, query.Where(query.ComparisonOperatorMatch, "name", "ann"), `LOWER("name") LIKE LOWER(?)`, []any{"%ann%"}},
		{
			"match postgres",
			PostgresDialect{},
			query.Where(query.ComparisonOperatorMatch, "name", "ann smith"),
			`to_tsvector(CAST("name" AS TEXT)) @@ plainto_tsquery(?)`,
			[]any{"ann smith"},
		},
		{
			"in",
			SQLiteDialect{},
			query.Where(query.ComparisonOperatorIn, "id", []query.FilterValue{"1", "2", "3"}),
			`"id" IN (?, ?, ?)`,
			[]any{int64(1), int64(2), int64(3)},
		},
		{
			"not in",
			SQLiteDialect{},
			query.Where(query.ComparisonOperatorNotIn, "status", []query.FilterValue{"inactive"}),
			`"status" NOT IN (?)`,
			[]any{"inactive"},
		},
		{"single child and collapses", SQLiteDialect{}, query.And(name), `"name" = ?`, []any{"Ann"}},
		{"single child or collapses", SQLiteDialect{}, query.Or(adult), `"age" > ?`, []any{int64(17)}},
		{"and", SQLiteDialect{}, query.And(name, adult), `("name" = ? AND "age" > ?)`, []any{"Ann", int64(17)}},
		{"or", SQLiteDialect{}, query.Or(name, adult), `("name" = ? OR "age" > ?)`, []any{"Ann", int64(17)}},
		{"not single", SQLiteDialect{}, query.Not(name), `NOT ("name" = ?)`, []any{"Ann"}},
		{"not negates the conjunction", SQLiteDialect{}, query.Not(name, adult), `NOT ("name" = ? AND "age" > ?)`, []any{"Ann", int64(17)}},
		{
			"nested",
			SQLiteDialect{},
			query.And(name, query.Or(adult, query.Not(query.Equal("active", true)))),
			`("name" = ? AND ("age" > ? OR NOT ("active" = ?)))`,
			[]any{"Ann", int64(17), 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewSQLCompiler(tt.dialect).Compile(model, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, p.SQL)
			assert.Equal(t, tt.wantArgs, p.Args)
		})
	}
}

func TestSQLCompiler_CompileErrors(t *testing.T) {
	model := peopleModel()
	c := NewSQLCompiler(SQLiteDialect{})

	t.Run("unknown field", func(t *testing.T) {
		_, err := c.Compile(model, query.Equal("nonexistent_field", "x"))
		var unknown *core.UnknownFieldError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "nonexistent_field", unknown.Field)
		assert.Equal(t, "Person", unknown.Model)
	})

	t.Run("unknown field nested in a group", func(t *testing.T) {
		_, err := c.Compile(model, query.Or(query.Equal("name", "x"), query.Equal("nope", 1)))
		var unknown *core.UnknownFieldError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "nope", unknown.Field)
	})

	t.Run("value of the wrong type", func(t *testing.T) {
		_, err := c.Compile(model, query.Equal("age", "abc"))
		assert.ErrorContains(t, err, "expected integer")
	})

	t.Run("malformed filter", func(t *testing.T) {
		_, err := c.Compile(model, query.And())
		assert.Error(t, err)
	})

	t.Run("nil model", func(t *testing.T) {
		_, err := c.Compile(nil, query.Equal("name", "x"))
		assert.Error(t, err)
	})
}

func TestQuery_SelectSQL(t *testing.T) {
	q, err := NewQuery(SQLiteDialect{}, peopleModel())
	require.NoError(t, err)

	sql, args, err := q.SelectSQL(
		[]query.QueryFilter{query.Equal("status", "active"), query.Where(query.ComparisonOperatorGe, "age", 18)},
		[]query.SortConfiguration{{Field: "created_at", Direction: query.SortDirectionAsc}, {Field: "id", Direction: query.SortDirectionDesc}},
		query.Pagination{Limit: query.Int64Ptr(2), Offset: query.Int64Ptr(4)},
	)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "people" WHERE "status" = ? AND "age" >= ? ORDER BY "created_at" ASC, "id" DESC LIMIT 2 OFFSET 4;`, sql)
	assert.Equal(t, []any{"active", int64(18)}, args)

	sql, args, err = q.SelectSQL(nil, nil, query.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "people";`, sql)
	assert.Empty(t, args)

	sql, _, err = q.SelectSQL(nil, nil, query.Pagination{Offset: query.Int64Ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "people" LIMIT -1 OFFSET 3;`, sql)

	_, _, err = q.SelectSQL(nil, []query.SortConfiguration{{Field: "nope", Direction: query.SortDirectionAsc}}, query.Pagination{})
	var unknown *core.UnknownFieldError
	assert.ErrorAs(t, err, &unknown)
}

func TestQuery_PostgresWindow(t *testing.T) {
	q, err := NewQuery(PostgresDialect{}, peopleModel())
	require.NoError(t, err)
	sql, _, err := q.SelectSQL(nil, nil, query.Pagination{Offset: query.Int64Ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "people" OFFSET 3;`, sql)

	sql, _, err = q.SelectSQL(nil, nil, query.Pagination{Limit: query.Int64Ptr(0)})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "people" LIMIT 0;`, sql)
}

func TestQuery_CountSQL(t *testing.T) {
	q, err := NewQuery(SQLiteDialect{}, peopleModel())
	require.NoError(t, err)
	sql, args, err := q.CountSQL([]query.QueryFilter{query.Equal("name", "Ann")})
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "people" WHERE "name" = ?;`, sql)
	assert.Equal(t, []any{"Ann"}, args)
}

func TestQuery_InsertSQL(t *testing.T) {
	q, err := NewQuery(SQLiteDialect{}, peopleModel())
	require.NoError(t, err)

	sql, args, err := q.InsertSQL(core.Record{"tags": []string{"a"}, "name": "Ann", "active": false})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "people" ("name", "active", "tags") VALUES (?, ?, ?) RETURNING *;`, sql)
	assert.Equal(t, []any{"Ann", 0, `["a"]`}, args)

	sql, args, err = q.InsertSQL(core.Record{})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "people" DEFAULT VALUES RETURNING *;`, sql)
	assert.Empty(t, args)

	_, _, err = q.InsertSQL(core.Record{"nope": 1})
	var unknown *core.UnknownFieldError
	assert.ErrorAs(t, err, &unknown)
}

func TestQuery_UpdateSQL(t *testing.T) {
	q, err := NewQuery(SQLiteDialect{}, peopleModel())
	require.NoError(t, err)

	sql, args, err := q.UpdateSQL(core.Record{"age": "40", "name": "Bo"}, []query.QueryFilter{query.Equal("id", 3)})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "people" SET "name" = ?, "age" = ? WHERE "id" = ? RETURNING *;`, sql)
	assert.Equal(t, []any{"Bo", int64(40), int64(3)}, args)

	_, _, err = q.UpdateSQL(core.Record{}, nil)
	assert.ErrorContains(t, err, "no fields provided")
}

func TestQuery_DeleteSQL(t *testing.T) {
	q, err := NewQuery(SQLiteDialect{}, peopleModel())
	require.NoError(t, err)

	sql, args, err := q.DeleteSQL([]query.QueryFilter{query.Where(query.ComparisonOperatorIn, "id", []query.FilterValue{1, 2})})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "people" WHERE "id" IN (?, ?) RETURNING *;`, sql)
	assert.Equal(t, []any{int64(1), int64(2)}, args)

	_, _, err = q.DeleteSQL(nil)
	assert.ErrorContains(t, err, "not allowed")
}

func TestNewQuery_Errors(t *testing.T) {
	_, err := NewQuery(SQLiteDialect{}, nil)
	assert.Error(t, err)
	_, err = NewQuery(SQLiteDialect{}, schema.NewModel("X", schema.WithTable("")))
	assert.Error(t, err)
}

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"sqlite3", "sqlite"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, DriverSQLite, d.Name())
	}
	for _, name := range []string{"postgres", "postgresql", "pgx"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, DriverPostgres, d.Name())
	}
	_, err := DialectFor("oracle")
	assert.Error(t, err)
}
