package resource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asaidimu/go-restful/auth"
	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/persistence"
	"github.com/asaidimu/go-restful/core/query"
	"github.com/asaidimu/go-restful/core/schema"
	"github.com/asaidimu/go-restful/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	ann   = auth.NewRecordUser(core.Record{"id": "ann", "username": "ann"})
	bob   = auth.NewRecordUser(core.Record{"id": "bob", "username": "bob"})
	admin = auth.NewRecordUser(core.Record{"id": "root", "username": "root", "admin": true})
)

func noteModel() *schema.ModelDefinition {
	return schema.NewModel("Note",
		schema.IncrementalID(),
		schema.Field("title", schema.FieldTypeString, schema.Required()),
		schema.Field("stars", schema.FieldTypeInteger, schema.Default(0)),
		schema.Field("secret", schema.FieldTypeString, schema.Hidden()),
		schema.TimeColumns(),
		schema.CreateUser(schema.FieldTypeString),
		schema.UpdateUser(schema.FieldTypeString),
	)
}

func newEngine(t *testing.T) (*persistence.Engine, *schema.ModelDefinition) {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "resource.db") + "?_busy_timeout=5000&_journal_mode=WAL&_cslike=1"
	db, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, dsn, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	engine, err := persistence.NewEngine(db, zaptest.NewLogger(t))
	require.NoError(t, err)
	model := noteModel()
	registry := persistence.NewRegistry()
	require.NoError(t, registry.Register(model))
	require.NoError(t, registry.CreateAll(ctx, engine))
	return engine, model
}

func seedNotes(t *testing.T, e *persistence.Engine, model *schema.ModelDefinition) {
	t.Helper()
	for _, n := range []core.Record{
		{"title": "groceries", "stars": 1, "created_by": "ann", "secret": "x"},
		{"title": "taxes", "stars": 5, "created_by": "bob"},
		{"title": "garden", "stars": 3, "created_by": "ann"},
	} {
		_, err := e.Create(context.Background(), nil, model, n)
		require.NoError(t, err)
	}
}

func newRequest(method, target, body string, user auth.User) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		r = r.WithContext(auth.WithUser(r.Context(), user))
	}
	return r
}

func titles(rows []core.Record) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r["title"].(string))
	}
	return out
}

func TestNew(t *testing.T) {
	engine, model := newEngine(t)

	res, err := New(Resource{Model: model, Engine: engine})
	require.NoError(t, err)
	assert.Equal(t, "note", res.Name)
	assert.Equal(t, DefaultIDParam, res.IDParam)
	assert.True(t, res.HasItemOperations())
	for _, op := range append(CollectionOperations, ItemOperations...) {
		assert.True(t, res.Supports(op), op)
	}

	limited, err := New(Resource{Model: model, Engine: engine, Operations: []Operation{OperationList}})
	require.NoError(t, err)
	assert.False(t, limited.Supports(OperationCreate))
	assert.False(t, limited.HasItemOperations())

	tests := []struct {
		name string
		res  Resource
	}{
		{name: "no name without model", res: Resource{Source: func(context.Context) ([]core.Record, error) { return nil, nil }}},
		{name: "model without engine", res: Resource{Model: model}},
		{name: "broken schema", res: Resource{Model: model, Engine: engine, Schema: Schema{Create: `{"type": 12}`}}},
		{name: "unimplemented operation", res: Resource{Name: "feed", Source: func(context.Context) ([]core.Record, error) { return nil, nil }, Operations: []Operation{OperationDelete}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.res)
			assert.Error(t, err)
		})
	}

	empty, err := New(Resource{Name: "empty"})
	require.NoError(t, err)
	assert.False(t, empty.HasOperations())
}

func TestResource_CRUD(t *testing.T) {
	engine, model := newEngine(t)
	res := MustNew(Resource{Model: model, Engine: engine})

	created, err := res.Create(newRequest(http.MethodPost, "/notes", `{"title":"plan trip","secret":"s3"}`, ann))
	require.NoError(t, err)
	assert.Equal(t, "plan trip", created["title"])
	assert.Equal(t, "ann", created["created_by"])
	assert.Equal(t, "ann", created["updated_by"])
	assert.NotContains(t, created, "secret")
	id := created["id"]

	shown, err := res.Show(newRequest(http.MethodGet, "/notes/1", "", ann), id)
	require.NoError(t, err)
	assert.Equal(t, "plan trip", shown["title"])

	updated, err := res.Update(newRequest(http.MethodPut, "/notes/1", `{"stars":4}`, bob), id)
	require.NoError(t, err)
	assert.EqualValues(t, 4, updated["stars"])
	assert.Equal(t, "ann", updated["created_by"])
	assert.Equal(t, "bob", updated["updated_by"])

	deleted, err := res.Delete(newRequest(http.MethodDelete, "/notes/1", "", ann), id)
	require.NoError(t, err)
	assert.Equal(t, "plan trip", deleted["title"])

	for _, call := range []func() (core.Record, error){
		func() (core.Record, error) { return res.Show(newRequest(http.MethodGet, "/", "", ann), id) },
		func() (core.Record, error) { return res.Update(newRequest(http.MethodPut, "/", `{"stars":1}`, ann), id) },
		func() (core.Record, error) { return res.Delete(newRequest(http.MethodDelete, "/", "", ann), id) },
	} {
		_, err := call()
		var nf *core.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "note", nf.Resource)
		assert.Equal(t, http.StatusNotFound, core.StatusCode(err))
	}
}

func TestResource_List(t *testing.T) {
	engine, model := newEngine(t)
	seedNotes(t, engine, model)
	res := MustNew(Resource{Model: model, Engine: engine})

	tests := []struct {
		name   string
		query  string
		count  int64
		titles []string
	}{
		{name: "all", query: "__order=id,asc", count: 3, titles: []string{"groceries", "taxes", "garden"}},
		{name: "window", query: "__order=stars,desc&__limit=1&__offset=1", count: 3, titles: []string{"garden"}},
		{name: "limit zero", query: "__limit=0", count: 3, titles: []string{}},
		{name: "offset past end", query: "__offset=10", count: 3, titles: []string{}},
		{name: "equality", query: "created_by=ann&__order=stars,asc", count: 2, titles: []string{"groceries", "garden"}},
		{name: "unknown field dropped", query: "nonexistent_field=x&__order=id,asc", count: 3, titles: []string{"groceries", "taxes", "garden"}},
		{name: "composite", query: "__and=stars,2,ge&__and=stars,4,le", count: 1, titles: []string{"garden"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := res.List(newRequest(http.MethodGet, "/notes?"+tt.query, "", ann))
			require.NoError(t, err)
			assert.Equal(t, tt.count, result.Count)
			assert.Equal(t, tt.titles, titles(result.Data))
			assert.NotNil(t, result.Data)
			for _, row := range result.Data {
				assert.NotContains(t, row, "secret")
			}
		})
	}

	_, err := res.List(newRequest(http.MethodGet, "/notes?__limit=abc", "", ann))
	var invalid *core.InvalidParameterError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "__limit", invalid.Field)
}

func TestResource_Isolation(t *testing.T) {
	engine, model := newEngine(t)
	seedNotes(t, engine, model)
	res := MustNew(Resource{Model: model, Engine: engine, Isolation: true})

	tests := []struct {
		name  string
		user  auth.User
		count int64
	}{
		{name: "owner", user: ann, count: 2},
		{name: "other owner", user: bob, count: 1},
		{name: "admin", user: admin, count: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := res.List(newRequest(http.MethodGet, "/notes", "", tt.user))
			require.NoError(t, err)
			assert.Equal(t, tt.count, result.Count)
		})
	}

	_, err := res.List(newRequest(http.MethodGet, "/notes", "", nil))
	var denied *core.PermissionError
	require.ErrorAs(t, err, &denied)

	// taxes belongs to bob
	_, err = res.Show(newRequest(http.MethodGet, "/notes/2", "", ann), 2)
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	_, err = res.Delete(newRequest(http.MethodDelete, "/notes/2", "", ann), 2)
	require.ErrorAs(t, err, &nf)

	shown, err := res.Show(newRequest(http.MethodGet, "/notes/2", "", bob), 2)
	require.NoError(t, err)
	assert.Equal(t, "taxes", shown["title"])
}

func TestResource_IsolationFailsClosed(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	memos := schema.NewModel("Memo",
		schema.IncrementalID(),
		schema.Field("title", schema.FieldTypeString, schema.Required()),
	)
	_, err := New(Resource{Model: memos, Engine: engine, Isolation: true})
	assert.ErrorContains(t, err, `isolation field "created_by"`)
	_, err = New(Resource{Model: memos, Engine: engine, Isolation: true, IsolationPolicy: IsolationByUser{Field: "owner"}})
	assert.Error(t, err)

	ledger := schema.NewModel("Ledger",
		schema.IncrementalID(),
		schema.Field("title", schema.FieldTypeString, schema.Required()),
		schema.CreateUser(schema.FieldTypeInteger),
	)
	registry := persistence.NewRegistry()
	require.NoError(t, registry.Register(ledger))
	require.NoError(t, registry.CreateAll(ctx, engine))
	_, err = engine.Create(ctx, nil, ledger, core.Record{"title": "payroll", "created_by": 7})
	require.NoError(t, err)

	res := MustNew(Resource{Model: ledger, Engine: engine, Isolation: true})
	var denied *core.PermissionError
	_, err = res.List(newRequest(http.MethodGet, "/ledgers", "", ann))
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, http.StatusForbidden, core.StatusCode(err))
	_, err = res.Show(newRequest(http.MethodGet, "/ledgers/1", "", ann), 1)
	require.ErrorAs(t, err, &denied)
	_, err = res.Update(newRequest(http.MethodPut, "/ledgers/1", `{"title":"mine"}`, ann), 1)
	require.ErrorAs(t, err, &denied)
	_, err = res.Delete(newRequest(http.MethodDelete, "/ledgers/1", "", ann), 1)
	require.ErrorAs(t, err, &denied)

	count, rows, err := engine.List(ctx, nil, ledger, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, "payroll", rows[0]["title"])
}

func TestResource_IsolationCoversHooks(t *testing.T) {
	engine, model := newEngine(t)
	seedNotes(t, engine, model)
	res := MustNew(Resource{
		Model:     model,
		Engine:    engine,
		Isolation: true,
		OnList: func(c *Context) (int64, []core.Record, error) {
			return engine.List(c.Context(), c.Session(), model, nil)
		},
	})

	result, err := res.List(newRequest(http.MethodGet, "/notes", "", bob))
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Count)
	assert.Equal(t, []string{"taxes"}, titles(result.Data))
}

func TestResource_Validation(t *testing.T) {
	engine, model := newEngine(t)
	res := MustNew(Resource{
		Model:  model,
		Engine: engine,
		Schema: Schema{
			Default: `{"type":"object","properties":{"title":{"type":"string","maxLength":10}}}`,
			Create:  `{"type":"object","required":["title"],"properties":{"title":{"type":"string","minLength":1}}}`,
			List:    `{"type":"object","properties":{"__limit":{"type":"string","pattern":"^[0-9]$"}}}`,
		},
	})

	tests := []struct {
		name string
		call func() error
		path string
	}{
		{name: "create missing title", call: func() error {
			_, err := res.Create(newRequest(http.MethodPost, "/", `{"stars":2}`, ann))
			return err
		}},
		{name: "create empty title", path: "title", call: func() error {
			_, err := res.Create(newRequest(http.MethodPost, "/", `{"title":""}`, ann))
			return err
		}},
		{name: "update falls back to default schema", path: "title", call: func() error {
			_, err := res.Update(newRequest(http.MethodPut, "/", `{"title":"much too long for this"}`, ann), 1)
			return err
		}},
		{name: "list params", path: "__limit", call: func() error {
			_, err := res.List(newRequest(http.MethodGet, "/?__limit=10", "", ann))
			return err
		}},
		{name: "body is not an object", call: func() error {
			_, err := res.Create(newRequest(http.MethodPost, "/", `[1,2]`, ann))
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.path, verr.Path)
			assert.Equal(t, http.StatusBadRequest, core.StatusCode(err))
		})
	}

	result, err := res.List(newRequest(http.MethodGet, "/", "", ann))
	require.NoError(t, err)
	assert.Zero(t, result.Count)
}

func TestResource_AutoFillDisabled(t *testing.T) {
	engine, model := newEngine(t)
	res := MustNew(Resource{Model: model, Engine: engine, AutoFillFields: core.BoolPtr(false)})

	created, err := res.Create(newRequest(http.MethodPost, "/", `{"title":"mine","created_by":"carol"}`, ann))
	require.NoError(t, err)
	assert.Equal(t, "carol", created["created_by"])

	anonymous := MustNew(Resource{Model: model, Engine: engine})
	created, err = anonymous.Create(newRequest(http.MethodPost, "/", `{"title":"nobody"}`, nil))
	require.NoError(t, err)
	assert.Nil(t, created["created_by"])
}

func TestResource_HooksAndRollback(t *testing.T) {
	engine, model := newEngine(t)
	boom := errors.New("boom")
	var hookUser auth.User

	res := MustNew(Resource{
		Model:  model,
		Engine: engine,
		OnCreate: func(c *Context, data core.Record) (core.Record, error) {
			hookUser = c.User()
			if _, err := c.Resource.ModelHandle().Create(c.Context(), c.Session(), data); err != nil {
				return nil, err
			}
			if data["title"] == "fail" {
				return nil, boom
			}
			if data["title"] == "panic" {
				panic("hook panicked")
			}
			return data, nil
		},
	})

	_, err := res.Create(newRequest(http.MethodPost, "/", `{"title":"fail"}`, ann))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "ann", hookUser.Username())

	assert.PanicsWithValue(t, "hook panicked", func() {
		_, _ = res.Create(newRequest(http.MethodPost, "/", `{"title":"panic"}`, ann))
	})

	_, err = res.Create(newRequest(http.MethodPost, "/", `{"title":"keep"}`, ann))
	require.NoError(t, err)

	result, err := res.List(newRequest(http.MethodGet, "/", "", ann))
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, titles(result.Data))
}

func TestResource_Source(t *testing.T) {
	feed := func(context.Context) ([]core.Record, error) {
		return []core.Record{
			{"id": 1, "name": "alpha", "size": 3},
			{"id": 2, "name": "beta", "size": 9},
			{"id": 3, "name": "gamma", "size": 6},
		}, nil
	}
	res := MustNew(Resource{Name: "shards", Source: feed})
	assert.True(t, res.Supports(OperationList))
	assert.True(t, res.Supports(OperationShow))
	assert.False(t, res.Supports(OperationCreate))

	result, err := res.List(newRequest(http.MethodGet, "/shards?__gt=size,4&__order=size,desc", "", nil))
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Count)
	require.Len(t, result.Data, 2)
	assert.Equal(t, "beta", result.Data[0]["name"])

	shown, err := res.Show(newRequest(http.MethodGet, "/shards/3", "", nil), "3")
	require.NoError(t, err)
	assert.Equal(t, "gamma", shown["name"])

	_, err = res.Show(newRequest(http.MethodGet, "/shards/7", "", nil), "7")
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)

	_, err = res.Create(newRequest(http.MethodPost, "/shards", `{}`, nil))
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestResource_SourceIsolation(t *testing.T) {
	feed := func(context.Context) ([]core.Record, error) {
		return []core.Record{
			{"id": 1, "name": "alpha", "created_by": "ann"},
			{"id": 2, "name": "beta", "created_by": "bob"},
			{"id": 3, "name": "gamma", "created_by": "ann"},
		}, nil
	}
	res := MustNew(Resource{Name: "shards", Source: feed, Isolation: true})

	result, err := res.List(newRequest(http.MethodGet, "/shards?__order=id,asc", "", ann))
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Count)
	require.Len(t, result.Data, 2)
	assert.Equal(t, "gamma", result.Data[1]["name"])

	_, err = res.Show(newRequest(http.MethodGet, "/shards/2", "", ann), "2")
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)

	result, err = res.List(newRequest(http.MethodGet, "/shards", "", admin))
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.Count)
}

func TestContext(t *testing.T) {
	engine, model := newEngine(t)
	res := MustNew(Resource{
		Model:     model,
		Engine:    engine,
		Isolation: true,
		IsolationPolicy: IsolationFunc(func(*http.Request, auth.User) ([]query.QueryFilter, error) {
			return []query.QueryFilter{query.Where(query.ComparisonOperatorGt, "stars", 2)}, nil
		}),
	})

	c, err := NewContext(res, newRequest(http.MethodPut, "/?title=x&__order=id&__limit=5", `{"title":"y"}`, ann), true)
	require.NoError(t, err)
	filters := c.Filters()
	require.Len(t, filters, 2)
	assert.Equal(t, []string{"title"}, filters[0].Fields())
	assert.Equal(t, []string{"stars"}, filters[1].Fields())
	assert.Equal(t, []query.SortConfiguration{{Field: "id", Direction: query.SortDirectionDesc}}, c.Orders())
	assert.EqualValues(t, 5, *c.Pagination().Limit)

	data := c.RequestData()
	assert.Equal(t, core.Record{"title": "y", "updated_by": "ann"}, data)
	assert.Equal(t, core.Record{"title": "y"}, c.Body())

	assert.Nil(t, c.Session())
	require.NoError(t, c.Open())
	assert.NotNil(t, c.Session())
	var cerr error
	c.Close(&cerr)
	assert.NoError(t, cerr)
	assert.Nil(t, c.Session())

	_, err = NewContext(res, newRequest(http.MethodGet, "/?__in=id", "", ann), false)
	var invalid *core.InvalidParameterError
	require.ErrorAs(t, err, &invalid)
}
