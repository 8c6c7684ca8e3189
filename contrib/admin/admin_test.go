package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/asaidimu/go-restful/auth"
	"github.com/asaidimu/go-restful/cache"
	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/persistence"
	"github.com/asaidimu/go-restful/server"
	"github.com/asaidimu/go-restful/sqlstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"
)

const rootPassword = "Secr3t!pw"

type fixture struct {
	admin  *Admin
	engine *persistence.Engine
	db     *sqlstore.SQLInteractor
	cache  *cache.Client
	app    http.Handler
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "admin.db") + "?_busy_timeout=5000&_journal_mode=WAL&_cslike=1"
	require.NoError(t, Migrate(sqlstore.DriverSQLite, dsn, logger))

	db, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, dsn, logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	engine, err := persistence.NewEngine(db, logger)
	require.NoError(t, err)

	c := cache.NewClient(cache.NewMemoryBackend(100, time.Minute), logger)
	options := Options{Cache: c, Logger: logger}
	for _, opt := range opts {
		opt(&options)
	}
	a, err := New(engine, options)
	require.NoError(t, err)
	_, err = a.Store.CreateUser(ctx, nil, core.Record{"username": "root", "password": rootPassword, "admin": true})
	require.NoError(t, err)

	router, err := a.Router()
	require.NoError(t, err)
	app, err := server.New(router, server.Options{Logger: logger})
	require.NoError(t, err)
	return &fixture{admin: a, engine: engine, db: db, cache: c, app: app}
}

type header func(r *http.Request)

func basic(user, password string) header {
	return func(r *http.Request) { r.SetBasicAuth(user, password) }
}

func token(value string) header {
	return func(r *http.Request) { r.Header.Set(auth.TokenHeader, value) }
}

func (f *fixture) do(method, target, body string, headers ...header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		h(req)
	}
	rec := httptest.NewRecorder()
	f.app.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) audits(t *testing.T) []string {
	t.Helper()
	rows, err := f.admin.Store.audits.Find(context.Background(), nil, nil)
	require.NoError(t, err)
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = core.ToString(r["action"])
	}
	return out
}

func TestMigrate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, m := range Models() {
		ok, err := f.db.TableExists(ctx, m.Table)
		require.NoError(t, err)
		assert.True(t, ok, m.Table)
	}
	ok, err := f.db.TableExists(ctx, MigrationsTable)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = NewMigrator("oracle", "x", nil)
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	reg := persistence.NewRegistry()
	require.NoError(t, Register(reg))
	assert.Equal(t, []string{"AuthAudit", "AuthGroup", "AuthToken", "AuthUser"}, reg.Names())
	assert.Equal(t, "auth_users", AuthUser.Table)
	assert.Equal(t, []string{"password"}, AuthUser.HiddenFields())
}

func TestLoginLogout(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		body  string
		code  int
		title string
		desc  string
	}{
		{"unknown user", `{"username":"ghost","password":"whatever"}`, http.StatusUnauthorized, "Authentication failed", "Invalid username"},
		{"wrong password", `{"username":"root","password":"wrong"}`, http.StatusUnauthorized, "Authentication failed", "Invalid password"},
		{"missing password", `{"username":"root"}`, http.StatusBadRequest, "", ""},
		{"extra field", `{"username":"root","password":"x","admin":true}`, http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/login", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.title != "" {
				assert.Equal(t, tt.title, gjson.Get(rec.Body.String(), "title").String())
				assert.Equal(t, tt.desc, gjson.Get(rec.Body.String(), "description").String())
			}
		})
	}
	assert.Empty(t, f.audits(t))

	rec := f.do(http.MethodPost, "/login", `{"username":"root","password":"`+rootPassword+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	value := gjson.Get(rec.Body.String(), "token").String()
	require.Len(t, value, 32)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "user_id").Int())
	assert.Equal(t, []string{ActionLogin}, f.audits(t))

	rec = f.do(http.MethodGet, "/users", "", token(value))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "count").Int())
	assert.Equal(t, "root", gjson.Get(rec.Body.String(), "data.0.username").String())
	assert.False(t, gjson.Get(rec.Body.String(), "data.0.password").Exists())
	assert.True(t, f.cache.Has(context.Background(), auth.TokenCacheKey(value)))

	rec = f.do(http.MethodPost, "/logout", "", token(value))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "User 'root' logout successful", gjson.Get(rec.Body.String(), "description").String())
	assert.False(t, f.cache.Has(context.Background(), auth.TokenCacheKey(value)))
	assert.Equal(t, []string{ActionLogin, ActionLogout}, f.audits(t))

	rec = f.do(http.MethodGet, "/users", "", token(value))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid user token", gjson.Get(rec.Body.String(), "description").String())

	rec = f.do(http.MethodPost, "/logout", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUsersAndGroups(t *testing.T) {
	f := newFixture(t)
	root := basic("root", rootPassword)

	rec := f.do(http.MethodPost, "/users", `{"username":"ann","password":"Ann!2024x","group_id":99}`, root)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, gjson.Get(rec.Body.String(), "description").String(), "User group does not exist")

	rec = f.do(http.MethodPost, "/groups", `{"name":"ops"}`, root)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	group := gjson.Get(rec.Body.String(), "id").Int()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"weak password", `{"username":"ann","password":"password"}`, http.StatusBadRequest},
		{"bad username", `{"username":"a b","password":"Ann!2024x"}`, http.StatusBadRequest},
		{"unknown field", `{"username":"ann","password":"Ann!2024x","token":"x"}`, http.StatusBadRequest},
		{"valid", `{"username":"ann","password":"Ann!2024x","group_id":` + gjson.Get(rec.Body.String(), "id").Raw + `}`, http.StatusCreated},
		{"duplicate", `{"username":"ann","password":"Ann!2024x"}`, http.StatusBadRequest},
	}
	var created string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/users", tt.body, root)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			if rec.Code == http.StatusCreated {
				created = rec.Body.String()
			}
		})
	}
	require.NotEmpty(t, created)
	assert.False(t, gjson.Get(created, "password").Exists())
	assert.Equal(t, group, gjson.Get(created, "group_id").Int())
	assert.Equal(t, int64(1), gjson.Get(created, "created_by").Int())
	id := gjson.Get(created, "id").String()

	ann := basic("ann", "Ann!2024x")
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/users", "", ann).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/users", "", basic("ann", "nope")).Code)

	rec = f.do(http.MethodPatch, "/users/"+id, `{"first_name":"Ann","group_id":42}`, root)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(http.MethodPatch, "/users/"+id, `{"first_name":"Ann","enabled":false}`, root)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Ann", gjson.Get(rec.Body.String(), "first_name").String())

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/groups", "", ann).Code, "disabled users cannot sign in")
	rec = f.do(http.MethodPost, "/login", `{"username":"ann","password":"Ann!2024x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/users?__order=id,asc", "", root)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"root", "ann"}, stringsOf(gjson.Get(rec.Body.String(), "data.#.username")))

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/users/abc", "", root).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/users/"+id, "", root).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/users/"+id, "", root).Code)
}

func stringsOf(r gjson.Result) []string {
	var out []string
	for _, v := range r.Array() {
		out = append(out, v.String())
	}
	return out
}

func TestStore_SetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Error(t, f.admin.Store.SetPassword(ctx, nil, "root", "short"))
	var nf *core.NotFoundError
	assert.ErrorAs(t, f.admin.Store.SetPassword(ctx, nil, "ghost", "N3w!secret"), &nf)

	require.NoError(t, f.admin.Store.SetPassword(ctx, nil, "root", "N3w!secret"))
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/groups", "", basic("root", rootPassword)).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/groups", "", basic("root", "N3w!secret")).Code)
}

func TestTokenExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := f.admin.Store
	root, err := store.UserByName(ctx, nil, "root")
	require.NoError(t, err)

	expired, err := store.IssueToken(ctx, nil, root, time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	live, err := store.IssueToken(ctx, nil, root, time.Hour, time.Now())
	require.NoError(t, err)

	tok, err := store.LookupToken(ctx, core.ToString(live["token"]))
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiredAt, 2*time.Second)

	rec := f.do(http.MethodGet, "/groups", "", token(core.ToString(expired["token"])))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	tok, err = store.LookupToken(ctx, core.ToString(expired["token"]))
	require.NoError(t, err)
	assert.Nil(t, tok, "expired tokens are revoked on use")

	expired, err = store.IssueToken(ctx, nil, root, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	janitor, err := NewTokenJanitor(store, zaptest.NewLogger(t))
	require.NoError(t, err)
	n, err := janitor.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = janitor.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	tok, err = store.LookupToken(ctx, core.ToString(live["token"]))
	require.NoError(t, err)
	assert.NotNil(t, tok)
}

func TestTokenJanitor_Schedule(t *testing.T) {
	f := newFixture(t)
	_, err := NewTokenJanitor(f.admin.Store, nil, WithSchedule("not a schedule"))
	assert.Error(t, err)

	ctx := context.Background()
	root, err := f.admin.Store.UserByName(ctx, nil, "root")
	require.NoError(t, err)
	_, err = f.admin.Store.IssueToken(ctx, nil, root, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	janitor, err := NewTokenJanitor(f.admin.Store, zaptest.NewLogger(t), WithSchedule("@every 1s"))
	require.NoError(t, err)
	janitor.Start()
	defer janitor.Stop()

	assert.Eventually(t, func() bool {
		rows, err := f.admin.Store.tokens.Find(ctx, nil, nil)
		return err == nil && len(rows) == 0
	}, 5*time.Second, 100*time.Millisecond)
}

func TestWatcher(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	w, err := f.admin.Watch(reg, "test")
	require.NoError(t, err)
	defer w.Close()

	root, err := f.admin.Store.UserByName(ctx, nil, "root")
	require.NoError(t, err)
	tok, err := f.admin.Store.IssueToken(ctx, nil, root, time.Hour, time.Now())
	require.NoError(t, err)
	value := core.ToString(tok["token"])

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/groups", "", token(value)).Code)
	require.True(t, f.cache.Has(ctx, auth.TokenCacheKey(value)))

	_, err = f.admin.Store.DeleteToken(ctx, nil, value)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return !f.cache.Has(ctx, auth.TokenCacheKey(value)) }, time.Second, 10*time.Millisecond)

	require.NoError(t, f.admin.Store.Audit(ctx, nil, root, ActionLogin))
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(w.audits.WithLabelValues(ActionLogin)) == 1
	}, time.Second, 10*time.Millisecond)

	_, err = f.admin.Watch(reg, "test")
	assert.Error(t, err, "counter already registered")
}

func TestCheckPasswordPolicy(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"Secr3t!pw", true},
		{"secr3t!pw", false},
		{"SECR3T!PW", false},
		{"Secret!pw", false},
		{"Secr3tpw1", false},
		{"Se3!", false},
		{"Secr3t! pw", false},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := CheckPasswordPolicy(tt.password)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ve *core.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestLogin_JWT(t *testing.T) {
	issuer := &auth.JWTAuthentication{Secret: []byte("0123456789abcdef"), Issuer: "test"}
	f := newFixture(t, func(o *Options) { o.JWT = issuer })

	rec := f.do(http.MethodPost, "/login", `{"username":"root","password":"`+rootPassword+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	access := gjson.Get(rec.Body.String(), "access_token").String()
	require.NotEmpty(t, access)

	bearer := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+access) }
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/groups", "", bearer).Code)

	forged := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+access+"x") }
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/groups", "", forged).Code)
}

func TestStore_AddUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	info, err := f.admin.Store.AddUser(ctx, nil, NewUser{Username: "svc", Password: "Svc!2024pw", System: true})
	require.NoError(t, err)
	assert.Equal(t, "svc", info.Username)
	assert.True(t, info.System)
	assert.False(t, info.Admin)
	assert.True(t, info.Enabled)
	assert.Nil(t, info.GroupID)

	_, err = f.admin.Store.AddUser(ctx, nil, NewUser{Username: "weak", Password: "weak"})
	var ve *core.ValidationError
	assert.ErrorAs(t, err, &ve)

	got, err := f.admin.Store.User(ctx, nil, "svc")
	require.NoError(t, err)
	assert.Equal(t, info.ID, got.ID)

	got, err = f.admin.Store.User(ctx, nil, "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/users", "", basic("root", rootPassword)).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/users", "", basic("svc", "Svc!2024pw")).Code)
}
