package admin

import (
	"fmt"
	"time"

	"github.com/asaidimu/go-restful/auth"
	"github.com/asaidimu/go-restful/cache"
	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/persistence"
	"github.com/asaidimu/go-restful/permission"
	"github.com/asaidimu/go-restful/resource"
	"github.com/asaidimu/go-restful/server"
	"go.uber.org/zap"
)

// DefaultTokenDuration is the lifetime of a login token.
const DefaultTokenDuration = 7200 * time.Second

// Options configures the admin resources.
type Options struct {
	// Cache holds resolved tokens. Nil disables caching.
	Cache         *cache.Client
	TokenDuration time.Duration
	TokenCacheMax time.Duration
	// JWT, when set, is accepted as a backend and login also returns a
	// signed access_token.
	JWT    *auth.JWTAuthentication
	Logger *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Admin holds the user, group, login and logout resources.
type Admin struct {
	Store  *Store
	Users  *resource.Resource
	Groups *resource.Resource
	Login  *resource.Resource
	Logout *resource.Resource

	opts   Options
	logger *zap.Logger
}

// New builds the admin resources over engine.
func New(engine *persistence.Engine, opts Options) (*Admin, error) {
	if opts.TokenDuration <= 0 {
		opts.TokenDuration = DefaultTokenDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = engine.Logger()
	}
	a := &Admin{
		Store:  NewStore(engine),
		opts:   opts,
		logger: opts.Logger.Named("admin"),
	}
	backends := a.Backends()

	var err error
	a.Users, err = resource.New(resource.Resource{
		Name:            "users",
		Model:           AuthUser,
		Engine:          engine,
		Schema:          resource.Schema{Create: userCreateSchema(), Update: userUpdateSchema()},
		Authentications: backends,
		Permission:      permission.IsAdminUser,
		OnCreate:        a.createUser,
		OnUpdate:        a.updateUser,
		Logger:          a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.Groups, err = resource.New(resource.Resource{
		Name:            "groups",
		Model:           AuthGroup,
		Engine:          engine,
		Schema:          resource.Schema{Default: groupSchema()},
		Authentications: backends,
		Permission:      permission.IsAdminUser,
		Logger:          a.logger,
	})
	if err != nil {
		return nil, err
	}
	noFill := false
	a.Login, err = resource.New(resource.Resource{
		Name:           "login",
		Model:          AuthUser,
		Engine:         engine,
		Schema:         resource.Schema{Create: loginSchema()},
		Permission:     permission.AllowAny,
		AutoFillFields: &noFill,
		Operations:     []resource.Operation{resource.OperationCreate},
		OnCreate:       a.login,
		Logger:         a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.Logout, err = resource.New(resource.Resource{
		Name:            "logout",
		Model:           AuthUser,
		Engine:          engine,
		Authentications: backends[:1],
		Permission:      permission.IsAuthenticated,
		AutoFillFields:  &noFill,
		Operations:      []resource.Operation{resource.OperationCreate},
		OnCreate:        a.logout,
		Logger:          a.logger,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Backends returns the token and basic backends wired to the admin tables.
func (a *Admin) Backends() []auth.Authentication {
	backends := a.Store.Backends(BackendOptions{
		Cache:         a.opts.Cache,
		TokenCacheMax: a.opts.TokenCacheMax,
		Logger:        a.logger,
	})
	if a.opts.JWT != nil {
		backends = append(backends, a.opts.JWT)
	}
	return backends
}

// Router mounts the admin resources at /users, /groups, /login and /logout.
func (a *Admin) Router() (*server.Router, error) {
	r := server.NewRouter()
	for _, m := range []struct {
		template string
		res      *resource.Resource
		opts     []server.RouteOption
	}{
		{"/users", a.Users, []server.RouteOption{server.WithIDConverter("int")}},
		{"/groups", a.Groups, []server.RouteOption{server.WithIDConverter("int")}},
		{"/login", a.Login, nil},
		{"/logout", a.Logout, nil},
	} {
		if err := r.Add(m.template, m.res, m.opts...); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (a *Admin) checkGroup(c *resource.Context, data core.Record) error {
	id, ok := data["group_id"]
	if !ok || id == nil {
		return nil
	}
	exists, err := a.Store.GroupExists(c.Context(), c.Session(), id)
	if err != nil {
		return err
	}
	if !exists {
		return &core.ValidationError{
			Path:    "group_id",
			Message: fmt.Sprintf("User group does not exist: `group_id`(%v)", id),
		}
	}
	return nil
}

func (a *Admin) createUser(c *resource.Context, data core.Record) (core.Record, error) {
	if err := a.checkGroup(c, data); err != nil {
		return nil, err
	}
	return a.Store.CreateUser(c.Context(), c.Session(), data)
}

func (a *Admin) updateUser(c *resource.Context, id any, data core.Record) (core.Record, error) {
	if err := a.checkGroup(c, data); err != nil {
		return nil, err
	}
	return a.Store.users.Update(c.Context(), c.Session(), id, data, c.Filters()...)
}

func (a *Admin) login(c *resource.Context, data core.Record) (core.Record, error) {
	ctx := c.Context()
	username := core.ToString(data["username"])
	user, err := a.Store.UserByName(ctx, c.Session(), username)
	if err != nil {
		return nil, err
	}
	if user == nil || !enabled(user) {
		return nil, &core.AuthenticationError{Message: "Invalid username"}
	}
	if !checkPassword(core.ToString(data["password"]), core.ToString(user["password"])) {
		return nil, &core.AuthenticationError{Message: "Invalid password"}
	}

	token, err := a.Store.IssueToken(ctx, c.Session(), user, a.opts.TokenDuration, a.opts.Now())
	if err != nil {
		return nil, err
	}
	if err := a.Store.Audit(ctx, c.Session(), user, ActionLogin); err != nil {
		return nil, err
	}
	if a.opts.JWT != nil {
		signed, err := a.opts.JWT.Issue(auth.NewRecordUser(user.Without(auth.SecretFields...)))
		if err != nil {
			return nil, err
		}
		token["access_token"] = signed
	}
	a.logger.Info("User logged in", zap.String("username", username))
	return token, nil
}

func (a *Admin) logout(c *resource.Context, _ core.Record) (core.Record, error) {
	ctx := c.Context()
	user, ok := c.User().(*auth.RecordUser)
	if !ok {
		return nil, &core.AuthenticationError{Message: "Invalid user token"}
	}
	value := core.ToString(user.Get("token"))
	if a.opts.Cache != nil {
		if err := a.opts.Cache.Delete(ctx, auth.TokenCacheKey(value)); err != nil {
			a.logger.Warn("Failed to evict token", zap.Error(err))
		}
	}
	if err := a.Store.Audit(ctx, c.Session(), core.Record{"id": user.ID(), "username": user.Username()}, ActionLogout); err != nil {
		return nil, err
	}
	if _, err := a.Store.DeleteToken(ctx, c.Session(), value); err != nil {
		return nil, err
	}
	return core.Record{
		"title":       "User logout",
		"description": fmt.Sprintf("User '%s' logout successful", user.Username()),
	}, nil
}
