package server

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/asaidimu/go-restful/resource"
)

var (
	ErrTargetConflict  = errors.New("resource and router cannot be given at the same time")
	ErrNoTarget        = errors.New("a resource or a router is required")
	ErrNoOperations    = errors.New("resource has no operations")
	ErrMissingStatic   = errors.New("static directory does not exist")
	ErrInvalidTemplate = errors.New("invalid route template")
)

// RouteError reports a rejected route.
type RouteError struct {
	Template string
	Err      error
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("route %q: %v", e.Template, e.Err)
}

func (e *RouteError) Unwrap() error { return e.Err }

// Route binds a resource to a path template. The item path is the template
// followed by the resource's id variable.
type Route struct {
	Template string
	Resource *resource.Resource
	// IDConverter names the converter of the id variable, e.g. "int".
	IDConverter string
}

// ItemTemplate returns the path of single-record operations.
func (r Route) ItemTemplate() string {
	v := r.Resource.IDParam
	if r.IDConverter != "" {
		v += ":" + r.IDConverter
	}
	return strings.TrimSuffix(r.Template, "/") + "/{" + v + "}"
}

// StaticRoute serves files under a prefix.
type StaticRoute struct {
	Prefix string
	Dir    string
}

type mount struct {
	route Route
	child *Router
}

// Router is a declarative route table. Routers nest with Include.
type Router struct {
	mounts []mount
	static []StaticRoute
}

// NewRouter returns an empty route table.
func NewRouter() *Router {
	return &Router{}
}

// RouteOption adjusts a resource route.
type RouteOption func(*Route)

// WithIDConverter converts the id path variable, e.g. WithIDConverter("uuid").
func WithIDConverter(name string) RouteOption {
	return func(r *Route) { r.IDConverter = name }
}

// Add mounts a resource at template.
func (r *Router) Add(template string, res *resource.Resource, opts ...RouteOption) error {
	return r.Mount(template, res, nil, opts...)
}

// Include nests child under prefix.
func (r *Router) Include(prefix string, child *Router) error {
	return r.Mount(prefix, nil, child)
}

// Mount adds a resource or a child router at template, never both.
func (r *Router) Mount(template string, res *resource.Resource, child *Router, opts ...RouteOption) error {
	switch {
	case !strings.HasPrefix(template, "/"):
		return &RouteError{Template: template, Err: ErrInvalidTemplate}
	case res != nil && child != nil:
		return &RouteError{Template: template, Err: ErrTargetConflict}
	case res == nil && child == nil:
		return &RouteError{Template: template, Err: ErrNoTarget}
	case res != nil && !res.HasOperations():
		return &RouteError{Template: template, Err: ErrNoOperations}
	}
	route := Route{Template: template, Resource: res}
	for _, opt := range opts {
		opt(&route)
	}
	r.mounts = append(r.mounts, mount{route: route, child: child})
	return nil
}

// MustAdd is like Add but panics on error.
func (r *Router) MustAdd(template string, res *resource.Resource, opts ...RouteOption) *Router {
	if err := r.Add(template, res, opts...); err != nil {
		panic(err)
	}
	return r
}

// AddStatic serves dir under prefix.
func (r *Router) AddStatic(prefix, dir string) error {
	if !strings.HasPrefix(prefix, "/") {
		return &RouteError{Template: prefix, Err: ErrInvalidTemplate}
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return &RouteError{Template: prefix, Err: ErrMissingStatic}
	}
	r.static = append(r.static, StaticRoute{Prefix: prefix, Dir: dir})
	return nil
}

// Routes flattens the table, prefixing the routes of nested routers.
func (r *Router) Routes() []Route {
	var out []Route
	for _, m := range r.mounts {
		if m.child == nil {
			out = append(out, m.route)
			continue
		}
		for _, cr := range m.child.Routes() {
			cr.Template = join(m.route.Template, cr.Template)
			out = append(out, cr)
		}
	}
	return out
}

// StaticRoutes flattens the static routes the same way.
func (r *Router) StaticRoutes() []StaticRoute {
	out := append([]StaticRoute(nil), r.static...)
	for _, m := range r.mounts {
		if m.child == nil {
			continue
		}
		for _, s := range m.child.StaticRoutes() {
			s.Prefix = join(m.route.Template, s.Prefix)
			out = append(out, s)
		}
	}
	return out
}

func join(prefix, template string) string {
	return strings.TrimSuffix(prefix, "/") + template
}
