package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/asaidimu/go-restful/auth"
	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/persistence"
	"github.com/asaidimu/go-restful/core/query"
	"github.com/asaidimu/go-restful/core/schema"
	"go.uber.org/zap"
)

// Context is the per-request state of one resource operation. It is not safe
// for concurrent use.
type Context struct {
	Resource *Resource
	Request  *http.Request

	ctx        context.Context
	user       auth.User
	plan       *query.QueryPlan
	filters    []query.QueryFilter
	isolation  []query.QueryFilter
	body       core.Record
	autocommit bool
	session    persistence.Session
	committed  bool
}

// NewContext extracts the request's query plan and isolation filters. It
// fails before any storage work is done.
func NewContext(res *Resource, r *http.Request, autocommit bool) (*Context, error) {
	params, err := query.ParseParams(r.URL.RawQuery)
	if err != nil {
		return nil, err
	}
	plan, err := res.Extractors.Extract(params)
	if err != nil {
		return nil, err
	}

	c := &Context{
		Resource:   res,
		Request:    r,
		ctx:        r.Context(),
		user:       auth.FromContext(r.Context()),
		plan:       plan,
		autocommit: autocommit,
	}
	c.filters = plan.Filters()
	if res.Isolation {
		if c.isolation, err = res.IsolationPolicy.IsolationFilters(r, c.user); err != nil {
			return nil, err
		}
		c.filters = query.ConcatFilters(c.filters, c.isolation...)
		// The engine enforces the isolation filters on every call made
		// with Context(), hooks included.
		c.ctx = persistence.WithScope(c.ctx, res.Model, c.isolation...)
	}

	if hasBody(r) {
		if c.body, err = decodeBody(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.Body != nil && r.Body != http.NoBody
	}
	return false
}

func decodeBody(r *http.Request) (core.Record, error) {
	var body core.Record
	err := json.NewDecoder(r.Body).Decode(&body)
	switch {
	case errors.Is(err, io.EOF):
		return core.Record{}, nil
	case err != nil:
		return nil, &core.ValidationError{Message: fmt.Sprintf("Request body is not a JSON object: %v", err)}
	}
	if body == nil {
		body = core.Record{}
	}
	return body, nil
}

// Context returns the request's context, scoped to the caller's rows when
// the resource is isolated.
func (c *Context) Context() context.Context {
	return c.ctx
}

// User returns the authenticated caller.
func (c *Context) User() auth.User {
	return c.user
}

// Logger returns the resource logger.
func (c *Context) Logger() *zap.Logger {
	return c.Resource.Logger
}

// Filters returns the plan filters followed by the isolation filters.
func (c *Context) Filters() []query.QueryFilter {
	return query.ConcatFilters(c.filters)
}

// Orders returns the requested orderings.
func (c *Context) Orders() []query.SortConfiguration {
	return c.plan.Orders()
}

// Pagination returns the requested window.
func (c *Context) Pagination() query.Pagination {
	return c.plan.Pagination()
}

// Plan returns a plan holding Filters, Orders and Pagination.
func (c *Context) Plan() (*query.QueryPlan, error) {
	pb := query.NewPlanBuilder().Filter(c.filters...)
	for _, o := range c.plan.Orders() {
		pb.OrderBy(o.Field, o.Direction)
	}
	page := c.plan.Pagination()
	if page.Limit != nil {
		pb.Limit(*page.Limit)
	}
	if page.Offset != nil {
		pb.Offset(*page.Offset)
	}
	return pb.Build()
}

// Body returns the decoded request body as sent.
func (c *Context) Body() core.Record {
	return c.body.Copy()
}

// RequestData returns a copy of the body with the caller's id written to the
// model's autofill columns. POST fills create columns, other methods fill
// update columns.
func (c *Context) RequestData() core.Record {
	data := c.body.Copy()
	if data == nil {
		data = core.Record{}
	}
	res := c.Resource
	if !res.autofill || res.Model == nil || !res.Model.RequiresAutoFill() {
		return data
	}
	op := schema.OperationUpdate
	if c.Request.Method == http.MethodPost {
		op = schema.OperationCreate
	}
	id := c.user.ID()
	if id == nil {
		c.Logger().Debug("Skipping autofill without an authenticated caller", zap.String("operation", string(op)))
		return data
	}
	for _, field := range res.Model.AutoFillFor(op) {
		data[field] = id
	}
	return data
}

// Open acquires a storage session when the resource has a model.
func (c *Context) Open() error {
	if !c.Resource.HasModel() || c.session != nil {
		return nil
	}
	sess, err := c.Resource.Engine.Open(c.Context())
	if err != nil {
		return core.NewStorageError(err)
	}
	c.session = sess
	return nil
}

// Session returns the open session, or nil.
func (c *Context) Session() persistence.Session {
	return c.session
}

// Close releases the session. It commits when the context autocommits and
// *errp is nil, and rolls back otherwise. A commit failure is stored in
// *errp. When called while panicking it rolls back and re-panics.
func (c *Context) Close(errp *error) {
	if r := recover(); r != nil {
		c.release()
		panic(r)
	}
	var err error
	if errp != nil {
		err = *errp
	}
	if c.session != nil && c.autocommit && err == nil {
		if cerr := c.session.Commit(c.Context()); cerr != nil {
			c.Logger().Error("Failed to commit session", zap.Error(cerr))
			if errp != nil {
				*errp = core.NewStorageError(cerr)
			}
		} else {
			c.committed = true
		}
	}
	c.release()
}

func (c *Context) release() {
	if c.session == nil {
		return
	}
	if !c.committed {
		if err := c.session.Rollback(c.Context()); err != nil {
			c.Logger().Warn("Failed to release session", zap.Error(err))
		}
	}
	c.session = nil
}
