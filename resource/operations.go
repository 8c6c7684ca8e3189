package resource

import (
	"errors"
	"net/http"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/query"
	"github.com/asaidimu/go-restful/core/schema"
	"go.uber.org/zap"
)

// ErrNotSupported is returned for operations a resource does not serve.
var ErrNotSupported = errors.New("resource: operation not supported")

// ListResult is the body of a list response.
type ListResult struct {
	Count int64         `json:"count"`
	Data  []core.Record `json:"data"`
}

// List serves the collection. Count is taken before pagination.
func (r *Resource) List(req *http.Request) (result ListResult, err error) {
	if !r.Supports(OperationList) {
		return result, ErrNotSupported
	}
	if r.listValidator != nil {
		if err := r.listValidator.Validate(paramsDocument(req)); err != nil {
			return result, err
		}
	}
	c, err := NewContext(r, req, false)
	if err != nil {
		return result, err
	}
	if err = c.Open(); err != nil {
		return result, err
	}
	defer c.Close(&err)

	var (
		count int64
		rows  []core.Record
	)
	switch {
	case r.OnList != nil:
		count, rows, err = r.OnList(c)
	case r.Model != nil:
		plan, perr := c.Plan()
		if perr != nil {
			return result, perr
		}
		count, rows, err = r.Engine.List(c.Context(), c.Session(), r.Model, plan)
	default:
		count, rows, err = r.listSource(c)
	}
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Count: count, Data: r.presentAll(rows)}, nil
}

// Create stores the request body and returns the new record.
func (r *Resource) Create(req *http.Request) (record core.Record, err error) {
	if !r.Supports(OperationCreate) {
		return nil, ErrNotSupported
	}
	c, err := NewContext(r, req, true)
	if err != nil {
		return nil, err
	}
	if err := validate(r.createValidator, c.body); err != nil {
		return nil, err
	}
	if err = c.Open(); err != nil {
		return nil, err
	}
	defer c.Close(&err)

	data := c.RequestData()
	if r.OnCreate != nil {
		record, err = r.OnCreate(c, data)
	} else {
		record, err = r.Engine.Create(c.Context(), c.Session(), r.Model, data)
	}
	if err != nil {
		return nil, err
	}
	return r.present(record), nil
}

// Show returns one record or a NotFoundError.
func (r *Resource) Show(req *http.Request, id any) (record core.Record, err error) {
	if !r.Supports(OperationShow) {
		return nil, ErrNotSupported
	}
	c, err := NewContext(r, req, false)
	if err != nil {
		return nil, err
	}
	if err = c.Open(); err != nil {
		return nil, err
	}
	defer c.Close(&err)

	switch {
	case r.OnShow != nil:
		record, err = r.OnShow(c, id)
	case r.Model != nil:
		record, err = r.Engine.Show(c.Context(), c.Session(), r.Model, id, c.Filters())
	default:
		record, err = r.showSource(c, id)
	}
	return r.found(record, id, err)
}

// Update applies the request body to one record and returns it.
func (r *Resource) Update(req *http.Request, id any) (record core.Record, err error) {
	if !r.Supports(OperationUpdate) {
		return nil, ErrNotSupported
	}
	c, err := NewContext(r, req, true)
	if err != nil {
		return nil, err
	}
	if err := validate(r.updateValidator, c.body); err != nil {
		return nil, err
	}
	if err = c.Open(); err != nil {
		return nil, err
	}
	defer c.Close(&err)

	data := c.RequestData()
	if r.OnUpdate != nil {
		record, err = r.OnUpdate(c, id, data)
	} else {
		record, err = r.Engine.Update(c.Context(), c.Session(), r.Model, id, data, c.Filters())
	}
	return r.found(record, id, err)
}

// Delete removes one record and returns its last state.
func (r *Resource) Delete(req *http.Request, id any) (record core.Record, err error) {
	if !r.Supports(OperationDelete) {
		return nil, ErrNotSupported
	}
	c, err := NewContext(r, req, true)
	if err != nil {
		return nil, err
	}
	if err = c.Open(); err != nil {
		return nil, err
	}
	defer c.Close(&err)

	if r.OnDelete != nil {
		record, err = r.OnDelete(c, id)
	} else {
		record, err = r.Engine.Delete(c.Context(), c.Session(), r.Model, id, c.Filters())
	}
	return r.found(record, id, err)
}

func (r *Resource) found(record core.Record, id any, err error) (core.Record, error) {
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &core.NotFoundError{Resource: r.Name, ID: id}
	}
	return r.present(record), nil
}

func (r *Resource) present(record core.Record) core.Record {
	if record == nil || r.Model == nil {
		return record
	}
	if hidden := r.Model.HiddenFields(); len(hidden) > 0 {
		return record.Without(hidden...)
	}
	return record
}

func (r *Resource) presentAll(rows []core.Record) []core.Record {
	out := core.Records(rows)
	for i := range out {
		out[i] = r.present(out[i])
	}
	return out
}

func (r *Resource) listSource(c *Context) (int64, []core.Record, error) {
	records, err := r.sourceRecords(c)
	if err != nil {
		return 0, nil, err
	}
	count, rows := r.processor.Apply(records, c.plan.Filters(), c.Orders(), c.Pagination())
	return count, rows, nil
}

func (r *Resource) showSource(c *Context, id any) (core.Record, error) {
	records, err := r.sourceRecords(c)
	if err != nil {
		return nil, err
	}
	filters := query.ConcatFilters(c.plan.Filters(), query.Equal(r.SourceIDField, id))
	_, rows := r.processor.Apply(records, filters, nil, query.Pagination{Limit: query.Int64Ptr(1)})
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// sourceRecords loads the source and keeps the records the isolation
// filters allow. An isolation filter that cannot be evaluated denies the
// request.
func (r *Resource) sourceRecords(c *Context) ([]core.Record, error) {
	records, err := r.Source(c.Context())
	if err != nil {
		return nil, err
	}
	if len(c.isolation) == 0 {
		return records, nil
	}
	out := make([]core.Record, 0, len(records))
next:
	for _, rec := range records {
		for _, f := range c.isolation {
			ok, err := r.processor.Match(rec, f)
			if err != nil {
				r.Logger.Error("Denying request with an unusable isolation filter", zap.Stringer("filter", f), zap.Error(err))
				return nil, &core.PermissionError{Message: "Not allowed to operate the resource"}
			}
			if !ok {
				continue next
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func validate(v *schema.JSONValidator, body core.Record) error {
	if v == nil {
		return nil
	}
	if body == nil {
		body = core.Record{}
	}
	return v.Validate(map[string]any(body))
}

// paramsDocument renders the query string as a JSON document: one string
// per key, or an array for repeated keys.
func paramsDocument(req *http.Request) map[string]any {
	doc := make(map[string]any)
	for key, values := range req.URL.Query() {
		if len(values) == 1 {
			doc[key] = values[0]
			continue
		}
		items := make([]any, len(values))
		for i, v := range values {
			items[i] = v
		}
		doc[key] = items
	}
	return doc
}
