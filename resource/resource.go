// Package resource exposes models over REST. A Resource declares what it
// serves and who may use it; a Context carries one request through
// extraction, isolation, validation and the storage session.
package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/asaidimu/go-restful/auth"
	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/persistence"
	"github.com/asaidimu/go-restful/core/query"
	"github.com/asaidimu/go-restful/core/schema"
	"github.com/asaidimu/go-restful/permission"
	"github.com/asaidimu/go-restful/utils"
	"go.uber.org/zap"
)

// DefaultIDParam is the path variable holding an item id.
const DefaultIDParam = "rid"

// Operation names one REST operation of a resource.
type Operation string

const (
	OperationList   Operation = "list"
	OperationCreate Operation = "create"
	OperationShow   Operation = "show"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// CollectionOperations are served on the collection path, the rest on the
// item path.
var CollectionOperations = []Operation{OperationList, OperationCreate}

// ItemOperations are served on the item path.
var ItemOperations = []Operation{OperationShow, OperationUpdate, OperationDelete}

// Schema holds JSON schemas for payload validation. Default applies to
// create and update when they have no schema of their own. List validates
// the query parameters.
type Schema struct {
	Default any
	List    any
	Create  any
	Update  any
}

// Source feeds a resource without a model. Its records are filtered, sorted
// and paginated in memory.
type Source func(ctx context.Context) ([]core.Record, error)

type (
	ListHook   func(c *Context) (int64, []core.Record, error)
	CreateHook func(c *Context, data core.Record) (core.Record, error)
	ShowHook   func(c *Context, id any) (core.Record, error)
	UpdateHook func(c *Context, id any, data core.Record) (core.Record, error)
	DeleteHook func(c *Context, id any) (core.Record, error)
)

// Resource declares a REST resource. Build one with New.
type Resource struct {
	// Name defaults to the snake-case form of the model name.
	Name string
	// Model and Engine back the default operations.
	Model  *schema.ModelDefinition
	Engine *persistence.Engine
	// Source backs a read-only resource without a model.
	Source Source
	// SourceIDField is the field Show matches on a Source. Default "id".
	SourceIDField string

	Schema Schema

	Authentications []auth.Authentication
	Permission      permission.Policy

	// Isolation restricts every operation to the rows IsolationPolicy allows.
	Isolation       bool
	IsolationPolicy IsolationPolicy

	// AutoFillFields fills caller columns on create and update. Default true.
	AutoFillFields *bool
	// IDParam names the item path variable. Default "rid".
	IDParam string

	// Operations limits what is served. Empty means every operation the
	// resource can perform.
	Operations []Operation

	OnList   ListHook
	OnCreate CreateHook
	OnShow   ShowHook
	OnUpdate UpdateHook
	OnDelete DeleteHook

	// Extractors parses query strings. Default query.DefaultRegistry().
	Extractors *query.Registry
	Logger     *zap.Logger

	listValidator   *schema.JSONValidator
	createValidator *schema.JSONValidator
	updateValidator *schema.JSONValidator
	processor       *query.DataProcessor
	operations      map[Operation]bool
	autofill        bool
}

// New checks a resource declaration and computes everything derived from it.
func New(res Resource) (*Resource, error) {
	r := res
	if r.Name == "" {
		switch {
		case r.Model != nil:
			r.Name = utils.ToSnakeCase(r.Model.Name)
		default:
			return nil, errors.New("resource: a name is required without a model")
		}
	}
	if r.Model != nil {
		if r.Engine == nil {
			return nil, fmt.Errorf("resource %s: model %s needs an engine", r.Name, r.Model.Name)
		}
		if err := r.Model.Check(); err != nil {
			return nil, fmt.Errorf("resource %s: %w", r.Name, err)
		}
	}
	if r.IDParam == "" {
		r.IDParam = DefaultIDParam
	}
	if r.SourceIDField == "" {
		r.SourceIDField = "id"
	}
	if r.Logger == nil {
		if r.Engine != nil {
			r.Logger = r.Engine.Logger()
		} else {
			r.Logger = zap.NewNop()
		}
	}
	r.Logger = r.Logger.With(zap.String("resource", r.Name))
	if r.Extractors == nil {
		r.Extractors = query.DefaultRegistry()
	}
	if r.Isolation && r.IsolationPolicy == nil {
		r.IsolationPolicy = IsolationByUser{}
	}
	if r.Isolation && r.Model != nil {
		var column string
		switch p := r.IsolationPolicy.(type) {
		case IsolationByUser:
			column = p.column()
		case *IsolationByUser:
			if p != nil {
				column = p.column()
			}
		}
		if column != "" && !r.Model.HasField(column) {
			return nil, fmt.Errorf("resource %s: isolation field %q is not a field of model %s", r.Name, column, r.Model.Name)
		}
	}
	r.autofill = r.AutoFillFields == nil || *r.AutoFillFields
	if r.Source != nil {
		r.processor = query.NewDataProcessor(r.Logger)
	}

	var err error
	if r.listValidator, err = compile(r.Schema.List, nil); err != nil {
		return nil, fmt.Errorf("resource %s: list schema: %w", r.Name, err)
	}
	if r.createValidator, err = compile(r.Schema.Create, r.Schema.Default); err != nil {
		return nil, fmt.Errorf("resource %s: create schema: %w", r.Name, err)
	}
	if r.updateValidator, err = compile(r.Schema.Update, r.Schema.Default); err != nil {
		return nil, fmt.Errorf("resource %s: update schema: %w", r.Name, err)
	}

	r.operations = r.supported()
	if len(r.Operations) > 0 {
		allowed := make(map[Operation]bool, len(r.Operations))
		for _, op := range r.Operations {
			if !r.operations[op] {
				return nil, fmt.Errorf("resource %s: operation %s has no implementation", r.Name, op)
			}
			allowed[op] = true
		}
		r.operations = allowed
	}
	return &r, nil
}

// MustNew is like New but panics on error.
func MustNew(res Resource) *Resource {
	r, err := New(res)
	if err != nil {
		panic(err)
	}
	return r
}

func compile(source, fallback any) (*schema.JSONValidator, error) {
	if source == nil {
		source = fallback
	}
	if source == nil {
		return nil, nil
	}
	return schema.NewJSONValidator(source)
}

func (r *Resource) supported() map[Operation]bool {
	ops := make(map[Operation]bool)
	if r.Model != nil {
		for _, op := range append(CollectionOperations, ItemOperations...) {
			ops[op] = true
		}
	}
	if r.Source != nil {
		ops[OperationList] = true
		ops[OperationShow] = true
	}
	hooks := map[Operation]bool{
		OperationList:   r.OnList != nil,
		OperationCreate: r.OnCreate != nil,
		OperationShow:   r.OnShow != nil,
		OperationUpdate: r.OnUpdate != nil,
		OperationDelete: r.OnDelete != nil,
	}
	for op, ok := range hooks {
		if ok {
			ops[op] = true
		}
	}
	return ops
}

// Supports reports whether the resource serves op.
func (r *Resource) Supports(op Operation) bool {
	return r.operations[op]
}

// HasOperations reports whether the resource serves anything.
func (r *Resource) HasOperations() bool {
	return len(r.operations) > 0
}

// HasItemOperations reports whether an item route is needed.
func (r *Resource) HasItemOperations() bool {
	for _, op := range ItemOperations {
		if r.operations[op] {
			return true
		}
	}
	return false
}

// HasModel reports whether the resource is backed by a model.
func (r *Resource) HasModel() bool {
	return r.Model != nil
}

// ModelHandle returns the engine handle of the resource's model.
func (r *Resource) ModelHandle() *persistence.Model {
	if r.Model == nil {
		return nil
	}
	return r.Engine.Model(r.Model)
}
