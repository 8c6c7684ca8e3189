package persistence

import (
	"context"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/query"
	"github.com/asaidimu/go-restful/core/schema"
	"go.uber.org/zap"
)

type scopeKey struct{}

type scope struct {
	model   string
	filters []query.QueryFilter
}

// WithScope returns a context under which every engine read, update and
// delete on model also applies filters. Unlike caller filters, scoped
// filters are never skipped: one that does not compile denies the operation
// with a PermissionError. Scopes nest.
func WithScope(ctx context.Context, model *schema.ModelDefinition, filters ...query.QueryFilter) context.Context {
	if model == nil || len(filters) == 0 {
		return ctx
	}
	parent, _ := ctx.Value(scopeKey{}).([]scope)
	scopes := make([]scope, len(parent), len(parent)+1)
	copy(scopes, parent)
	scopes = append(scopes, scope{model: model.Name, filters: query.ConcatFilters(filters)})
	return context.WithValue(ctx, scopeKey{}, scopes)
}

// ScopeFilters returns the filters ctx scopes model to.
func ScopeFilters(ctx context.Context, model *schema.ModelDefinition) []query.QueryFilter {
	scopes, _ := ctx.Value(scopeKey{}).([]scope)
	var out []query.QueryFilter
	for _, s := range scopes {
		if s.model == model.Name {
			out = append(out, s.filters...)
		}
	}
	return out
}

// scoped compiles the scope of model strictly.
func (e *Engine) scoped(ctx context.Context, model *schema.ModelDefinition) ([]query.QueryFilter, error) {
	filters := ScopeFilters(ctx, model)
	compiler := e.db.Compiler()
	for _, f := range filters {
		if _, err := compiler.Compile(model, f); err != nil {
			e.logger.Error("Denying operation with an unusable scope filter",
				zap.String("model", model.Name),
				zap.String("filter", f.String()),
				zap.Error(err))
			return nil, &core.PermissionError{Message: "Not allowed to operate the resource"}
		}
	}
	return filters, nil
}

// effective returns the usable caller filters followed by the scope of model.
func (e *Engine) effective(ctx context.Context, model *schema.ModelDefinition, filters []query.QueryFilter) ([]query.QueryFilter, error) {
	mandatory, err := e.scoped(ctx, model)
	if err != nil {
		return nil, err
	}
	return append(e.compilable(model, filters), mandatory...), nil
}
