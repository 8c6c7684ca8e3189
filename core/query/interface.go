package query

import (
	"github.com/asaidimu/go-restful/core/schema"
)

// Predicate is a parameterized boolean expression in a backend's native
// dialect. Args bind to the placeholders in SQL, in order.
type Predicate struct {
	SQL  string
	Args []any
}

// Compiler translates filters into native predicates for a model. Each SQL
// dialect provides its own implementation.
type Compiler interface {
	// Compile renders the filter. It fails with core.UnknownFieldError when the
	// filter names a field the model does not declare.
	Compile(model *schema.ModelDefinition, filter QueryFilter) (Predicate, error)
}
