// Package query defines the structured filter language used by resources.
// Query strings are translated into QueryFilter values, orderings and
// pagination, which storage backends compile into their native predicates.
package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LogicalOperator combines child filters of a FilterGroup.
type LogicalOperator string

// Logical operators for combining filter conditions.
const (
	LogicalOperatorAnd LogicalOperator = "and"
	LogicalOperatorOr  LogicalOperator = "or"
	LogicalOperatorNot LogicalOperator = "not"
)

// ComparisonOperator defines the set of operators that can be used in a filter condition.
type ComparisonOperator string

// Supported comparison operators.
const (
	ComparisonOperatorEq    ComparisonOperator = "eq"
	ComparisonOperatorNe    ComparisonOperator = "ne"
	ComparisonOperatorGt    ComparisonOperator = "gt"
	ComparisonOperatorLt    ComparisonOperator = "lt"
	ComparisonOperatorGe    ComparisonOperator = "ge"
	ComparisonOperatorLe    ComparisonOperator = "le"
	ComparisonOperatorLike  ComparisonOperator = "like"
	ComparisonOperatorILike ComparisonOperator = "ilike"
	ComparisonOperatorMatch ComparisonOperator = "match"
	ComparisonOperatorIn    ComparisonOperator = "in"
	ComparisonOperatorNotIn ComparisonOperator = "not_in"
)

// scalarOperators take a single value. They are also the operators allowed
// inside composite and/or parameters.
var scalarOperators = map[ComparisonOperator]struct{}{
	ComparisonOperatorEq:    {},
	ComparisonOperatorNe:    {},
	ComparisonOperatorGt:    {},
	ComparisonOperatorLt:    {},
	ComparisonOperatorGe:    {},
	ComparisonOperatorLe:    {},
	ComparisonOperatorLike:  {},
	ComparisonOperatorILike: {},
	ComparisonOperatorMatch: {},
}

// IsScalar reports whether the operator compares against a single value.
func (c ComparisonOperator) IsScalar() bool {
	_, ok := scalarOperators[c]
	return ok
}

// IsMembership reports whether the operator compares against a set of values.
func (c ComparisonOperator) IsMembership() bool {
	return c == ComparisonOperatorIn || c == ComparisonOperatorNotIn
}

// IsValid reports whether the operator is known.
func (c ComparisonOperator) IsValid() bool {
	return c.IsScalar() || c.IsMembership()
}

// ScalarOperators returns the operators usable in composite parameters, in
// declaration order.
func ScalarOperators() []ComparisonOperator {
	return []ComparisonOperator{
		ComparisonOperatorEq, ComparisonOperatorNe, ComparisonOperatorGt,
		ComparisonOperatorLt, ComparisonOperatorGe, ComparisonOperatorLe,
		ComparisonOperatorLike, ComparisonOperatorILike, ComparisonOperatorMatch,
	}
}

// FilterValue represents the value used in a filter condition.
type FilterValue = any

// EqualityFilter is the shorthand produced by plain query keys.
type EqualityFilter struct {
	Field string      // The field to compare.
	Value FilterValue // The value it must equal.
}

// FilterCondition defines a single condition for filtering the results of a query.
type FilterCondition struct {
	Field    string             // The field to apply the filter on.
	Operator ComparisonOperator // The comparison operator to use.
	Value    FilterValue        // A scalar, or []FilterValue for membership operators.
}

// FilterGroup combines multiple filters using a logical operator.
// A "not" group negates the conjunction of its conditions.
type FilterGroup struct {
	Operator   LogicalOperator // The logical operator (AND, OR, NOT) to combine the conditions.
	Conditions []QueryFilter   // The list of conditions or nested groups.
}

// QueryFilter is a union type. Exactly one of its members is set.
type QueryFilter struct {
	Equality  *EqualityFilter  `json:",omitempty"` // A plain equality.
	Condition *FilterCondition `json:",omitempty"` // A single filter condition.
	Group     *FilterGroup     `json:",omitempty"` // A group of filter conditions.
}

// Equal builds an equality filter.
func Equal(field string, value FilterValue) QueryFilter {
	return QueryFilter{Equality: &EqualityFilter{Field: field, Value: value}}
}

// Where builds an operator filter without validating it. Use NewCondition
// when the operator or value comes from user input.
func Where(op ComparisonOperator, field string, value FilterValue) QueryFilter {
	return QueryFilter{Condition: &FilterCondition{Field: field, Operator: op, Value: value}}
}

// NewCondition builds an operator filter and checks its shape.
func NewCondition(op ComparisonOperator, field string, value FilterValue) (QueryFilter, error) {
	f := Where(op, field, value)
	if err := f.Validate(); err != nil {
		return QueryFilter{}, err
	}
	return f, nil
}

// And groups filters that must all hold.
func And(filters ...QueryFilter) QueryFilter {
	return group(LogicalOperatorAnd, filters)
}

// Or groups filters of which at least one must hold.
func Or(filters ...QueryFilter) QueryFilter {
	return group(LogicalOperatorOr, filters)
}

// Not negates the conjunction of filters.
func Not(filters ...QueryFilter) QueryFilter {
	return group(LogicalOperatorNot, filters)
}

func group(op LogicalOperator, filters []QueryFilter) QueryFilter {
	conditions := make([]QueryFilter, len(filters))
	copy(conditions, filters)
	return QueryFilter{Group: &FilterGroup{Operator: op, Conditions: conditions}}
}

// Validate checks that exactly one member is set and that operator values
// have the right shape, recursively.
func (f QueryFilter) Validate() error {
	set := 0
	if f.Equality != nil {
		set++
	}
	if f.Condition != nil {
		set++
	}
	if f.Group != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("filter must set exactly one of equality, condition or group, got %d", set)
	}

	switch {
	case f.Equality != nil:
		if f.Equality.Field == "" {
			return fmt.Errorf("equality filter requires a field")
		}
	case f.Condition != nil:
		c := f.Condition
		if c.Field == "" {
			return fmt.Errorf("%s filter requires a field", c.Operator)
		}
		if !c.Operator.IsValid() {
			return fmt.Errorf("unknown comparison operator %q", c.Operator)
		}
		values, isList := c.Value.([]FilterValue)
		if c.Operator.IsMembership() {
			if !isList || len(values) == 0 {
				return fmt.Errorf("%s filter on %q requires a non-empty list of values", c.Operator, c.Field)
			}
		} else if isList {
			return fmt.Errorf("%s filter on %q requires a scalar value", c.Operator, c.Field)
		}
	case f.Group != nil:
		g := f.Group
		switch g.Operator {
		case LogicalOperatorAnd, LogicalOperatorOr, LogicalOperatorNot:
		default:
			return fmt.Errorf("unknown logical operator %q", g.Operator)
		}
		if len(g.Conditions) == 0 {
			return fmt.Errorf("%s group requires at least one condition", g.Operator)
		}
		for _, child := range g.Conditions {
			if err := child.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Fields returns every field referenced by the filter in traversal order.
func (f QueryFilter) Fields() []string {
	var fields []string
	switch {
	case f.Equality != nil:
		fields = append(fields, f.Equality.Field)
	case f.Condition != nil:
		fields = append(fields, f.Condition.Field)
	case f.Group != nil:
		for _, c := range f.Group.Conditions {
			fields = append(fields, c.Fields()...)
		}
	}
	return fields
}

// String renders the filter for logs.
func (f QueryFilter) String() string {
	switch {
	case f.Equality != nil:
		return fmt.Sprintf("%s == %v", f.Equality.Field, f.Equality.Value)
	case f.Condition != nil:
		return fmt.Sprintf("%s %s %v", f.Condition.Field, f.Condition.Operator, f.Condition.Value)
	case f.Group != nil:
		parts := make([]string, len(f.Group.Conditions))
		for i, c := range f.Group.Conditions {
			parts[i] = c.String()
		}
		return fmt.Sprintf("%s(%s)", f.Group.Operator, strings.Join(parts, ", "))
	default:
		return "<empty>"
	}
}

// SortDirection specifies the direction for sorting.
type SortDirection string

// Supported sort directions.
const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// SortConfiguration defines the sorting order for a specific field.
type SortConfiguration struct {
	Field     string        // The field to sort by.
	Direction SortDirection // The direction of the sort (ascending or descending).
}

// Pagination bounds a result window. Nil Limit means unbounded, nil Offset means 0.
type Pagination struct {
	Limit  *int64 `json:",omitempty"`
	Offset *int64 `json:",omitempty"`
}

// QueryPlan is the parsed form of a request's filters, orderings and
// pagination. It is immutable once built; accessors return copies.
type QueryPlan struct {
	filters    []QueryFilter
	orders     []SortConfiguration
	pagination Pagination
}

// Filters returns the plan's filters. They are combined with AND.
func (p *QueryPlan) Filters() []QueryFilter {
	if p == nil {
		return nil
	}
	out := make([]QueryFilter, len(p.filters))
	copy(out, p.filters)
	return out
}

// Orders returns the plan's orderings in application order.
func (p *QueryPlan) Orders() []SortConfiguration {
	if p == nil {
		return nil
	}
	out := make([]SortConfiguration, len(p.orders))
	copy(out, p.orders)
	return out
}

// Pagination returns a copy of the plan's pagination.
func (p *QueryPlan) Pagination() Pagination {
	if p == nil {
		return Pagination{}
	}
	var out Pagination
	if p.pagination.Limit != nil {
		l := *p.pagination.Limit
		out.Limit = &l
	}
	if p.pagination.Offset != nil {
		o := *p.pagination.Offset
		out.Offset = &o
	}
	return out
}

// MarshalJSON exposes the plan for debugging endpoints and logs.
func (p *QueryPlan) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Filters    []QueryFilter       `json:"filters"`
		Orders     []SortConfiguration `json:"orders"`
		Pagination Pagination          `json:"pagination"`
	}{p.Filters(), p.Orders(), p.Pagination()})
}
