package query

import (
	"fmt"
	"math"
)

// PlanBuilder provides a fluent API for building QueryPlan values. The first
// error encountered is kept and reported by Build; later calls are no-ops.
type PlanBuilder struct {
	plan QueryPlan
	err  error
}

// NewPlanBuilder creates a new, empty plan builder instance.
func NewPlanBuilder() *PlanBuilder {
	return &PlanBuilder{}
}

// Build validates every filter and returns the finished plan.
func (pb *PlanBuilder) Build() (*QueryPlan, error) {
	if pb.err != nil {
		return nil, pb.err
	}
	for _, f := range pb.plan.filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}
	plan := &QueryPlan{
		filters:    make([]QueryFilter, len(pb.plan.filters)),
		orders:     make([]SortConfiguration, len(pb.plan.orders)),
		pagination: pb.plan.pagination,
	}
	copy(plan.filters, pb.plan.filters)
	copy(plan.orders, pb.plan.orders)
	return plan, nil
}

// Err returns the first error recorded by the builder.
func (pb *PlanBuilder) Err() error {
	return pb.err
}

// Fail records err if no earlier error is recorded.
func (pb *PlanBuilder) Fail(err error) *PlanBuilder {
	if pb.err == nil {
		pb.err = err
	}
	return pb
}

// Filter appends filters that are ANDed with the existing ones.
func (pb *PlanBuilder) Filter(filters ...QueryFilter) *PlanBuilder {
	if pb.err != nil {
		return pb
	}
	pb.plan.filters = append(pb.plan.filters, filters...)
	return pb
}

// Where begins the construction of a filter condition for a specific field.
func (pb *PlanBuilder) Where(field string) *FilterConditionBuilder {
	return &FilterConditionBuilder{field: field, add: func(f QueryFilter) { pb.Filter(f) }, parent: pb}
}

// WhereGroup begins the construction of a group of filter conditions.
func (pb *PlanBuilder) WhereGroup(operator LogicalOperator) *FilterGroupBuilder {
	return &FilterGroupBuilder{operator: operator, done: func(f QueryFilter) { pb.Filter(f) }, plan: pb}
}

// OrderBy adds a sorting configuration to the plan.
func (pb *PlanBuilder) OrderBy(field string, direction SortDirection) *PlanBuilder {
	if pb.err != nil {
		return pb
	}
	if direction != SortDirectionAsc && direction != SortDirectionDesc {
		return pb.Fail(fmt.Errorf("unknown sort direction %q", direction))
	}
	pb.plan.orders = append(pb.plan.orders, SortConfiguration{Field: field, Direction: direction})
	return pb
}

// OrderByAsc adds an ascending sort order for a specific field.
func (pb *PlanBuilder) OrderByAsc(field string) *PlanBuilder {
	return pb.OrderBy(field, SortDirectionAsc)
}

// OrderByDesc adds a descending sort order for a specific field.
func (pb *PlanBuilder) OrderByDesc(field string) *PlanBuilder {
	return pb.OrderBy(field, SortDirectionDesc)
}

// Limit sets the maximum number of records to be returned.
func (pb *PlanBuilder) Limit(limit int64) *PlanBuilder {
	if err := checkWindow("limit", limit); err != nil {
		return pb.Fail(err)
	}
	pb.plan.pagination.Limit = &limit
	return pb
}

// Offset sets the number of records to skip.
func (pb *PlanBuilder) Offset(offset int64) *PlanBuilder {
	if err := checkWindow("offset", offset); err != nil {
		return pb.Fail(err)
	}
	pb.plan.pagination.Offset = &offset
	return pb
}

func checkWindow(name string, v int64) error {
	if v < 0 {
		return fmt.Errorf("%s must be in [0, %d], got %d", name, int64(math.MaxInt64), v)
	}
	return nil
}

// FilterConditionBuilder is used to build a single filter condition (e.g., field = value).
type FilterConditionBuilder struct {
	field  string
	add    func(QueryFilter)
	parent *PlanBuilder
}

// Eq adds an equality condition.
func (fcb *FilterConditionBuilder) Eq(value FilterValue) *PlanBuilder {
	return fcb.addCondition(ComparisonOperatorEq, value)
}

// Ne adds a not-equal condition.
func (fcb *FilterConditionBuilder) Ne(value FilterValue) *PlanBuilder {
	return fcb.addCondition(ComparisonOperatorNe, value)
}

// Lt adds a less-than condition.
func (fcb *FilterConditionBuilder) Lt(value FilterValue) *PlanBuilder {
	return fcb.addCondition(ComparisonOperatorLt, value)
}

// Le adds a less-than-or-equal condition.
func (fcb *FilterConditionBuilder) Le(value FilterValue) *PlanBuilder {
	return fcb.addCondition(ComparisonOperatorLe, value)
}

// Gt adds a greater-than condition.
func (fcb *FilterConditionBuilder) Gt(value FilterValue) *PlanBuilder {
	return fcb.addCondition(ComparisonOperatorGt, value)
}

// Ge adds a greater-than-or-equal condition.
func (fcb *FilterConditionBuilder) Ge(value FilterValue) *PlanBuilder {
	return fcb.addCondition(ComparisonOperatorGe, value)
}

// Like adds a case-sensitive substring condition.
func (fcb *FilterConditionBuilder) Like(value FilterValue) *PlanBuilder {
	return fcb.addCondition(ComparisonOperatorLike, value)
}

// ILike adds a case-insensitive substring condition.
func (fcb *FilterConditionBuilder) ILike(value FilterValue) *PlanBuilder {
	return fcb.addCondition(ComparisonOperatorILike, value)
}

// Match adds a full-text condition.
func (fcb *FilterConditionBuilder) Match(value FilterValue) *PlanBuilder {
	return fcb.addCondition(ComparisonOperatorMatch, value)
}

// In adds an "in" condition, checking if a field's value is within a set of values.
func (fcb *FilterConditionBuilder) In(values ...FilterValue) *PlanBuilder {
	return fcb.addCondition(ComparisonOperatorIn, values)
}

// NotIn adds a "not in" condition.
func (fcb *FilterConditionBuilder) NotIn(values ...FilterValue) *PlanBuilder {
	return fcb.addCondition(ComparisonOperatorNotIn, values)
}

func (fcb *FilterConditionBuilder) addCondition(operator ComparisonOperator, value FilterValue) *PlanBuilder {
	f, err := NewCondition(operator, fcb.field, value)
	if err != nil {
		return fcb.parent.Fail(err)
	}
	fcb.add(f)
	return fcb.parent
}

// FilterGroupBuilder is used to build a group of filter conditions.
type FilterGroupBuilder struct {
	operator   LogicalOperator
	conditions []QueryFilter
	done       func(QueryFilter)
	plan       *PlanBuilder
	outer      *FilterGroupBuilder
}

// Where adds a new condition to the current filter group.
func (fgb *FilterGroupBuilder) Where(field string) *FilterConditionBuilderInGroup {
	return &FilterConditionBuilderInGroup{groupBuilder: fgb, field: field}
}

// Filter adds already built filters to the group.
func (fgb *FilterGroupBuilder) Filter(filters ...QueryFilter) *FilterGroupBuilder {
	fgb.conditions = append(fgb.conditions, filters...)
	return fgb
}

// WhereGroup opens a nested group. Close it with EndGroup.
func (fgb *FilterGroupBuilder) WhereGroup(operator LogicalOperator) *FilterGroupBuilder {
	nested := &FilterGroupBuilder{operator: operator, plan: fgb.plan, outer: fgb}
	nested.done = func(f QueryFilter) { fgb.conditions = append(fgb.conditions, f) }
	return nested
}

// EndGroup closes a nested group and returns to the enclosing one.
func (fgb *FilterGroupBuilder) EndGroup() *FilterGroupBuilder {
	fgb.done(group(fgb.operator, fgb.conditions))
	if fgb.outer == nil {
		fgb.plan.Fail(fmt.Errorf("EndGroup called on a top-level group"))
		return fgb
	}
	return fgb.outer
}

// End finalizes the current filter group and returns to the plan builder.
func (fgb *FilterGroupBuilder) End() *PlanBuilder {
	if fgb.outer != nil {
		return fgb.plan.Fail(fmt.Errorf("End called on a nested group"))
	}
	fgb.done(group(fgb.operator, fgb.conditions))
	return fgb.plan
}

// FilterConditionBuilderInGroup is used to build a filter condition within a group.
type FilterConditionBuilderInGroup struct {
	groupBuilder *FilterGroupBuilder
	field        string
}

// Eq adds an equality condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Eq(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorEq, value)
}

// Ne adds a not-equal condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Ne(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorNe, value)
}

// Lt adds a less-than condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Lt(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorLt, value)
}

// Le adds a less-than-or-equal condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Le(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorLe, value)
}

// Gt adds a greater-than condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Gt(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorGt, value)
}

// Ge adds a greater-than-or-equal condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Ge(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorGe, value)
}

// Like adds a substring condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Like(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorLike, value)
}

// In adds an "in" condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) In(values ...FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorIn, values)
}

// Custom adds a condition with an arbitrary operator to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Custom(operator ComparisonOperator, value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(operator, value)
}

func (fcbg *FilterConditionBuilderInGroup) addConditionToGroup(operator ComparisonOperator, value FilterValue) *FilterGroupBuilder {
	f, err := NewCondition(operator, fcbg.field, value)
	if err != nil {
		fcbg.groupBuilder.plan.Fail(err)
		return fcbg.groupBuilder
	}
	fcbg.groupBuilder.conditions = append(fcbg.groupBuilder.conditions, f)
	return fcbg.groupBuilder
}
