package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanBuilder_Conditions(t *testing.T) {
	plan, err := NewPlanBuilder().
		Where("name").Eq("bob").
		Where("age").Ge(18).
		Where("age").Le(65).
		Where("email").ILike("example").
		Where("id").In(1, 2, 3).
		Build()
	require.NoError(t, err)

	filters := plan.Filters()
	require.Len(t, filters, 5)
	assert.Equal(t, ComparisonOperatorEq, filters[0].Condition.Operator)
	assert.Equal(t, ComparisonOperatorGe, filters[1].Condition.Operator)
	assert.Equal(t, ComparisonOperatorLe, filters[2].Condition.Operator)
	assert.Equal(t, ComparisonOperatorILike, filters[3].Condition.Operator)
	assert.Equal(t, []FilterValue{1, 2, 3}, filters[4].Condition.Value)
}

func TestPlanBuilder_Groups(t *testing.T) {
	plan, err := NewPlanBuilder().
		WhereGroup(LogicalOperatorOr).
		Where("status").Eq("active").
		WhereGroup(LogicalOperatorAnd).
		Where("status").Eq("pending").
		Where("age").Gt(30).
		EndGroup().
		End().
		Build()
	require.NoError(t, err)

	filters := plan.Filters()
	require.Len(t, filters, 1)
	g := filters[0].Group
	require.NotNil(t, g)
	assert.Equal(t, LogicalOperatorOr, g.Operator)
	require.Len(t, g.Conditions, 2)
	assert.Equal(t, LogicalOperatorAnd, g.Conditions[1].Group.Operator)
	assert.Len(t, g.Conditions[1].Group.Conditions, 2)
}

func TestPlanBuilder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *PlanBuilder
	}{
		{"empty in", func() *PlanBuilder { return NewPlanBuilder().Where("id").In() }},
		{"negative limit", func() *PlanBuilder { return NewPlanBuilder().Limit(-1) }},
		{"negative offset", func() *PlanBuilder { return NewPlanBuilder().Offset(-5) }},
		{"bad direction", func() *PlanBuilder { return NewPlanBuilder().OrderBy("id", "sideways") }},
		{"empty group", func() *PlanBuilder { return NewPlanBuilder().WhereGroup(LogicalOperatorAnd).End() }},
		{"end on nested", func() *PlanBuilder {
			return NewPlanBuilder().WhereGroup(LogicalOperatorAnd).WhereGroup(LogicalOperatorOr).Where("a").Eq(1).End()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Build()
			assert.Error(t, err)
		})
	}
}

func TestPlanBuilder_FirstErrorWins(t *testing.T) {
	pb := NewPlanBuilder().Limit(-1).OrderBy("id", "up")
	require.Error(t, pb.Err())
	assert.Contains(t, pb.Err().Error(), "limit")
}

func TestPlanBuilder_BuildIsolatesPlans(t *testing.T) {
	pb := NewPlanBuilder().Where("a").Eq(1)
	first, err := pb.Build()
	require.NoError(t, err)
	pb.Where("b").Eq(2)
	second, err := pb.Build()
	require.NoError(t, err)

	assert.Len(t, first.Filters(), 1)
	assert.Len(t, second.Filters(), 2)
}
