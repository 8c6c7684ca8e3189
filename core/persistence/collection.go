package persistence

import (
	"context"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/query"
	"github.com/asaidimu/go-restful/core/schema"
)

// Model is an engine bound to one model definition. Its methods mirror the
// engine's and accept an optional session.
type Model struct {
	engine *Engine
	def    *schema.ModelDefinition
}

// Definition returns the bound model definition.
func (m *Model) Definition() *schema.ModelDefinition {
	return m.def
}

// Engine returns the engine the handle runs on.
func (m *Model) Engine() *Engine {
	return m.engine
}

func (m *Model) List(ctx context.Context, sess Session, plan *query.QueryPlan) (int64, []core.Record, error) {
	return m.engine.List(ctx, sess, m.def, plan)
}

func (m *Model) Create(ctx context.Context, sess Session, data core.Record) (core.Record, error) {
	return m.engine.Create(ctx, sess, m.def, data)
}

func (m *Model) Show(ctx context.Context, sess Session, id any, filters ...query.QueryFilter) (core.Record, error) {
	return m.engine.Show(ctx, sess, m.def, id, filters)
}

func (m *Model) Update(ctx context.Context, sess Session, id any, data core.Record, filters ...query.QueryFilter) (core.Record, error) {
	return m.engine.Update(ctx, sess, m.def, id, data, filters)
}

func (m *Model) Delete(ctx context.Context, sess Session, id any, filters ...query.QueryFilter) (core.Record, error) {
	return m.engine.Delete(ctx, sess, m.def, id, filters)
}

func (m *Model) ShowBy(ctx context.Context, sess Session, filters ...query.QueryFilter) (core.Record, error) {
	return m.engine.ShowBy(ctx, sess, m.def, filters)
}

func (m *Model) UpdateBy(ctx context.Context, sess Session, data core.Record, filters ...query.QueryFilter) ([]core.Record, error) {
	return m.engine.UpdateBy(ctx, sess, m.def, filters, data)
}

func (m *Model) DeleteBy(ctx context.Context, sess Session, filters ...query.QueryFilter) ([]core.Record, error) {
	return m.engine.DeleteBy(ctx, sess, m.def, filters)
}

func (m *Model) Exist(ctx context.Context, sess Session, filters ...query.QueryFilter) (bool, error) {
	return m.engine.Exist(ctx, sess, m.def, filters)
}

// Find returns the records matching filters in the given order.
func (m *Model) Find(ctx context.Context, sess Session, orders []query.SortConfiguration, filters ...query.QueryFilter) ([]core.Record, error) {
	pb := query.NewPlanBuilder().Filter(filters...)
	for _, o := range orders {
		pb.OrderBy(o.Field, o.Direction)
	}
	plan, err := pb.Build()
	if err != nil {
		return nil, err
	}
	_, rows, err := m.List(ctx, sess, plan)
	return rows, err
}
