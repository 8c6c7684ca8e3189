package persistence

import (
	"context"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/query"
	"github.com/asaidimu/go-restful/core/schema"
	"go.uber.org/zap"
)

// compilable drops the filters the interactor cannot compile for model.
// Unknown fields and malformed filters are logged and skipped.
func (e *Engine) compilable(model *schema.ModelDefinition, filters []query.QueryFilter) []query.QueryFilter {
	out := make([]query.QueryFilter, 0, len(filters))
	compiler := e.db.Compiler()
	for _, f := range filters {
		if _, err := compiler.Compile(model, f); err != nil {
			e.logger.Warn("Skipping filter",
				zap.String("model", model.Name),
				zap.String("filter", f.String()),
				zap.Error(err))
			continue
		}
		out = append(out, f)
	}
	return out
}

// sortable drops orderings on fields the model does not declare.
func (e *Engine) sortable(model *schema.ModelDefinition, orders []query.SortConfiguration) []query.SortConfiguration {
	out := make([]query.SortConfiguration, 0, len(orders))
	for _, o := range orders {
		if !model.HasField(o.Field) {
			e.logger.Warn("Skipping order on unknown field", zap.String("model", model.Name), zap.String("field", o.Field))
			continue
		}
		out = append(out, o)
	}
	return out
}

// byID prepends the identifier filter. It reports false when id cannot be
// compiled for the model's key, in which case no record can match.
func (e *Engine) byID(model *schema.ModelDefinition, id any, filters []query.QueryFilter) ([]query.QueryFilter, bool) {
	key := query.Equal(model.IDField, id)
	if _, err := e.db.Compiler().Compile(model, key); err != nil {
		e.logger.Debug("Identifier does not match key type", zap.String("model", model.Name), zap.Any("id", id), zap.Error(err))
		return nil, false
	}
	out := make([]query.QueryFilter, 0, len(filters)+1)
	out = append(out, key)
	return append(out, filters...), true
}

func first(rows []core.Record) core.Record {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// List counts the records matching the plan's filters and returns the
// ordered window the plan selects.
func (e *Engine) List(ctx context.Context, sess Session, model *schema.ModelDefinition, plan *query.QueryPlan) (int64, []core.Record, error) {
	filters, err := e.effective(ctx, model, plan.Filters())
	if err != nil {
		return 0, nil, err
	}
	sel := Selection{
		Filters:    filters,
		Orders:     e.sortable(model, plan.Orders()),
		Pagination: plan.Pagination(),
	}

	var count int64
	var rows []core.Record
	err = e.withSession(ctx, sess, false, func(s Session) error {
		var err error
		if count, err = s.Count(ctx, model, filters); err != nil {
			return err
		}
		rows, err = s.Select(ctx, model, sel)
		return err
	})
	if err != nil {
		return 0, nil, core.NewStorageError(err)
	}
	return count, core.Records(rows), nil
}

// Create validates data, fills column defaults and inserts the record.
func (e *Engine) Create(ctx context.Context, sess Session, model *schema.ModelDefinition, data core.Record) (core.Record, error) {
	if err := schema.NewValidator(model).Check(data, false); err != nil {
		return nil, err
	}
	row := data.Copy()
	if row == nil {
		row = core.Record{}
	}
	for _, name := range model.Columns {
		if _, ok := row[name]; ok {
			continue
		}
		f := model.Fields[name]
		switch {
		case f.DefaultFunc != nil:
			row[name] = f.DefaultFunc()
		case f.Default != nil:
			row[name] = f.Default
		}
	}

	rows, err := e.withEventEmission(sess, "create", model, data, nil, func() ([]core.Record, error) {
		var created core.Record
		err := e.withSession(ctx, sess, true, func(s Session) error {
			var err error
			created, err = s.Insert(ctx, model, row)
			return err
		})
		if err != nil {
			return nil, core.NewStorageError(err)
		}
		return []core.Record{created}, nil
	})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// Show returns the record with the given id that also matches filters, or nil.
func (e *Engine) Show(ctx context.Context, sess Session, model *schema.ModelDefinition, id any, filters []query.QueryFilter) (core.Record, error) {
	filters, ok := e.byID(model, id, filters)
	if !ok {
		return nil, nil
	}
	return e.ShowBy(ctx, sess, model, filters)
}

// Update changes the record with the given id that also matches filters and
// returns it, or nil when none matched.
func (e *Engine) Update(ctx context.Context, sess Session, model *schema.ModelDefinition, id any, data core.Record, filters []query.QueryFilter) (core.Record, error) {
	filters, ok := e.byID(model, id, filters)
	if !ok {
		return nil, nil
	}
	rows, err := e.UpdateBy(ctx, sess, model, filters, data)
	if err != nil {
		return nil, err
	}
	return first(rows), nil
}

// Delete removes the record with the given id that also matches filters and
// returns the values it held, or nil when none matched.
func (e *Engine) Delete(ctx context.Context, sess Session, model *schema.ModelDefinition, id any, filters []query.QueryFilter) (core.Record, error) {
	filters, ok := e.byID(model, id, filters)
	if !ok {
		return nil, nil
	}
	rows, err := e.DeleteBy(ctx, sess, model, filters)
	if err != nil {
		return nil, err
	}
	return first(rows), nil
}

// ShowBy returns the first record matching filters, or nil.
func (e *Engine) ShowBy(ctx context.Context, sess Session, model *schema.ModelDefinition, filters []query.QueryFilter) (core.Record, error) {
	filters, err := e.effective(ctx, model, filters)
	if err != nil {
		return nil, err
	}
	var rows []core.Record
	err = e.withSession(ctx, sess, false, func(s Session) error {
		var err error
		rows, err = s.Select(ctx, model, Selection{
			Filters:    filters,
			Pagination: query.Pagination{Limit: query.Int64Ptr(1)},
		})
		return err
	})
	if err != nil {
		return nil, core.NewStorageError(err)
	}
	return first(rows), nil
}

// UpdateBy applies data to every record matching filters. Columns with an
// update hook that data does not set are refreshed. Empty filters match
// nothing.
func (e *Engine) UpdateBy(ctx context.Context, sess Session, model *schema.ModelDefinition, filters []query.QueryFilter, data core.Record) ([]core.Record, error) {
	filters, err := e.effective(ctx, model, filters)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return []core.Record{}, nil
	}
	if err := schema.NewValidator(model).Check(data, true); err != nil {
		return nil, err
	}

	changes := data.Copy()
	if len(changes) == 0 {
		return e.selectAll(ctx, sess, model, filters)
	}
	for _, name := range model.Columns {
		f := model.Fields[name]
		if _, ok := changes[name]; !ok && f.OnUpdate != nil {
			changes[name] = f.OnUpdate()
		}
	}

	return e.withEventEmission(sess, "update", model, data, filters, func() ([]core.Record, error) {
		var rows []core.Record
		err := e.withSession(ctx, sess, true, func(s Session) error {
			var err error
			rows, err = s.Update(ctx, model, changes, filters)
			return err
		})
		if err != nil {
			return nil, core.NewStorageError(err)
		}
		return core.Records(rows), nil
	})
}

// DeleteBy removes every record matching filters and returns the values they
// held. Empty filters match nothing.
func (e *Engine) DeleteBy(ctx context.Context, sess Session, model *schema.ModelDefinition, filters []query.QueryFilter) ([]core.Record, error) {
	filters, err := e.effective(ctx, model, filters)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return []core.Record{}, nil
	}

	return e.withEventEmission(sess, "delete", model, nil, filters, func() ([]core.Record, error) {
		var rows []core.Record
		err := e.withSession(ctx, sess, true, func(s Session) error {
			var err error
			rows, err = s.Delete(ctx, model, filters)
			return err
		})
		if err != nil {
			return nil, core.NewStorageError(err)
		}
		return core.Records(rows), nil
	})
}

// Exist reports whether any record matches filters. Empty filters give false.
func (e *Engine) Exist(ctx context.Context, sess Session, model *schema.ModelDefinition, filters []query.QueryFilter) (bool, error) {
	filters, err := e.effective(ctx, model, filters)
	if err != nil {
		return false, err
	}
	if len(filters) == 0 {
		return false, nil
	}
	var count int64
	err = e.withSession(ctx, sess, false, func(s Session) error {
		var err error
		count, err = s.Count(ctx, model, filters)
		return err
	})
	if err != nil {
		return false, core.NewStorageError(err)
	}
	return count > 0, nil
}

func (e *Engine) selectAll(ctx context.Context, sess Session, model *schema.ModelDefinition, filters []query.QueryFilter) ([]core.Record, error) {
	var rows []core.Record
	err := e.withSession(ctx, sess, false, func(s Session) error {
		var err error
		rows, err = s.Select(ctx, model, Selection{Filters: filters})
		return err
	})
	if err != nil {
		return nil, core.NewStorageError(err)
	}
	return core.Records(rows), nil
}
