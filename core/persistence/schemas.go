package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/asaidimu/go-restful/core/schema"
	"go.uber.org/zap"
)

// Registry is the catalog of models an application declares. Tables are
// created in registration order.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*schema.ModelDefinition
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*schema.ModelDefinition)}
}

// Register adds models. A model must pass its definition checks and its name
// must not be taken.
func (r *Registry) Register(models ...*schema.ModelDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range models {
		if err := m.Check(); err != nil {
			return fmt.Errorf("invalid model: %w", err)
		}
		if _, ok := r.models[m.Name]; ok {
			return fmt.Errorf("a model named %s is already registered", m.Name)
		}
		r.models[m.Name] = m
		r.order = append(r.order, m.Name)
	}
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(models ...*schema.ModelDefinition) {
	if err := r.Register(models...); err != nil {
		panic(err)
	}
}

// Lookup returns the model registered under name.
func (r *Registry) Lookup(name string) (*schema.ModelDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Models returns the registered models in registration order.
func (r *Registry) Models() []*schema.ModelDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*schema.ModelDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.models[name])
	}
	return out
}

// Names returns the registered model names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}

// CreateAll creates the table of every registered model that does not exist
// yet, inside one session.
func (r *Registry) CreateAll(ctx context.Context, e *Engine) error {
	return e.Transact(ctx, func(sess Session) error {
		for _, m := range r.Models() {
			exists, err := sess.TableExists(ctx, m.Table)
			if err != nil {
				return fmt.Errorf("error looking up table %s: %w", m.Table, err)
			}
			if exists {
				e.logger.Debug("Table exists", zap.String("model", m.Name), zap.String("table", m.Table))
				continue
			}
			if err := sess.CreateTable(ctx, m); err != nil {
				return fmt.Errorf("failed to create table for %s: %w", m.Name, err)
			}
			e.logger.Info("Table created", zap.String("model", m.Name), zap.String("table", m.Table))
		}
		return nil
	})
}

// DropAll drops the table of every registered model, in reverse order.
func (r *Registry) DropAll(ctx context.Context, e *Engine) error {
	models := r.Models()
	return e.Transact(ctx, func(sess Session) error {
		for i := len(models) - 1; i >= 0; i-- {
			if err := sess.DropTable(ctx, models[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
