package persistence

import (
	"context"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/query"
	"github.com/asaidimu/go-restful/core/schema"
)

// PersistenceEventType defines the possible event types for persistence operations.
type PersistenceEventType string

const (
	RecordCreateSuccess PersistenceEventType = "record:create:success"
	RecordCreateFailed  PersistenceEventType = "record:create:failed"
	RecordUpdateSuccess PersistenceEventType = "record:update:success"
	RecordUpdateFailed  PersistenceEventType = "record:update:failed"
	RecordDeleteSuccess PersistenceEventType = "record:delete:success"
	RecordDeleteFailed  PersistenceEventType = "record:delete:failed"
)

// EventTypes lists every event the engine emits.
func EventTypes() []PersistenceEventType {
	return []PersistenceEventType{
		RecordCreateSuccess, RecordCreateFailed,
		RecordUpdateSuccess, RecordUpdateFailed,
		RecordDeleteSuccess, RecordDeleteFailed,
	}
}

// PersistenceEvent describes one completed mutation.
type PersistenceEvent struct {
	Type      PersistenceEventType `json:"type"`               // The type of event (e.g., 'record:create:success').
	Timestamp int64                `json:"timestamp"`          // Timestamp when the event occurred (Unix milliseconds).
	Operation string               `json:"operation"`          // The operation performed: create, update or delete.
	Model     string               `json:"model"`              // Name of the model affected.
	Input     any                  `json:"input,omitempty"`    // Data passed to the operation (if applicable).
	Output    []core.Record        `json:"output,omitempty"`   // Records written or removed.
	Error     *string              `json:"error,omitempty"`    // Error message if the operation failed.
	Query     []query.QueryFilter  `json:"query,omitempty"`    // Filters selecting the affected records.
	Duration  *int64               `json:"duration,omitempty"` // Duration of the operation in milliseconds.
}

// Failed reports whether the event describes a failed operation.
func (e PersistenceEvent) Failed() bool {
	return e.Error != nil
}

// EventCallbackFunction handles a persistence event.
type EventCallbackFunction func(ctx context.Context, event PersistenceEvent) error

// RegisterSubscriptionOptions defines options for registering a subscription.
type RegisterSubscriptionOptions struct {
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Callback    EventCallbackFunction
}

// SubscriptionInfo describes a subscription configuration.
type SubscriptionInfo struct {
	ID          string               `json:"id"`
	Event       PersistenceEventType `json:"event"`                 // The event subscribed to.
	Model       string               `json:"model,omitempty"`       // Set when the subscription is scoped to a model.
	Label       *string              `json:"label,omitempty"`       // Optional short identifier.
	Description *string              `json:"description,omitempty"` // Optional description.
	unsubscribe func()
}

// Operations is the query surface resources run against. Engine implements it.
// A nil session means the engine opens and closes one around the call.
type Operations interface {
	List(ctx context.Context, sess Session, model *schema.ModelDefinition, plan *query.QueryPlan) (int64, []core.Record, error)
	Create(ctx context.Context, sess Session, model *schema.ModelDefinition, data core.Record) (core.Record, error)
	Show(ctx context.Context, sess Session, model *schema.ModelDefinition, id any, filters []query.QueryFilter) (core.Record, error)
	Update(ctx context.Context, sess Session, model *schema.ModelDefinition, id any, data core.Record, filters []query.QueryFilter) (core.Record, error)
	Delete(ctx context.Context, sess Session, model *schema.ModelDefinition, id any, filters []query.QueryFilter) (core.Record, error)
	ShowBy(ctx context.Context, sess Session, model *schema.ModelDefinition, filters []query.QueryFilter) (core.Record, error)
	UpdateBy(ctx context.Context, sess Session, model *schema.ModelDefinition, filters []query.QueryFilter, data core.Record) ([]core.Record, error)
	DeleteBy(ctx context.Context, sess Session, model *schema.ModelDefinition, filters []query.QueryFilter) ([]core.Record, error)
	Exist(ctx context.Context, sess Session, model *schema.ModelDefinition, filters []query.QueryFilter) (bool, error)
	Open(ctx context.Context) (Session, error)
}
