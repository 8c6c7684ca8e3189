package persistence

import (
	"context"
	"time"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/query"
	"github.com/asaidimu/go-restful/core/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// emitEvent is a helper method to emit events
func (e *Engine) emitEvent(event PersistenceEvent) {
	if e.bus != nil {
		e.bus.Emit(string(event.Type), event)
	}
}

// withEventEmission runs a mutation and emits its success or failure event.
// The success event of a mutation in a session from Open waits for its commit.
func (e *Engine) withEventEmission(
	sess Session,
	operation string,
	model *schema.ModelDefinition,
	input any,
	filters []query.QueryFilter,
	fn func() ([]core.Record, error),
) ([]core.Record, error) {
	startTime := time.Now()
	result, err := fn()
	event := createEvent(outcome(operation, err != nil), operation, model.Name, input, result, filters, err, startTime)
	if s, ok := sess.(*session); ok && err == nil {
		s.hold(event)
		return result, err
	}
	e.emitEvent(event)
	return result, err
}

// Subscribe registers a callback for an event and returns the subscription id.
func (e *Engine) Subscribe(event PersistenceEventType, cb EventCallbackFunction) string {
	return e.RegisterSubscription(RegisterSubscriptionOptions{Event: event, Callback: cb})
}

// RegisterSubscription registers a callback for a specific persistence event. It returns
// a unique ID that can be used to unregister the subscription later.
func (e *Engine) RegisterSubscription(options RegisterSubscriptionOptions) string {
	return e.register(options, "")
}

func (e *Engine) register(options RegisterSubscriptionOptions, model string) string {
	cb := options.Callback
	unsubscribe := e.bus.Subscribe(string(options.Event), func(ctx context.Context, event PersistenceEvent) error {
		if model != "" && event.Model != model {
			return nil
		}
		return cb(ctx, event)
	})
	id := uuid.New().String()

	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subscriptions[id] = &SubscriptionInfo{
		ID:          id,
		Event:       options.Event,
		Model:       model,
		Label:       options.Label,
		Description: options.Description,
		unsubscribe: unsubscribe,
	}
	e.logger.Debug("Subscription registered", zap.String("id", id), zap.String("event", string(options.Event)))
	return id
}

// Unsubscribe removes a subscription by its ID. Unknown ids are ignored.
func (e *Engine) Unsubscribe(id string) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	if info, ok := e.subscriptions[id]; ok {
		info.unsubscribe()
		delete(e.subscriptions, id)
	}
}

// Subscriptions returns a list of all currently active subscriptions.
func (e *Engine) Subscriptions() []SubscriptionInfo {
	e.subMu.RLock()
	defer e.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(e.subscriptions))
	for _, sub := range e.subscriptions {
		subs = append(subs, *sub)
	}
	return subs
}
