// Package persistence runs resource queries against a DatabaseInteractor. The
// Engine turns query plans into interactor calls, applies model defaults and
// validation on writes, manages sessions and publishes mutation events.
package persistence

import (
	"fmt"
	"sync"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-restful/core/schema"
	"go.uber.org/zap"
)

// Engine is the generic query engine shared by every resource.
type Engine struct {
	db            DatabaseInteractor
	logger        *zap.Logger
	subscriptions map[string]*SubscriptionInfo // To store unsubscribe functions
	subMu         sync.RWMutex                 // Mutex to protect subscriptions map
	bus           *events.TypedEventBus[PersistenceEvent]
}

// Ensure Engine implements the Operations interface.
var _ Operations = (*Engine)(nil)

// NewEngine creates an engine over a non-transactional interactor.
func NewEngine(db DatabaseInteractor, logger *zap.Logger) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("persistence engine requires a database interactor")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bus, err := events.NewTypedEventBus[PersistenceEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}
	return &Engine{
		db:            db,
		logger:        logger,
		subscriptions: make(map[string]*SubscriptionInfo),
		bus:           bus,
	}, nil
}

// Interactor returns the engine's non-transactional interactor.
func (e *Engine) Interactor() DatabaseInteractor {
	return e.db
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}

// Model returns a handle bound to one model definition.
func (e *Engine) Model(def *schema.ModelDefinition) *Model {
	return &Model{engine: e, def: def}
}
