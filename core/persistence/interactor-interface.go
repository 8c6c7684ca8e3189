package persistence

import (
	"context"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/query"
	"github.com/asaidimu/go-restful/core/schema"
)

// InteractorOptions provides configuration for the interactor.
type InteractorOptions struct {
	// IfNotExists adds IF NOT EXISTS clause to CREATE TABLE statements.
	IfNotExists bool

	// DropIfExists drops the table before creating it.
	DropIfExists bool

	// CreateIndexes determines whether to create indexes along with the table.
	CreateIndexes bool
}

// Selection is what a SELECT needs from a plan. Filters are ANDed.
type Selection struct {
	Filters    []query.QueryFilter
	Orders     []query.SortConfiguration
	Pagination query.Pagination
}

// DatabaseInteractor defines the interface for interacting with the database.
// It can operate in either a non-transactional (default) or transactional mode.
// Interactor methods are strict: unknown fields and malformed filters are
// errors. Leniency is the Engine's business.
type DatabaseInteractor interface {
	// Compiler returns the filter compiler the interactor renders with.
	Compiler() query.Compiler

	Select(ctx context.Context, model *schema.ModelDefinition, sel Selection) ([]core.Record, error)
	Count(ctx context.Context, model *schema.ModelDefinition, filters []query.QueryFilter) (int64, error)
	Insert(ctx context.Context, model *schema.ModelDefinition, data core.Record) (core.Record, error)
	Update(ctx context.Context, model *schema.ModelDefinition, data core.Record, filters []query.QueryFilter) ([]core.Record, error)
	Delete(ctx context.Context, model *schema.ModelDefinition, filters []query.QueryFilter) ([]core.Record, error)

	// CreateTable creates the table and indexes of a model.
	CreateTable(ctx context.Context, model *schema.ModelDefinition) error

	// DropTable drops the table of a model if it exists.
	DropTable(ctx context.Context, model *schema.ModelDefinition) error

	// TableExists checks if a table exists in the database.
	TableExists(ctx context.Context, table string) (bool, error)

	// StartTransaction initiates a new database transaction.
	// It returns a *new* instance of DatabaseInteractor that operates
	// within the scope of that transaction.
	// The receiver stays non-transactional.
	StartTransaction(ctx context.Context) (DatabaseInteractor, error)

	// Commit commits the transaction. It fails on a non-transactional interactor.
	Commit(ctx context.Context) error

	// Rollback rolls back the transaction. It fails on a non-transactional
	// interactor and is a no-op once the transaction is done.
	Rollback(ctx context.Context) error
}

// Session is a unit of work: a DatabaseInteractor returned by StartTransaction.
type Session = DatabaseInteractor
