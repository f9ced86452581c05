package store

import (
	"context"
)

// Repository is the storage port used by the ledger services. Implementations
// must be safe for concurrent use; each call is atomic on its own.
type Repository[T any] interface {
	// Save inserts or replaces the entity keyed by its id and returns what
	// was stored.
	Save(ctx context.Context, entity T) (T, error)
	// FindByID reports false when no entity has the given id.
	FindByID(ctx context.Context, id string) (T, bool, error)
	// DeleteByID is a no-op for unknown ids.
	DeleteByID(ctx context.Context, id string) error
	// Query returns the entities matching the predicate, in no particular order.
	Query(ctx context.Context, match func(T) bool) ([]T, error)
	FindAll(ctx context.Context) ([]T, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}
