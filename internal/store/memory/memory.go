package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"bookkeeper/internal/core"
	"bookkeeper/internal/store"
)

// Store keeps entities in a map keyed by the id returned from idOf.
type Store[T any] struct {
	mu    sync.RWMutex
	idOf  func(T) string
	copy  func(T) T
	items map[string]T
}

var _ store.Repository[core.Transaction] = (*Store[core.Transaction])(nil)

// Option customizes a Store.
type Option[T any] func(*Store[T])

// WithCopy sets the function applied to entities on the way in and out, so
// values holding slices are never shared with callers.
func WithCopy[T any](fn func(T) T) Option[T] {
	return func(s *Store[T]) { s.copy = fn }
}

func New[T any](idOf func(T) string, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		idOf:  idOf,
		copy:  func(v T) T { return v },
		items: make(map[string]T),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewAccounts returns a store of accounts. Accounts are kept by pointer: the
// balance lives behind the account's own mutex.
func NewAccounts() *Store[*core.Account] {
	return New(func(a *core.Account) string { return a.ID })
}

func NewCategories() *Store[core.Category] {
	return New(func(c core.Category) string { return c.ID })
}

func NewTransactions() *Store[core.Transaction] {
	return New(func(t core.Transaction) string { return t.ID }, WithCopy(core.Transaction.Clone))
}

func NewBudgets() *Store[core.Budget] {
	return New(func(b core.Budget) string { return b.ID })
}

func (s *Store[T]) Save(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	id := s.idOf(entity)
	if strings.TrimSpace(id) == "" {
		return zero, fmt.Errorf("save: %w", core.ErrEmptyID)
	}
	stored := s.copy(entity)
	s.mu.Lock()
	s.items[id] = stored
	s.mu.Unlock()
	return s.copy(stored), nil
}

func (s *Store[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	s.mu.RLock()
	v, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return zero, false, nil
	}
	return s.copy(v), true, nil
}

func (s *Store[T]) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

func (s *Store[T]) Query(ctx context.Context, match func(T) bool) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0)
	for _, v := range s.items {
		if match(v) {
			out = append(out, s.copy(v))
		}
	}
	return out, nil
}

func (s *Store[T]) FindAll(ctx context.Context) ([]T, error) {
	return s.Query(ctx, func(T) bool { return true })
}

func (s *Store[T]) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

func (s *Store[T]) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.items = make(map[string]T)
	s.mu.Unlock()
	return nil
}
