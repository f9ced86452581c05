package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"bookkeeper/internal/amqp"
	"bookkeeper/internal/core"
	"bookkeeper/internal/store"
	"bookkeeper/internal/store/memory"
)

// countingRepo counts every call that reaches the wrapped repository.
type countingRepo[T any] struct {
	store.Repository[T]
	calls   atomic.Int64
	saveErr error
	// onSave runs before every Save reaches the wrapped repository.
	onSave func()
}

func (r *countingRepo[T]) Save(ctx context.Context, v T) (T, error) {
	r.calls.Add(1)
	if r.onSave != nil {
		r.onSave()
	}
	if r.saveErr != nil {
		var zero T
		return zero, r.saveErr
	}
	return r.Repository.Save(ctx, v)
}

func (r *countingRepo[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	r.calls.Add(1)
	return r.Repository.FindByID(ctx, id)
}

func (r *countingRepo[T]) Query(ctx context.Context, match func(T) bool) ([]T, error) {
	r.calls.Add(1)
	return r.Repository.Query(ctx, match)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.LedgerEventMessage
	err  error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, msg *amqp.LedgerEventMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.Kind)
	}
	return out
}

var errStoreDown = errors.New("store unavailable")

type fixture struct {
	accounts     *countingRepo[*core.Account]
	categories   *countingRepo[core.Category]
	transactions *countingRepo[core.Transaction]
	budgets      *countingRepo[core.Budget]
	publisher    *recordingPublisher
	guard        *Guard

	ledger    *TransactionService
	reporting *ReportingService
	system    *SystemService
}

func newFixture(t *testing.T, cfg core.UserConfiguration) *fixture {
	t.Helper()
	f := &fixture{
		accounts:     &countingRepo[*core.Account]{Repository: memory.NewAccounts()},
		categories:   &countingRepo[core.Category]{Repository: memory.NewCategories()},
		transactions: &countingRepo[core.Transaction]{Repository: memory.NewTransactions()},
		budgets:      &countingRepo[core.Budget]{Repository: memory.NewBudgets()},
		publisher:    &recordingPublisher{},
		guard:        NewGuard(),
	}
	opts := []Option{WithPublisher(f.publisher), WithGuard(f.guard)}
	f.ledger = NewTransactionService(f.accounts, f.categories, f.transactions, opts...)
	f.reporting = NewReportingService(f.transactions, f.budgets, opts...)
	f.system = NewSystemService(f.accounts, f.categories, f.transactions, f.budgets, cfg, opts...)
	return f
}

func (f *fixture) account(t *testing.T, name, balance string) *core.Account {
	t.Helper()
	a, err := f.system.CreateAccount(context.Background(), CreateAccountRequest{Name: name, InitialBalance: amount(balance)})
	require.NoError(t, err)
	return a
}

func (f *fixture) category(t *testing.T, name string, typ core.TransactionType) core.Category {
	t.Helper()
	c, err := f.system.CreateCategory(context.Background(), CreateCategoryRequest{Name: name, Type: typ.String()})
	require.NoError(t, err)
	return c
}

func (f *fixture) record(t *testing.T, acc *core.Account, cat core.Category, typ core.TransactionType, amt string, at time.Time) core.Transaction {
	t.Helper()
	rec, err := f.ledger.RecordTransaction(context.Background(), NewTransaction{
		Amount:     amount(amt),
		Type:       typ,
		Timestamp:  at,
		CategoryID: cat.ID,
		AccountID:  acc.ID,
	})
	require.NoError(t, err)
	return rec.Transaction
}

func (f *fixture) balance(t *testing.T, id string) string {
	t.Helper()
	a, ok, err := f.accounts.Repository.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok, "account %s not found", id)
	return a.Balance().StringFixed(core.Scale)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
