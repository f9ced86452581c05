package core

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Account holds a running balance. The balance is only changed through
// UpdateBalance, which is safe for concurrent use.
type Account struct {
	ID   string
	Name string

	mu      sync.Mutex
	balance decimal.Decimal
}

// BalanceWarning is returned next to a successful expense that left the
// account below zero. It is advisory, never an error.
type BalanceWarning struct {
	AccountID   string
	AccountName string
	Balance     decimal.Decimal
}

func (w *BalanceWarning) String() string {
	return fmt.Sprintf("account %s (%s) balance is negative: %s",
		w.AccountName, w.AccountID, w.Balance.StringFixed(Scale))
}

// NewAccount creates an account whose initial balance is formatted to Scale
// digits.
func NewAccount(name string, initialBalance decimal.Decimal) *Account {
	return &Account{
		ID:      NewID(AccountPrefix),
		Name:    name,
		balance: Format(initialBalance),
	}
}

// Balance returns the current balance.
func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// UpdateBalance applies a positive amount in the direction given by t.
// Negative balances are allowed; when an expense produces one, the returned
// warning is non-nil.
func (a *Account) UpdateBalance(amount decimal.Decimal, t TransactionType) (*BalanceWarning, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("update balance of %s: %w (got %s)", a.ID, ErrInvalidAmount, amount.String())
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("update balance of %s: %w", a.ID, err)
	}

	formatted := Format(amount)

	a.mu.Lock()
	defer a.mu.Unlock()

	switch t {
	case Income:
		a.balance = a.balance.Add(formatted)
	case Expense:
		a.balance = a.balance.Sub(formatted)
		if a.balance.Sign() < 0 {
			return &BalanceWarning{AccountID: a.ID, AccountName: a.Name, Balance: a.balance}, nil
		}
	}
	return nil, nil
}

func (a *Account) String() string {
	return fmt.Sprintf("Account[id=%s name=%q balance=%s]", a.ID, a.Name, a.Balance().StringFixed(Scale))
}
