package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

// StatusCompleted is the only status a recorded transaction can have.
const StatusCompleted = "COMPLETED"

// Id prefixes, one per entity kind.
const (
	AccountPrefix     = "ACC"
	CategoryPrefix    = "CAT"
	TransactionPrefix = "TX"
	BudgetPrefix      = "BUD"
)

type (
	TransactionType string

	Category struct {
		ID   string
		Name string
		Type TransactionType // fixed at creation
	}

	Transaction struct {
		ID            string
		Amount        decimal.Decimal
		Type          TransactionType
		Timestamp     time.Time
		Memo          string
		Tags          []string
		Status        string
		CategoryID    string
		AccountID     string
		AttachmentIDs []string
	}

	// Budget is a monthly spending limit. An empty CategoryID makes it a
	// total budget over the whole ledger.
	Budget struct {
		ID           string
		MonthlyLimit decimal.Decimal
		CategoryID   string
	}

	UserConfiguration struct {
		LocalBackupEnabled bool
		PinLockEnabled     bool
	}
)

// NewID returns a short random identifier such as "TX_1a2b3c4d".
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}

// ParseTransactionType accepts "income"/"expense" in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return fmt.Errorf("%w %q", ErrInvalidType, string(t))
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// NewCategory creates a category with a fresh id.
func NewCategory(name string, t TransactionType) Category {
	return Category{ID: NewID(CategoryPrefix), Name: name, Type: t}
}

// Rename returns a copy of c carrying the new name. The type never changes.
func (c Category) Rename(name string) Category {
	c.Name = name
	return c
}

// NewBudget creates a budget whose limit is formatted to Scale digits.
func NewBudget(limit decimal.Decimal, categoryID string) Budget {
	return Budget{
		ID:           NewID(BudgetPrefix),
		MonthlyLimit: Format(limit),
		CategoryID:   strings.TrimSpace(categoryID),
	}
}

// IsTotal reports whether the budget covers the whole ledger.
func (b Budget) IsTotal() bool {
	return b.CategoryID == ""
}

// CheckOverspend reports whether spending strictly exceeds the limit.
func (b Budget) CheckOverspend(spending decimal.Decimal) bool {
	return spending.GreaterThan(b.MonthlyLimit)
}

// Clone returns a deep copy so stored transactions never share slices with
// their callers.
func (t Transaction) Clone() Transaction {
	t.Tags = cloneStrings(t.Tags)
	t.AttachmentIDs = cloneStrings(t.AttachmentIDs)
	return t
}

// Within reports whether the timestamp lies in [start, end], inclusive.
func (t Transaction) Within(start, end time.Time) bool {
	return !t.Timestamp.Before(start) && !t.Timestamp.After(end)
}

func (t Transaction) String() string {
	return fmt.Sprintf("Transaction[id=%s type=%s amount=%s at=%s category=%s account=%s memo=%q]",
		t.ID, t.Type, t.Amount.StringFixed(Scale), t.Timestamp.Format("2006-01-02 15:04:05"),
		t.CategoryID, t.AccountID, t.Memo)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
