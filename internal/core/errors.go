package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the ledger wraps exactly one of them,
// so callers can branch with errors.Is without knowing the specific cause.
var (
	ErrValidation        = errors.New("validation error")
	ErrDataNotFound      = errors.New("data not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Specific causes, each wrapping a kind.
var (
	ErrInvalidAmount       = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrAmountPrecision     = fmt.Errorf("%w: amount has more than %d decimal places", ErrValidation, Scale)
	ErrInvalidType         = fmt.Errorf("%w: invalid transaction type", ErrValidation)
	ErrMissingCategory     = fmt.Errorf("%w: category id is required", ErrValidation)
	ErrMissingTimestamp    = fmt.Errorf("%w: timestamp is required", ErrValidation)
	ErrMissingAccount      = fmt.Errorf("%w: account id is required", ErrValidation)
	ErrEmptyID             = fmt.Errorf("%w: entity id cannot be empty", ErrValidation)
	ErrSameAccountTransfer = fmt.Errorf("%w: cannot transfer to the same account", ErrValidation)
	ErrCategoryInUse       = fmt.Errorf("%w: category is still referenced", ErrValidation)
	ErrUnsupportedFormat   = fmt.Errorf("%w: unsupported export format", ErrValidation)
	ErrInvalidMonth        = fmt.Errorf("%w: invalid month", ErrValidation)
)

// NotFound builds a not-found error for the given entity and id.
func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s %q", ErrDataNotFound, entity, id)
}

// ErrLedgerInconsistent reports that the account balance was changed but the
// matching transaction could not be stored.
var ErrLedgerInconsistent = errors.New("ledger inconsistent")
