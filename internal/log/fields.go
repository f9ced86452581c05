package log

import (
	"github.com/shopspring/decimal"
)

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldMonth         = "month"
	FieldAccountID     = "account_id"
	FieldCounterID     = "counter_account_id"
	FieldCategoryID    = "category_id"
	FieldTransactionID = "transaction_id"
	FieldBudgetID      = "budget_id"
	FieldType          = "type"
	FieldAmount        = "amount"
	FieldBalance       = "balance"
	FieldEventID       = "event_id"
	FieldEventKind     = "event_kind"
	FieldDuration      = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentLedger    = "ledger"
	ComponentReporting = "reporting"
	ComponentSystem    = "system"
	ComponentStore     = "store"
	ComponentJournal   = "journal"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentMetrics   = "metrics"
	ComponentBackend   = "backend"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpRecord   = "record"
	OpTransfer = "transfer"
	OpFind     = "find"
	OpReport   = "report"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpAppend   = "append"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInconsistent  = "inconsistent_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category
func (f LogFields) WithErrorType(errorType string) LogFields {
	f[FieldErrorType] = errorType
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithAccount adds the account id
func (f LogFields) WithAccount(accountID string) LogFields {
	f[FieldAccountID] = accountID
	return f
}

// WithTransaction adds transaction-related fields
func (f LogFields) WithTransaction(id, txType, accountID, categoryID string, amount decimal.Decimal) LogFields {
	f[FieldTransactionID] = id
	f[FieldType] = txType
	f[FieldAccountID] = accountID
	f[FieldCategoryID] = categoryID
	f[FieldAmount] = amount.StringFixed(2)
	return f
}

// WithBalance adds the resulting balance
func (f LogFields) WithBalance(balance decimal.Decimal) LogFields {
	f[FieldBalance] = balance.StringFixed(2)
	return f
}

// WithEvent adds event fields
func (f LogFields) WithEvent(id, kind string) LogFields {
	f[FieldEventID] = id
	f[FieldEventKind] = kind
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
