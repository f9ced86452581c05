package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bookkeeper/internal/core"
)

// Event kinds published by the ledger.
const (
	KindTransactionRecorded = "transaction.recorded"
	KindFundsTransferred    = "funds.transferred"
	KindBalanceNegative     = "balance.negative"
)

// LedgerEventMessage describes a ledger mutation that already happened.
// Amounts travel as decimal strings.
type LedgerEventMessage struct {
	ID               string          `json:"id"`
	Kind             string          `json:"kind"`
	TransactionID    string          `json:"transaction_id,omitempty"`
	AccountID        string          `json:"account_id"`
	CounterAccountID string          `json:"counter_account_id,omitempty"`
	CategoryID       string          `json:"category_id,omitempty"`
	Type             string          `json:"type,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Balance          decimal.Decimal `json:"balance"`
	OccurredAt       time.Time       `json:"occurred_at"`
	Timestamp        time.Time       `json:"timestamp"`
}

func newMessage(kind string) *LedgerEventMessage {
	return &LedgerEventMessage{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// NewTransactionRecorded builds the event for a stored transaction and the
// account balance it produced.
func NewTransactionRecorded(tx core.Transaction, balance decimal.Decimal) *LedgerEventMessage {
	msg := newMessage(KindTransactionRecorded)
	msg.TransactionID = tx.ID
	msg.AccountID = tx.AccountID
	msg.CategoryID = tx.CategoryID
	msg.Type = tx.Type.String()
	msg.Amount = tx.Amount
	msg.Balance = balance
	msg.OccurredAt = tx.Timestamp
	return msg
}

// NewFundsTransferred builds the event for a transfer. Balance is the
// source account's balance after the move.
func NewFundsTransferred(fromID, toID string, amount, fromBalance decimal.Decimal, at time.Time) *LedgerEventMessage {
	msg := newMessage(KindFundsTransferred)
	msg.AccountID = fromID
	msg.CounterAccountID = toID
	msg.Amount = amount
	msg.Balance = fromBalance
	msg.OccurredAt = at
	return msg
}

// NewBalanceNegative builds the event for a balance warning.
func NewBalanceNegative(w *core.BalanceWarning, at time.Time) *LedgerEventMessage {
	msg := newMessage(KindBalanceNegative)
	msg.AccountID = w.AccountID
	msg.Balance = w.Balance
	msg.OccurredAt = at
	return msg
}

// Validate checks the fields every consumer relies on.
func (m *LedgerEventMessage) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("event id is required")
	}
	switch m.Kind {
	case KindTransactionRecorded, KindFundsTransferred, KindBalanceNegative:
	default:
		return fmt.Errorf("unknown event kind %q", m.Kind)
	}
	if m.AccountID == "" {
		return fmt.Errorf("event %s: account id is required", m.ID)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON decodes and validates a message.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
