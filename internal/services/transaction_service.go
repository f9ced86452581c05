package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bookkeeper/internal/amqp"
	"bookkeeper/internal/core"
	"bookkeeper/internal/log"
	"bookkeeper/internal/metrics"
	"bookkeeper/internal/store"
)

// NewTransaction is a candidate transaction as entered by the user.
type NewTransaction struct {
	Amount        decimal.Decimal
	Type          core.TransactionType
	Timestamp     time.Time
	Memo          string
	Tags          []string
	CategoryID    string
	AccountID     string
	AttachmentIDs []string
}

// Recorded is the stored transaction plus the advisory warning raised when
// the expense left the account below zero.
type Recorded struct {
	Transaction core.Transaction
	Warning     *core.BalanceWarning
}

// TransactionFilter selects transactions. Zero fields do not filter.
type TransactionFilter struct {
	CategoryID string
	Start      time.Time
	End        time.Time
}

// TransactionService records transactions and moves money between accounts.
type TransactionService struct {
	accounts     store.Repository[*core.Account]
	categories   store.Repository[core.Category]
	transactions store.Repository[core.Transaction]
	deps
}

func NewTransactionService(
	accounts store.Repository[*core.Account],
	categories store.Repository[core.Category],
	transactions store.Repository[core.Transaction],
	opts ...Option,
) *TransactionService {
	return &TransactionService{
		accounts:     accounts,
		categories:   categories,
		transactions: transactions,
		deps:         newDeps(log.ComponentLedger, opts),
	}
}

// RecordTransaction validates the candidate, applies it to the account
// balance, then stores the canonical transaction. Every check runs before
// the first mutation, so a rejected candidate changes nothing.
//
// The balance update is persisted before the transaction. If storing the
// transaction fails the balance change stays and the returned error wraps
// core.ErrLedgerInconsistent.
func (s *TransactionService) RecordTransaction(ctx context.Context, in NewTransaction) (*Recorded, error) {
	started := time.Now()

	if err := s.validate(in); err != nil {
		return nil, s.reject(ctx, err)
	}

	release := s.guard.shared()
	defer release()

	account, err := s.findAccount(ctx, in.AccountID)
	if err != nil {
		return nil, s.reject(ctx, err)
	}
	if _, ok, err := s.categories.FindByID(ctx, in.CategoryID); err != nil {
		return nil, fmt.Errorf("record transaction: find category: %w", err)
	} else if !ok {
		return nil, s.reject(ctx, fmt.Errorf("record transaction: %w", core.NotFound("category", in.CategoryID)))
	}

	// Past this point the ledger is mutated; the caller's cancellation must
	// not stop the second persist.
	commitCtx := context.WithoutCancel(ctx)

	warning, balance, err := s.applyAndSave(commitCtx, account, in.Amount, in.Type)
	if err != nil {
		return nil, err
	}

	tx := core.Transaction{
		ID:            core.NewID(core.TransactionPrefix),
		Amount:        core.Format(in.Amount),
		Type:          in.Type,
		Timestamp:     in.Timestamp,
		Memo:          in.Memo,
		Tags:          in.Tags,
		Status:        core.StatusCompleted,
		CategoryID:    in.CategoryID,
		AccountID:     in.AccountID,
		AttachmentIDs: in.AttachmentIDs,
	}.Clone()

	saved, err := s.transactions.Save(commitCtx, tx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Balance updated but transaction not stored",
			log.NewFields().
				WithTransaction(tx.ID, tx.Type.String(), tx.AccountID, tx.CategoryID, tx.Amount).
				WithBalance(balance).
				WithErrorType(log.ErrorTypeInconsistent).
				WithError(err).
				ToSlice()...)
		return nil, fmt.Errorf("record transaction %s: %w: %w", tx.ID, core.ErrLedgerInconsistent, err)
	}

	s.metrics.IncrementCounter(metrics.TransactionRecorded, map[string]string{"type": saved.Type.String()})
	s.metrics.RecordProcessingTime(metrics.RecordDuration, time.Since(started))
	s.logger.InfoContext(ctx, "Transaction recorded",
		log.NewFields().
			WithOperation(log.OpRecord).
			WithTransaction(saved.ID, saved.Type.String(), saved.AccountID, saved.CategoryID, saved.Amount).
			WithBalance(balance).
			ToSlice()...)

	s.publish(ctx, amqp.NewTransactionRecorded(saved, balance))
	if warning != nil {
		s.publish(ctx, amqp.NewBalanceNegative(warning, s.now()))
	}

	return &Recorded{Transaction: saved, Warning: warning}, nil
}

func (s *TransactionService) validate(in NewTransaction) error {
	if err := core.ValidateAmount(in.Amount); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	if strings.TrimSpace(in.CategoryID) == "" {
		return fmt.Errorf("record transaction: %w", core.ErrMissingCategory)
	}
	if in.Timestamp.IsZero() {
		return fmt.Errorf("record transaction: %w", core.ErrMissingTimestamp)
	}
	if strings.TrimSpace(in.AccountID) == "" {
		return fmt.Errorf("record transaction: %w", core.ErrMissingAccount)
	}
	if err := in.Type.Validate(); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

func (s *TransactionService) findAccount(ctx context.Context, id string) (*core.Account, error) {
	account, ok, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if !ok {
		return nil, core.NotFound("account", id)
	}
	return account, nil
}

// applyAndSave updates the balance and persists the account under the
// account's lock.
func (s *TransactionService) applyAndSave(ctx context.Context, account *core.Account, amount decimal.Decimal, t core.TransactionType) (*core.BalanceWarning, decimal.Decimal, error) {
	unlock := s.guard.accounts.lock(account.ID)
	defer unlock()

	warning, err := account.UpdateBalance(amount, t)
	if err != nil {
		return nil, decimal.Decimal{}, err
	}
	balance := account.Balance()
	if _, err := s.accounts.Save(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "Balance updated but account not stored",
			log.NewFields().WithAccount(account.ID).WithBalance(balance).WithError(err).ToSlice()...)
		return nil, decimal.Decimal{}, fmt.Errorf("save account %s: %w: %w", account.ID, core.ErrLedgerInconsistent, err)
	}
	if warning != nil {
		s.warnNegative(ctx, warning)
	}
	return warning, balance, nil
}

func (s *TransactionService) warnNegative(ctx context.Context, w *core.BalanceWarning) {
	s.metrics.IncrementCounter(metrics.BalanceNegative, nil)
	s.logger.WarnContext(ctx, "Account balance is negative",
		log.NewFields().WithAccount(w.AccountID).WithBalance(w.Balance).ToSlice()...)
}

func (s *TransactionService) reject(ctx context.Context, err error) error {
	reason := "validation"
	if errors.Is(err, core.ErrDataNotFound) {
		reason = "not_found"
	}
	s.metrics.IncrementCounter(metrics.TransactionRejected, map[string]string{"reason": reason})
	s.logger.DebugContext(ctx, "Transaction rejected", log.FieldError, err.Error())
	return err
}

// FindTransactions returns the transactions matching every set filter,
// ordered by timestamp then id.
func (s *TransactionService) FindTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	categoryID := strings.TrimSpace(f.CategoryID)
	txs, err := s.transactions.Query(ctx, func(tx core.Transaction) bool {
		if categoryID != "" && tx.CategoryID != categoryID {
			return false
		}
		if !f.Start.IsZero() && tx.Timestamp.Before(f.Start) {
			return false
		}
		if !f.End.IsZero() && tx.Timestamp.After(f.End) {
			return false
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	sortTransactions(txs)
	return txs, nil
}

func sortTransactions(txs []core.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.Before(txs[j].Timestamp)
		}
		return txs[i].ID < txs[j].ID
	})
}

// TransferFunds moves amount from one account to another. No transaction
// records are created, so transfers do not show up in reports. The returned
// warning is non-nil when the source ends below zero.
func (s *TransactionService) TransferFunds(ctx context.Context, fromID, toID string, amount decimal.Decimal) (*core.BalanceWarning, error) {
	if err := core.ValidateAmount(amount); err != nil {
		return nil, s.rejectTransfer(ctx, fmt.Errorf("transfer funds: %w", err))
	}
	if strings.TrimSpace(fromID) == "" || strings.TrimSpace(toID) == "" {
		return nil, s.rejectTransfer(ctx, fmt.Errorf("transfer funds: %w", core.ErrMissingAccount))
	}

	release := s.guard.shared()
	defer release()

	from, err := s.findAccount(ctx, fromID)
	if err != nil {
		return nil, s.rejectTransfer(ctx, fmt.Errorf("transfer funds: source: %w", err))
	}
	to, err := s.findAccount(ctx, toID)
	if err != nil {
		return nil, s.rejectTransfer(ctx, fmt.Errorf("transfer funds: destination: %w", err))
	}
	// checked after the lookups so an unknown id reports not found
	if from.ID == to.ID {
		return nil, s.rejectTransfer(ctx, fmt.Errorf("transfer funds: %w", core.ErrSameAccountTransfer))
	}

	commitCtx := context.WithoutCancel(ctx)
	warning, fromBalance, err := s.moveAndSave(commitCtx, from, to, amount)
	if err != nil {
		s.metrics.IncrementCounter(metrics.TransferProcessed, map[string]string{"status": "failed"})
		return nil, err
	}

	s.metrics.IncrementCounter(metrics.TransferProcessed, map[string]string{"status": "success"})
	s.logger.InfoContext(ctx, "Funds transferred",
		log.FieldOperation, log.OpTransfer,
		log.FieldAccountID, from.ID,
		log.FieldCounterID, to.ID,
		log.FieldAmount, core.Format(amount).StringFixed(core.Scale),
		log.FieldBalance, fromBalance.StringFixed(core.Scale))

	now := s.now()
	s.publish(ctx, amqp.NewFundsTransferred(from.ID, to.ID, core.Format(amount), fromBalance, now))
	if warning != nil {
		s.publish(ctx, amqp.NewBalanceNegative(warning, now))
	}
	return warning, nil
}

func (s *TransactionService) moveAndSave(ctx context.Context, from, to *core.Account, amount decimal.Decimal) (*core.BalanceWarning, decimal.Decimal, error) {
	unlock := s.guard.accounts.lockPair(from.ID, to.ID)
	defer unlock()

	warning, err := from.UpdateBalance(amount, core.Expense)
	if err != nil {
		return nil, decimal.Decimal{}, fmt.Errorf("transfer funds: %w", err)
	}
	if _, err := to.UpdateBalance(amount, core.Income); err != nil {
		return nil, decimal.Decimal{}, fmt.Errorf("transfer funds: %w: %w", core.ErrLedgerInconsistent, err)
	}
	for _, a := range []*core.Account{from, to} {
		if _, err := s.accounts.Save(ctx, a); err != nil {
			s.logger.ErrorContext(ctx, "Transfer applied but account not stored",
				log.NewFields().WithAccount(a.ID).WithError(err).ToSlice()...)
			return nil, decimal.Decimal{}, fmt.Errorf("transfer funds: save %s: %w: %w", a.ID, core.ErrLedgerInconsistent, err)
		}
	}
	if warning != nil {
		s.warnNegative(ctx, warning)
	}
	return warning, from.Balance(), nil
}

func (s *TransactionService) rejectTransfer(ctx context.Context, err error) error {
	s.metrics.IncrementCounter(metrics.TransferProcessed, map[string]string{"status": "rejected"})
	s.logger.DebugContext(ctx, "Transfer rejected", log.FieldError, err.Error())
	return err
}
