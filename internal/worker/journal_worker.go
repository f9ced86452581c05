// Package worker consumes ledger events and writes them to the journal.
package worker

import (
	"context"
	"fmt"
	"time"

	"bookkeeper/internal/amqp"
	"bookkeeper/internal/cache"
	"bookkeeper/internal/log"
	"bookkeeper/internal/metrics"
	"bookkeeper/internal/storage"
)

// Journal is the append side of the event journal.
type Journal interface {
	Append(ctx context.Context, e storage.Entry) (bool, error)
}

// JournalWorker writes each delivered ledger event to the journal once.
// Redeliveries seen recently are dropped by the dedupe cache; older ones are
// absorbed by the journal's primary key.
type JournalWorker struct {
	journal Journal
	dedupe  *cache.Dedupe
	metrics metrics.Recorder
	logger  *log.Logger
	now     func() time.Time
}

func NewJournalWorker(journal Journal, dedupe *cache.Dedupe, recorder metrics.Recorder, logger *log.Logger) *JournalWorker {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &JournalWorker{
		journal: journal,
		dedupe:  dedupe,
		metrics: recorder,
		logger:  logger.WithComponent(log.ComponentWorker),
		now:     time.Now,
	}
}

// Handle journals msg. A returned error asks the broker to redeliver.
func (w *JournalWorker) Handle(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	logger := w.logger.With(log.FieldEventID, msg.ID, log.FieldEventKind, msg.Kind)
	ctx = log.IntoContext(ctx, logger)

	if w.dedupe != nil && !w.dedupe.FirstSighting(msg.ID) {
		w.metrics.IncrementCounter(metrics.JournalDuplicate, nil)
		logger.DebugContext(ctx, "Skipping recently journaled event")
		return nil
	}

	start := w.now()
	written, err := w.journal.Append(ctx, EntryFromMessage(msg))
	w.metrics.RecordProcessingTime(metrics.JournalAppendDuration, w.now().Sub(start))
	if err != nil {
		// let the redelivery through the cache
		if w.dedupe != nil {
			w.dedupe.Forget(msg.ID)
		}
		w.metrics.IncrementCounter(metrics.JournalFailed, nil)
		log.FromContext(ctx).ErrorContext(ctx, "Failed to journal event", log.FieldError, err)
		return fmt.Errorf("journal event %s: %w", msg.ID, err)
	}

	if !written {
		w.metrics.IncrementCounter(metrics.JournalDuplicate, nil)
		logger.InfoContext(ctx, "Event already journaled")
		return nil
	}

	w.metrics.IncrementCounter(metrics.JournalAppended, nil)
	logger.InfoContext(ctx, "Event journaled",
		log.FieldAccountID, msg.AccountID,
		log.FieldAmount, msg.Amount.String(),
		log.FieldBalance, msg.Balance.String())
	return nil
}

// EntryFromMessage maps a broker message onto a journal row.
func EntryFromMessage(msg *amqp.LedgerEventMessage) storage.Entry {
	return storage.Entry{
		ID:               msg.ID,
		Kind:             msg.Kind,
		TransactionID:    msg.TransactionID,
		AccountID:        msg.AccountID,
		CounterAccountID: msg.CounterAccountID,
		CategoryID:       msg.CategoryID,
		Type:             msg.Type,
		Amount:           msg.Amount,
		Balance:          msg.Balance,
		OccurredAt:       msg.OccurredAt,
		PublishedAt:      msg.Timestamp,
	}
}
