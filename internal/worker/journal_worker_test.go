package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookkeeper/internal/amqp"
	"bookkeeper/internal/cache"
	"bookkeeper/internal/core"
	"bookkeeper/internal/storage"
)

type fakeJournal struct {
	mu      sync.Mutex
	entries map[string]storage.Entry
	appends int
	err     error
}

func (j *fakeJournal) Append(_ context.Context, e storage.Entry) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.appends++
	if j.err != nil {
		return false, j.err
	}
	if j.entries == nil {
		j.entries = map[string]storage.Entry{}
	}
	if _, ok := j.entries[e.ID]; ok {
		return false, nil
	}
	j.entries[e.ID] = e
	return true, nil
}

type countingRecorder struct {
	mu       sync.Mutex
	counters map[string]int
}

func (r *countingRecorder) IncrementCounter(name string, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counters == nil {
		r.counters = map[string]int{}
	}
	r.counters[name]++
}

func (r *countingRecorder) RecordProcessingTime(string, time.Duration) {}

func (r *countingRecorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

func recordedEvent() *amqp.LedgerEventMessage {
	tx := core.Transaction{
		ID:         "TX_1a2b3c4d",
		Amount:     decimal.RequireFromString("250.50"),
		Type:       core.Expense,
		Timestamp:  time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
		CategoryID: "CAT_food",
		AccountID:  "ACC_cash",
	}
	return amqp.NewTransactionRecorded(tx, decimal.RequireFromString("749.50"))
}

func TestHandleJournalsEvent(t *testing.T) {
	journal := &fakeJournal{}
	rec := &countingRecorder{}
	w := NewJournalWorker(journal, cache.NewDedupe(16, time.Hour), rec, nil)
	msg := recordedEvent()

	require.NoError(t, w.Handle(context.Background(), msg))

	got, ok := journal.entries[msg.ID]
	require.True(t, ok)
	assert.Equal(t, amqp.KindTransactionRecorded, got.Kind)
	assert.Equal(t, "TX_1a2b3c4d", got.TransactionID)
	assert.Equal(t, "ACC_cash", got.AccountID)
	assert.Equal(t, string(core.Expense), got.Type)
	assert.Equal(t, "749.50", got.Balance.StringFixed(2))
	assert.Equal(t, msg.Timestamp, got.PublishedAt)
	assert.Equal(t, 1, rec.count("journal.appended"))
}

func TestHandleSkipsRedeliveryWithoutTouchingJournal(t *testing.T) {
	journal := &fakeJournal{}
	rec := &countingRecorder{}
	w := NewJournalWorker(journal, cache.NewDedupe(16, time.Hour), rec, nil)
	msg := recordedEvent()

	require.NoError(t, w.Handle(context.Background(), msg))
	require.NoError(t, w.Handle(context.Background(), msg))

	assert.Equal(t, 1, journal.appends)
	assert.Equal(t, 1, rec.count("journal.duplicate"))
}

func TestHandleWithoutCacheFallsBackToJournal(t *testing.T) {
	journal := &fakeJournal{}
	rec := &countingRecorder{}
	w := NewJournalWorker(journal, nil, rec, nil)
	msg := recordedEvent()

	require.NoError(t, w.Handle(context.Background(), msg))
	require.NoError(t, w.Handle(context.Background(), msg))

	assert.Equal(t, 2, journal.appends)
	assert.Len(t, journal.entries, 1)
	assert.Equal(t, 1, rec.count("journal.duplicate"))
}

func TestHandleFailureAllowsRetry(t *testing.T) {
	journal := &fakeJournal{err: errors.New("disk full")}
	rec := &countingRecorder{}
	w := NewJournalWorker(journal, cache.NewDedupe(16, time.Hour), rec, nil)
	msg := recordedEvent()

	err := w.Handle(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), msg.ID)
	assert.Equal(t, 1, rec.count("journal.failed"))

	journal.err = nil
	require.NoError(t, w.Handle(context.Background(), msg))
	assert.Len(t, journal.entries, 1)
}

func TestHandleWritesToSQLiteJournal(t *testing.T) {
	j, err := storage.NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	w := NewJournalWorker(j, cache.NewDedupe(16, time.Hour), nil, nil)
	ctx := context.Background()
	at := time.Date(2025, 3, 16, 8, 0, 0, 0, time.UTC)

	require.NoError(t, w.Handle(ctx, recordedEvent()))
	require.NoError(t, w.Handle(ctx, amqp.NewFundsTransferred("ACC_savings", "ACC_cash",
		decimal.RequireFromString("100"), decimal.RequireFromString("9900"), at)))

	entries, err := j.ListByAccount(ctx, "ACC_cash")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, amqp.KindTransactionRecorded, entries[0].Kind)
	assert.Equal(t, amqp.KindFundsTransferred, entries[1].Kind)
	assert.Equal(t, "ACC_savings", entries[1].AccountID)
}
