// Package storage keeps the worker's append-only journal of ledger events in
// SQLite. The ledger itself lives in memory; the journal is an audit trail.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

// Entry is one journaled event.
type Entry struct {
	ID               string
	Kind             string
	TransactionID    string
	AccountID        string
	CounterAccountID string
	CategoryID       string
	Type             string
	Amount           decimal.Decimal
	Balance          decimal.Decimal
	OccurredAt       time.Time
	PublishedAt      time.Time
}

type SQLiteJournal struct {
	db            *sql.DB
	schemaVersion uint
}

func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer at a time keeps SQLite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteJournal{db: db, schemaVersion: version}, nil
}

// SchemaVersion is the migration version applied when the journal opened.
func (j *SQLiteJournal) SchemaVersion() uint {
	return j.schemaVersion
}

func (j *SQLiteJournal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

const insertEntry = `
INSERT OR IGNORE INTO ledger_events (
    id, kind, transaction_id, account_id, counter_account_id, category_id,
    type, amount, balance, occurred_at, published_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Append stores the entry and reports whether it was new. Entries whose id
// is already journaled are ignored.
func (j *SQLiteJournal) Append(ctx context.Context, e Entry) (bool, error) {
	res, err := j.db.ExecContext(ctx, insertEntry,
		e.ID, e.Kind, e.TransactionID, e.AccountID, e.CounterAccountID, e.CategoryID,
		e.Type, e.Amount.String(), e.Balance.String(),
		formatTime(e.OccurredAt), formatTime(e.PublishedAt),
	)
	if err != nil {
		return false, fmt.Errorf("append event %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append event %s: rows affected: %w", e.ID, err)
	}
	return n == 1, nil
}

func (j *SQLiteJournal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// ListByAccount returns the entries that touch the account on either side,
// oldest first.
func (j *SQLiteJournal) ListByAccount(ctx context.Context, accountID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT id, kind, transaction_id, account_id, counter_account_id, category_id,
       type, amount, balance, occurred_at, published_at
FROM ledger_events
WHERE account_id = ? OR counter_account_id = ?
ORDER BY occurred_at, id`, accountID, accountID)
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", accountID, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                     Entry
			amount, balance       string
			occurredAt, published string
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.TransactionID, &e.AccountID, &e.CounterAccountID,
			&e.CategoryID, &e.Type, &amount, &balance, &occurredAt, &published); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("event %s amount: %w", e.ID, err)
		}
		if e.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("event %s balance: %w", e.ID, err)
		}
		if e.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, fmt.Errorf("event %s occurred_at: %w", e.ID, err)
		}
		if e.PublishedAt, err = parseTime(published); err != nil {
			return nil, fmt.Errorf("event %s published_at: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Times are stored as fixed-width UTC strings so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
