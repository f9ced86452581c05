// Package metrics records ledger and worker counters. Callers depend on the
// Recorder interface; the Prometheus implementation is registered on an
// explicit registry so several instances can coexist in one process.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter names.
const (
	TransactionRecorded = "ledger.transaction.recorded"
	TransactionRejected = "ledger.transaction.rejected"
	TransferProcessed   = "ledger.transfer"
	BalanceNegative     = "ledger.balance.negative"
	EventPublished      = "events.published"
	JournalAppended     = "journal.appended"
	JournalDuplicate    = "journal.duplicate"
	JournalFailed       = "journal.failed"
)

// Duration names.
const (
	RecordDuration        = "ledger.record"
	JournalAppendDuration = "journal.append"
)

type Recorder interface {
	IncrementCounter(name string, tags map[string]string)
	RecordProcessingTime(name string, duration time.Duration)
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncrementCounter(string, map[string]string)    {}
func (Nop) RecordProcessingTime(string, time.Duration) {}

type Prometheus struct {
	transactions    *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	transfers       *prometheus.CounterVec
	negative        prometheus.Counter
	published       *prometheus.CounterVec
	journal         *prometheus.CounterVec
	recordDuration  prometheus.Histogram
	journalDuration prometheus.Histogram
}

func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transactions_recorded_total",
				Help: "Total number of transactions recorded",
			},
			[]string{"type"},
		),
		rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transactions_rejected_total",
				Help: "Total number of transactions rejected before any mutation",
			},
			[]string{"reason"},
		),
		transfers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transfers_total",
				Help: "Total number of transfers processed",
			},
			[]string{"status"},
		),
		negative: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_negative_balance_warnings_total",
				Help: "Total number of operations that left an account below zero",
			},
		),
		published: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_events_published_total",
				Help: "Total number of ledger events handed to the broker",
			},
			[]string{"kind", "status"},
		),
		journal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_events_total",
				Help: "Total number of events handled by the journal worker",
			},
			[]string{"result"},
		),
		recordDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledger_record_duration_milliseconds",
				Help:    "Transaction recording duration in milliseconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		journalDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "journal_append_duration_milliseconds",
				Help:    "Journal append duration in milliseconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
	}
}

func (m *Prometheus) IncrementCounter(name string, tags map[string]string) {
	switch name {
	case TransactionRecorded:
		m.transactions.WithLabelValues(tags["type"]).Inc()
	case TransactionRejected:
		m.rejections.WithLabelValues(tags["reason"]).Inc()
	case TransferProcessed:
		m.transfers.WithLabelValues(tags["status"]).Inc()
	case BalanceNegative:
		m.negative.Inc()
	case EventPublished:
		m.published.WithLabelValues(tags["kind"], tags["status"]).Inc()
	case JournalAppended:
		m.journal.WithLabelValues("appended").Inc()
	case JournalDuplicate:
		m.journal.WithLabelValues("duplicate").Inc()
	case JournalFailed:
		m.journal.WithLabelValues("failed").Inc()
	}
}

func (m *Prometheus) RecordProcessingTime(name string, duration time.Duration) {
	ms := float64(duration.Microseconds()) / 1000
	switch name {
	case RecordDuration:
		m.recordDuration.Observe(ms)
	case JournalAppendDuration:
		m.journalDuration.Observe(ms)
	}
}
