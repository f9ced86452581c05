package services

import (
	"context"
	"time"

	"bookkeeper/internal/amqp"
	"bookkeeper/internal/log"
	"bookkeeper/internal/metrics"
)

// EventPublisher hands ledger events to a broker. *amqp.Client implements it.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
}

// deps are the optional collaborators shared by every service.
type deps struct {
	publisher EventPublisher
	metrics   metrics.Recorder
	logger    *log.Logger
	now       func() time.Time
	guard     *Guard
}

type Option func(*deps)

// WithPublisher enables ledger events. Pass a nil interface, not a typed nil
// pointer, to keep events disabled.
func WithPublisher(p EventPublisher) Option {
	return func(d *deps) { d.publisher = p }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(d *deps) { d.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(d *deps) { d.logger = l }
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// WithGuard shares one Guard between services built over the same stores.
func WithGuard(g *Guard) Option {
	return func(d *deps) { d.guard = g }
}

func newDeps(component string, opts []Option) deps {
	d := deps{
		metrics: metrics.Nop{},
		logger:  log.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&d)
	}
	if d.guard == nil {
		d.guard = NewGuard()
	}
	d.logger = d.logger.WithComponent(component)
	return d
}

// publish never fails the caller: the ledger mutation already happened.
func (d deps) publish(ctx context.Context, msg *amqp.LedgerEventMessage) {
	if d.publisher == nil {
		d.logger.DebugContext(ctx, "AMQP publisher not available, skipping ledger event",
			log.FieldEventKind, msg.Kind)
		return
	}

	status := "success"
	if err := d.publisher.PublishLedgerEvent(ctx, msg); err != nil {
		status = "failed"
		d.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.NewFields().WithEvent(msg.ID, msg.Kind).WithAccount(msg.AccountID).WithError(err).ToSlice()...)
	}
	d.metrics.IncrementCounter(metrics.EventPublished, map[string]string{"kind": msg.Kind, "status": status})
}
