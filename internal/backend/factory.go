package backend

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"bookkeeper/internal/amqp"
	"bookkeeper/internal/log"
	"bookkeeper/internal/metrics"
	"bookkeeper/internal/services"
	"bookkeeper/internal/store/memory"
)

type DefaultFactory struct {
	logger   *log.Logger
	registry prometheus.Registerer
}

// NewFactory creates a backend factory. A nil registry disables metrics.
func NewFactory(logger *log.Logger, registry prometheus.Registerer) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger:   logger.WithComponent(log.ComponentBackend),
		registry: registry,
	}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// one guard per set of stores
	opts := []services.Option{services.WithLogger(f.logger), services.WithGuard(services.NewGuard())}
	if f.registry != nil {
		opts = append(opts, services.WithMetrics(metrics.NewPrometheus(f.registry)))
	}

	var cleanup CleanupFunc
	if config.Events == AMQPEvents {
		client, err := amqp.Dial(ctx, config.AMQPURL, config.AMQPExchange, config.AMQPQueue,
			config.AMQPDialAttempts, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			opts = append(opts, services.WithPublisher(client))
			cleanup = client.Close
		}
	}

	accounts := memory.NewAccounts()
	categories := memory.NewCategories()
	transactions := memory.NewTransactions()
	budgets := memory.NewBudgets()

	ledger := &Ledger{
		Transactions: services.NewTransactionService(accounts, categories, transactions, opts...),
		Reporting:    services.NewReportingService(transactions, budgets, opts...),
		System:       services.NewSystemService(accounts, categories, transactions, budgets, config.User, opts...),
	}

	if config.SeedDemo {
		demo, err := ledger.System.SeedDemo(ctx)
		if err != nil {
			if cleanup != nil {
				_ = cleanup()
			}
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
		ledger.Demo = demo
	}

	f.logger.Info("Initialized ledger",
		"events", config.Events.String(),
		"events_enabled", cleanup != nil,
		"metrics_enabled", f.registry != nil,
		"demo_data", ledger.Demo != nil)

	return &BackendResult{Ledger: ledger, Cleanup: cleanup}, nil
}
