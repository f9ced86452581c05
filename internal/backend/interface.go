// Package backend assembles the ledger: stores, services, and the optional
// event publisher.
package backend

import (
	"context"

	"bookkeeper/internal/core"
	"bookkeeper/internal/services"
)

// Ledger is the assembled set of services a front end talks to.
type Ledger struct {
	Transactions *services.TransactionService
	Reporting    *services.ReportingService
	System       *services.SystemService

	// Demo is set when the factory seeded starter data.
	Demo *services.Demo
}

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

type BackendResult struct {
	Ledger  *Ledger
	Cleanup CleanupFunc
}

// Factory creates ledgers based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Events EventMode

	// AMQP, used when Events is AMQPEvents
	AMQPURL          string
	AMQPExchange     string
	AMQPQueue        string
	AMQPDialAttempts int

	SeedDemo bool
	User     core.UserConfiguration
}

// EventMode selects where ledger events go.
type EventMode string

const (
	NoEvents   EventMode = "none"
	AMQPEvents EventMode = "amqp"
)

func (m EventMode) String() string {
	return string(m)
}

func (m EventMode) IsValid() bool {
	switch m {
	case NoEvents, AMQPEvents:
		return true
	default:
		return false
	}
}
