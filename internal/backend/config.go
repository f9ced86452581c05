package backend

import (
	"fmt"

	"bookkeeper/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	events := NoEvents
	if appConfig.EventsEnabled() {
		events = AMQPEvents
	}

	return Config{
		Events: events,

		AMQPURL:          appConfig.AMQPURL,
		AMQPExchange:     appConfig.AMQPExchange,
		AMQPQueue:        appConfig.AMQPQueue,
		AMQPDialAttempts: appConfig.AMQPDialAttempts,

		SeedDemo: appConfig.SeedDemoData,
		User:     appConfig.UserConfiguration(),
	}, nil
}

func (c Config) Validate() error {
	if !c.Events.IsValid() {
		return fmt.Errorf("invalid event mode: %s", c.Events)
	}

	if c.Events == AMQPEvents {
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP URL is required for amqp events")
		}
		if c.AMQPExchange == "" || c.AMQPQueue == "" {
			return fmt.Errorf("AMQP exchange and queue are required for amqp events")
		}
	}
	return nil
}
