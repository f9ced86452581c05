package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bookkeeper/internal/core"
)

type Config struct {
	// Logging
	LogLevel  string
	LogFormat string

	// AMQP, disabled when AMQPURL is empty
	AMQPURL          string
	AMQPExchange     string
	AMQPQueue        string
	AMQPDialAttempts int

	// Worker journal
	JournalDBPath   string
	DedupeCacheSize int
	DedupeTTL       time.Duration

	// Metrics endpoint, disabled when empty
	MetricsAddr string

	// Ledger
	SeedDemoData       bool
	LocalBackupEnabled bool
	PinLockEnabled     bool
}

func Load() *Config {
	return &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "bookkeeper"),
		AMQPQueue:        getEnv("AMQP_QUEUE", "ledger_events"),
		AMQPDialAttempts: getEnvInt("AMQP_DIAL_ATTEMPTS", 5),

		JournalDBPath:   getEnv("JOURNAL_DB_PATH", "./data/journal.db"),
		DedupeCacheSize: getEnvInt("DEDUPE_CACHE_SIZE", 1024),
		DedupeTTL:       getEnvDuration("DEDUPE_TTL", time.Hour),

		MetricsAddr: getEnv("METRICS_ADDR", ""),

		SeedDemoData:       getEnvBool("SEED_DEMO_DATA", true),
		LocalBackupEnabled: getEnvBool("LOCAL_BACKUP_ENABLED", false),
		PinLockEnabled:     getEnvBool("PIN_LOCK_ENABLED", false),
	}
}

// UserConfiguration returns the ledger's user settings.
func (c *Config) UserConfiguration() core.UserConfiguration {
	return core.UserConfiguration{
		LocalBackupEnabled: c.LocalBackupEnabled,
		PinLockEnabled:     c.PinLockEnabled,
	}
}

// EventsEnabled reports whether ledger events should be published.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}
	if c.AMQPDialAttempts < 1 || c.AMQPDialAttempts > 100 {
		errors = append(errors, fmt.Sprintf("invalid AMQP dial attempts %d: must be between 1 and 100", c.AMQPDialAttempts))
	}

	if c.JournalDBPath == "" {
		errors = append(errors, "journal database path cannot be empty")
	} else if dir := filepath.Dir(c.JournalDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create journal database directory '%s': %v", dir, err))
			}
		}
	}

	if c.DedupeCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid dedupe cache size %d: must be at least 1", c.DedupeCacheSize))
	}
	if c.DedupeTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid dedupe TTL %v: must be at least 1 second", c.DedupeTTL))
	}

	if c.MetricsAddr != "" && !strings.Contains(c.MetricsAddr, ":") {
		errors = append(errors, fmt.Sprintf("invalid metrics address '%s': expected host:port", c.MetricsAddr))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
