package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration for the switch, parsed from the
// environment. Connector endpoints and capability flags are configured per
// connector name; routing (which connector a transaction uses) happens
// upstream and arrives with the create request.
type Config struct {
	TransactionsTable string `env:"TRANSACTIONS_TABLE" envDefault:"payment-transactions"`
	MandatesTable     string `env:"MANDATES_TABLE" envDefault:"payment-mandates"`
	IdempotencyTable  string `env:"IDEMPOTENCY_TABLE" envDefault:"payment-idempotency"`

	ReconciliationQueueURL string `env:"RECON_QUEUE_URL"`

	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"100"`
	RedirectTTL   time.Duration `env:"REDIRECT_STATE_TTL" envDefault:"30m"`

	// ConnectorTimeout bounds every outbound connector call. Expiry parks the
	// transaction in PENDING_RECONCILIATION instead of guessing an outcome.
	ConnectorTimeout time.Duration `env:"CONNECTOR_TIMEOUT" envDefault:"10s"`

	// FreshnessThreshold controls when retrieve re-syncs a non-terminal
	// transaction against the connector.
	FreshnessThreshold time.Duration `env:"RECON_FRESHNESS_THRESHOLD" envDefault:"2m"`

	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"48h"`

	// Connector registry entries, one per configured connector:
	// names, base URLs, and capability flags are parallel comma-separated
	// lists. Capability flags are three characters per connector:
	// a(uth required) m(anual capture) s(tore instrument), "-" for off,
	// e.g. "a-s,-ms".
	ConnectorNames []string `env:"CONNECTOR_NAMES" envSeparator:","`
	ConnectorURLs  []string `env:"CONNECTOR_URLS" envSeparator:","`
	ConnectorCaps  []string `env:"CONNECTOR_CAPS" envSeparator:","`

	RunLocal bool   `env:"RUN_LOCAL" envDefault:"false"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if len(cfg.ConnectorNames) != len(cfg.ConnectorURLs) || len(cfg.ConnectorNames) != len(cfg.ConnectorCaps) {
		return nil, fmt.Errorf("connector config mismatch: %d names, %d urls, %d caps",
			len(cfg.ConnectorNames), len(cfg.ConnectorURLs), len(cfg.ConnectorCaps))
	}
	return cfg, nil
}
