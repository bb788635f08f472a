package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for recon-engine.
// Configuration can come from YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values. Secrets
// (the database password) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Reconciliation rule thresholds and sweep behavior
	Matching MatchingConfig `yaml:"matching"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"recon"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"recon_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// MatchingConfig holds the business thresholds of the reconciliation
// rules. These are deliberately configuration, not constants: the exact
// production values are a business decision pending confirmation.
type MatchingConfig struct {
	// AmountToleranceStr is the maximum absolute deviation between a
	// billing record's total and the contract amount that still counts as
	// matched. "0.00" means exact-match contracts.
	AmountToleranceStr string `yaml:"amount_tolerance" env:"MATCH_AMOUNT_TOLERANCE" env-default:"0.00"`

	// AmountHighRatioStr is the |difference| / contract amount ratio at
	// which an amount-mismatch alert escalates from medium to high.
	AmountHighRatioStr string `yaml:"amount_high_ratio" env:"MATCH_AMOUNT_HIGH_RATIO" env-default:"0.10"`

	// ExpiryWindowDays is how many days before a contract's end date the
	// contract-expiry alert starts firing.
	ExpiryWindowDays int `yaml:"expiry_window_days" env:"MATCH_EXPIRY_WINDOW_DAYS" env-default:"30"`

	// ExpiryCriticalDays is the remaining-days threshold at which the
	// contract-expiry alert escalates to critical.
	ExpiryCriticalDays int `yaml:"expiry_critical_days" env:"MATCH_EXPIRY_CRITICAL_DAYS" env-default:"7"`

	// OverdueGraceDays is how many days past the due date an unpaid
	// billing record escalates from medium to high.
	OverdueGraceDays int `yaml:"overdue_grace_days" env:"MATCH_OVERDUE_GRACE_DAYS" env-default:"14"`

	// SweepWorkers bounds how many contracts a full sweep reconciles
	// concurrently.
	SweepWorkers int `yaml:"sweep_workers" env:"MATCH_SWEEP_WORKERS" env-default:"4"`

	// SweepTimeoutMinutes bounds the wall-clock time of a full sweep.
	// Zero disables the timeout.
	SweepTimeoutMinutes int `yaml:"sweep_timeout_minutes" env:"MATCH_SWEEP_TIMEOUT_MINUTES" env-default:"30"`

	// Parsed decimal forms of the string fields above.
	amountTolerance decimal.Decimal
	amountHighRatio decimal.Decimal
}

// AmountTolerance returns the parsed amount tolerance.
func (m *MatchingConfig) AmountTolerance() decimal.Decimal { return m.amountTolerance }

// AmountHighRatio returns the parsed high-severity escalation ratio.
func (m *MatchingConfig) AmountHighRatio() decimal.Decimal { return m.amountHighRatio }

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on
// the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Matching.Parse(); err != nil {
		return nil, fmt.Errorf("failed to parse matching thresholds: %w", err)
	}
	if err := cfg.Matching.validate(); err != nil {
		return nil, fmt.Errorf("invalid matching configuration: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with every threshold at its documented default,
// bypassing file and environment lookup. Used by tests and as a fallback
// when only engine defaults are wanted.
func Default() *Config {
	cfg := &Config{
		Env: "local",
		Matching: MatchingConfig{
			AmountToleranceStr:  "0.00",
			AmountHighRatioStr:  "0.10",
			ExpiryWindowDays:    30,
			ExpiryCriticalDays:  7,
			OverdueGraceDays:    14,
			SweepWorkers:        4,
			SweepTimeoutMinutes: 30,
		},
	}
	// Defaults are well-formed by construction.
	_ = cfg.Matching.Parse()
	return cfg
}

// Parse converts the string threshold fields to their decimal forms. Load
// calls it automatically; a MatchingConfig built by hand must be parsed
// before use.
func (m *MatchingConfig) Parse() error {
	tol, err := decimal.NewFromString(m.AmountToleranceStr)
	if err != nil {
		return fmt.Errorf("amount_tolerance %q: %w", m.AmountToleranceStr, err)
	}
	ratio, err := decimal.NewFromString(m.AmountHighRatioStr)
	if err != nil {
		return fmt.Errorf("amount_high_ratio %q: %w", m.AmountHighRatioStr, err)
	}
	m.amountTolerance = tol
	m.amountHighRatio = ratio
	return nil
}

// validate rejects threshold combinations that cannot express a sane rule
// set.
func (m *MatchingConfig) validate() error {
	if m.amountTolerance.IsNegative() {
		return fmt.Errorf("amount_tolerance must not be negative")
	}
	if m.amountHighRatio.IsNegative() {
		return fmt.Errorf("amount_high_ratio must not be negative")
	}
	if m.ExpiryWindowDays < 0 || m.ExpiryCriticalDays < 0 {
		return fmt.Errorf("expiry windows must not be negative")
	}
	if m.ExpiryCriticalDays > m.ExpiryWindowDays {
		return fmt.Errorf("expiry_critical_days (%d) must not exceed expiry_window_days (%d)",
			m.ExpiryCriticalDays, m.ExpiryWindowDays)
	}
	if m.OverdueGraceDays < 0 {
		return fmt.Errorf("overdue_grace_days must not be negative")
	}
	if m.SweepWorkers < 1 {
		return fmt.Errorf("sweep_workers must be at least 1")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
