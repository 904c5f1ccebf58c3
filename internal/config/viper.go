// Package config provides Viper-based hierarchical configuration management
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // time zones without system zoneinfo

	"fjacquet/recon-ledger/internal/normalize"
	"fjacquet/recon-ledger/internal/retry"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Mapping backends.
const (
	MappingsYAML  = "yaml"
	MappingsStore = "store"
)

// EnvPrefix prefixes every environment override, e.g. RECON_LOG_LEVEL.
const EnvPrefix = "RECON"

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Reconciliation struct {
		AutoThreshold    float64  `mapstructure:"auto_threshold" yaml:"auto_threshold"`
		SuggestThreshold float64  `mapstructure:"suggest_threshold" yaml:"suggest_threshold"`
		BatchLimit       int      `mapstructure:"batch_limit" yaml:"batch_limit"`
		Companies        []string `mapstructure:"companies" yaml:"companies"`
		Schedule         string   `mapstructure:"schedule" yaml:"schedule"`
		Timezone         string   `mapstructure:"timezone" yaml:"timezone"`
	} `mapstructure:"reconciliation" yaml:"reconciliation"`

	Retry struct {
		MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts"`
		InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
		MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
		Multiplier      float64       `mapstructure:"multiplier" yaml:"multiplier"`
	} `mapstructure:"retry" yaml:"retry"`

	Ledger struct {
		DefaultCurrency     string  `mapstructure:"default_currency" yaml:"default_currency"`
		VATAccount          string  `mapstructure:"vat_account" yaml:"vat_account"`
		PayablesAccount     string  `mapstructure:"payables_account" yaml:"payables_account"`
		Tolerance           string  `mapstructure:"tolerance" yaml:"tolerance"`
		FixedAssetThreshold string  `mapstructure:"fixed_asset_threshold" yaml:"fixed_asset_threshold"`
		AutoPost            bool    `mapstructure:"auto_post" yaml:"auto_post"`
		MinConfidence       float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
	} `mapstructure:"ledger" yaml:"ledger"`

	Storage struct {
		Driver string `mapstructure:"driver" yaml:"driver"`
		DSN    string `mapstructure:"dsn" yaml:"dsn"`
	} `mapstructure:"storage" yaml:"storage"`

	Mappings struct {
		Backend           string        `mapstructure:"backend" yaml:"backend"`
		OverridesFile     string        `mapstructure:"overrides_file" yaml:"overrides_file"`
		KeywordGroupsFile string        `mapstructure:"keyword_groups_file" yaml:"keyword_groups_file"`
		CacheTTL          time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	} `mapstructure:"mappings" yaml:"mappings"`

	Normalize normalize.CandidateKeys `mapstructure:"normalize" yaml:"normalize"`

	AI struct {
		Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
		Model          string `mapstructure:"model" yaml:"model"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
		APIKey         string `mapstructure:"api_key" yaml:"-"` // Never serialize API key
	} `mapstructure:"ai" yaml:"ai"`

	Server struct {
		Address string `mapstructure:"address" yaml:"address"`
		Metrics bool   `mapstructure:"metrics" yaml:"metrics"`
	} `mapstructure:"server" yaml:"server"`

	CSV struct {
		Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`
	} `mapstructure:"csv" yaml:"csv"`
}

// InitializeConfig initializes Viper configuration with hierarchical loading
func InitializeConfig() (*Config, error) {
	return Load("")
}

// Load reads configuration from file (or the standard locations when file
// is empty), the environment and defaults, in increasing order of
// precedence: defaults, file, environment.
func Load(file string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.recon-ledger")
		v.AddConfigPath(".recon-ledger")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case file != "":
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		case !errors.As(err, &notFound):
			fmt.Fprintf(os.Stderr, "Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
	}

	// 5. The API key is read from the unprefixed variable as well
	if err := v.BindEnv("ai.api_key", EnvPrefix+"_AI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind GEMINI_API_KEY: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("reconciliation.auto_threshold", 0.8)
	v.SetDefault("reconciliation.suggest_threshold", 0.5)
	v.SetDefault("reconciliation.batch_limit", 100)
	v.SetDefault("reconciliation.companies", []string{})
	v.SetDefault("reconciliation.schedule", "*/15 * * * *")
	v.SetDefault("reconciliation.timezone", "Europe/Zurich")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_interval", "100ms")
	v.SetDefault("retry.max_interval", "2s")
	v.SetDefault("retry.multiplier", 2.0)

	v.SetDefault("ledger.default_currency", "CHF")
	v.SetDefault("ledger.vat_account", "1170")
	v.SetDefault("ledger.payables_account", "2000")
	v.SetDefault("ledger.tolerance", "0.10")
	v.SetDefault("ledger.fixed_asset_threshold", "5000")
	v.SetDefault("ledger.auto_post", false)
	v.SetDefault("ledger.min_confidence", 0.0)

	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.dsn", "")

	v.SetDefault("mappings.backend", MappingsYAML)
	v.SetDefault("mappings.overrides_file", "overrides.yaml")
	v.SetDefault("mappings.keyword_groups_file", "keyword_groups.yaml")
	v.SetDefault("mappings.cache_ttl", "5m")

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "gemini-1.5-flash")
	v.SetDefault("ai.timeout_seconds", 30)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.metrics", true)

	v.SetDefault("csv.delimiter", ",")
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	r := config.Reconciliation
	if r.AutoThreshold < 0 || r.AutoThreshold > 1 {
		return fmt.Errorf("reconciliation.auto_threshold must be between 0.0 and 1.0, got: %f", r.AutoThreshold)
	}
	if r.SuggestThreshold < 0 || r.SuggestThreshold > 1 {
		return fmt.Errorf("reconciliation.suggest_threshold must be between 0.0 and 1.0, got: %f", r.SuggestThreshold)
	}
	if r.SuggestThreshold > r.AutoThreshold {
		return fmt.Errorf("reconciliation.suggest_threshold (%f) exceeds auto_threshold (%f)", r.SuggestThreshold, r.AutoThreshold)
	}
	if r.BatchLimit < 1 || r.BatchLimit > 100 {
		return fmt.Errorf("reconciliation.batch_limit must be between 1 and 100, got: %d", r.BatchLimit)
	}
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		return fmt.Errorf("invalid reconciliation.timezone %q: %w", r.Timezone, err)
	}

	if config.Retry.MaxAttempts < 1 || config.Retry.MaxAttempts > 10 {
		return fmt.Errorf("retry.max_attempts must be between 1 and 10, got: %d", config.Retry.MaxAttempts)
	}

	if _, err := decimal.NewFromString(config.Ledger.Tolerance); err != nil {
		return fmt.Errorf("invalid ledger.tolerance %q: %w", config.Ledger.Tolerance, err)
	}
	if _, err := decimal.NewFromString(config.Ledger.FixedAssetThreshold); err != nil {
		return fmt.Errorf("invalid ledger.fixed_asset_threshold %q: %w", config.Ledger.FixedAssetThreshold, err)
	}
	if config.Ledger.MinConfidence < 0 || config.Ledger.MinConfidence > 1 {
		return fmt.Errorf("ledger.min_confidence must be between 0.0 and 1.0, got: %f", config.Ledger.MinConfidence)
	}

	switch config.Storage.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if config.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn required for driver %s", config.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage.driver: %s (must be memory, sqlite or pgx)", config.Storage.Driver)
	}

	if config.Mappings.Backend != MappingsYAML && config.Mappings.Backend != MappingsStore {
		return fmt.Errorf("unknown mappings.backend: %s (must be yaml or store)", config.Mappings.Backend)
	}

	if config.AI.Enabled && (config.AI.TimeoutSeconds < 1 || config.AI.TimeoutSeconds > 300) {
		return fmt.Errorf("ai.timeout_seconds must be between 1 and 300, got: %d", config.AI.TimeoutSeconds)
	}

	if len(config.CSV.Delimiter) != 1 {
		return fmt.Errorf("CSV delimiter must be a single character, got: %s", config.CSV.Delimiter)
	}

	return nil
}

// RetryPolicy returns the retry section as a policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     c.Retry.MaxAttempts,
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
		Multiplier:      c.Retry.Multiplier,
	}
}

// Location returns the scheduler time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Reconciliation.Timezone)
}

// Tolerance returns the VAT cross-check tolerance.
func (c *Config) Tolerance() decimal.Decimal {
	d, _ := decimal.NewFromString(c.Ledger.Tolerance)
	return d
}

// FixedAssetThreshold returns the amount above which capital goods are
// classified as fixed assets.
func (c *Config) FixedAssetThreshold() decimal.Decimal {
	d, _ := decimal.NewFromString(c.Ledger.FixedAssetThreshold)
	return d
}

// Delimiter returns the CSV delimiter as a rune.
func (c *Config) Delimiter() rune {
	return rune(c.CSV.Delimiter[0])
}
