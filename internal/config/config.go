// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Discovery() DiscoveryConfig
	Resources() ResourcesConfig
	Diagnostics() DiagnosticsConfig
	Store() StoreConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserDisableCache(bool)

	// Discovery Setters
	SetDiscoveryMaxResults(int)

	// Diagnostics Setters
	SetDiagnosticsContextualSuggestions(bool)

	// Store Setters
	SetStoreEnabled(bool)
}

// Config holds the entire application configuration.
// It uses private fields to enforce access through the Interface's getter methods.
type Config struct {
	logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	discovery   DiscoveryConfig   `mapstructure:"discovery" yaml:"discovery"`
	resources   ResourcesConfig   `mapstructure:"resources" yaml:"resources"`
	diagnostics DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
	store       StoreConfig       `mapstructure:"store" yaml:"store"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig           { return c.logger }
func (c *Config) Browser() BrowserConfig         { return c.browser }
func (c *Config) Discovery() DiscoveryConfig     { return c.discovery }
func (c *Config) Resources() ResourcesConfig     { return c.resources }
func (c *Config) Diagnostics() DiagnosticsConfig { return c.diagnostics }
func (c *Config) Store() StoreConfig             { return c.store }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)     { c.browser.Headless = b }
func (c *Config) SetBrowserDisableCache(b bool) { c.browser.DisableCache = b }

func (c *Config) SetDiscoveryMaxResults(n int) { c.discovery.MaxResults = n }

func (c *Config) SetDiagnosticsContextualSuggestions(b bool) {
	c.diagnostics.ContextualSuggestions = b
}

func (c *Config) SetStoreEnabled(b bool) { c.store.Enabled = b }

// LoggerConfig controls the zap logger setup.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig tunes the chromedp driver.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	DisableCache      bool          `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Concurrency       int64         `mapstructure:"concurrency" yaml:"concurrency"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// DiscoveryConfig bounds the alternative-element search.
type DiscoveryConfig struct {
	MaxResults   int `mapstructure:"max_results" yaml:"max_results"`
	MaxBatchSize int `mapstructure:"max_batch_size" yaml:"max_batch_size"`
}

// ResourcesConfig controls the tracked-resource manager.
type ResourcesConfig struct {
	// DisposeTimeout is the TTL after which the background sweep disposes a
	// tracked resource that nobody released explicitly. The sweep interval is
	// DisposeTimeout/2.
	DisposeTimeout time.Duration `mapstructure:"dispose_timeout" yaml:"dispose_timeout"`
}

// DiagnosticsConfig tunes error enrichment and classification.
type DiagnosticsConfig struct {
	PerformanceThreshold  time.Duration `mapstructure:"performance_threshold" yaml:"performance_threshold"`
	MemoryThreshold       uint64        `mapstructure:"memory_threshold" yaml:"memory_threshold"`
	MaxErrorHistory       int           `mapstructure:"max_error_history" yaml:"max_error_history"`
	ContextualSuggestions bool          `mapstructure:"contextual_suggestions" yaml:"contextual_suggestions"`
	PatternWindow         time.Duration `mapstructure:"pattern_window" yaml:"pattern_window"`
	// EnrichmentRate caps how many enrichment passes per second may hit the
	// browser when errors arrive in a flood. Zero disables the throttle.
	EnrichmentRate float64 `mapstructure:"enrichment_rate" yaml:"enrichment_rate"`
}

// PostgresConfig holds the connection details for a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// StoreConfig controls optional persistence of the diagnostic history.
type StoreConfig struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// DSN renders a pgx-compatible connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "triage-cli")
	v.SetDefault("logger.log_file", "triage.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.concurrency", 4)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_load_wait", "2s")

	// -- Discovery --
	v.SetDefault("discovery.max_results", 10)
	v.SetDefault("discovery.max_batch_size", 100)

	// -- Resources --
	v.SetDefault("resources.dispose_timeout", "60s")

	// -- Diagnostics --
	v.SetDefault("diagnostics.performance_threshold", "5s")
	v.SetDefault("diagnostics.memory_threshold", 256*1024*1024)
	v.SetDefault("diagnostics.max_error_history", 100)
	v.SetDefault("diagnostics.contextual_suggestions", true)
	v.SetDefault("diagnostics.pattern_window", "5m")
	v.SetDefault("diagnostics.enrichment_rate", 2.0)

	// -- Store --
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "postgres")
	v.SetDefault("store.postgres.password", "") // Should be set via env var
	v.SetDefault("store.postgres.dbname", "triage_history")
	v.SetDefault("store.postgres.sslmode", "disable")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("store.postgres.password", "TRIAGE_STORE_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.browser.Concurrency <= 0 {
		return fmt.Errorf("browser.concurrency must be a positive integer")
	}
	if c.discovery.MaxBatchSize <= 0 {
		return fmt.Errorf("discovery.max_batch_size must be a positive integer")
	}
	if c.discovery.MaxResults < 0 {
		return fmt.Errorf("discovery.max_results must not be negative")
	}
	if c.resources.DisposeTimeout <= 0 {
		return fmt.Errorf("resources.dispose_timeout must be a positive duration")
	}
	if c.diagnostics.MaxErrorHistory <= 0 {
		return fmt.Errorf("diagnostics.max_error_history must be a positive integer")
	}
	if c.diagnostics.PatternWindow <= 0 {
		return fmt.Errorf("diagnostics.pattern_window must be a positive duration")
	}
	if c.diagnostics.EnrichmentRate < 0 {
		return fmt.Errorf("diagnostics.enrichment_rate must not be negative")
	}
	return nil
}
