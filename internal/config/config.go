package config

import (
	"fmt"
	"os"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/relief/pkg/auth"
	"github.com/JaimeStill/relief/pkg/database"
	"github.com/JaimeStill/relief/pkg/events"
	"github.com/JaimeStill/relief/pkg/storage"
	"github.com/JaimeStill/relief/pkg/tracing"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvReliefEnv             = "RELIEF_ENV"
	EnvReliefShutdownTimeout = "RELIEF_SHUTDOWN_TIMEOUT"
	EnvReliefVersion         = "RELIEF_VERSION"
)

var databaseEnv = &database.Env{
	Host:             "RELIEF_DB_HOST",
	Port:             "RELIEF_DB_PORT",
	Name:             "RELIEF_DB_NAME",
	User:             "RELIEF_DB_USER",
	Password:         "RELIEF_DB_PASSWORD",
	SSLMode:          "RELIEF_DB_SSL_MODE",
	MaxOpenConns:     "RELIEF_DB_MAX_OPEN_CONNS",
	MaxIdleConns:     "RELIEF_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime:  "RELIEF_DB_CONN_MAX_LIFETIME",
	ConnTimeout:      "RELIEF_DB_CONN_TIMEOUT",
	ApplicationName:  "RELIEF_DB_APPLICATION_NAME",
	StatementTimeout: "RELIEF_DB_STATEMENT_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "RELIEF_STORAGE_CONTAINER_NAME",
	ConnectionString: "RELIEF_STORAGE_CONNECTION_STRING",
	AccountURL:       "RELIEF_STORAGE_ACCOUNT_URL",
	MaxListSize:      "RELIEF_STORAGE_MAX_LIST_SIZE",
}

var authEnv = &auth.Env{
	Enabled:       "RELIEF_AUTH_ENABLED",
	IssuerURL:     "RELIEF_AUTH_ISSUER_URL",
	ClientID:      "RELIEF_AUTH_CLIENT_ID",
	OwnerClaim:    "RELIEF_AUTH_OWNER_CLAIM",
	OwnerHeader:   "RELIEF_AUTH_OWNER_HEADER",
	ReviewerClaim: "RELIEF_AUTH_REVIEWER_CLAIM",
	ReviewerRole:  "RELIEF_AUTH_REVIEWER_ROLE",
	Reviewers:     "RELIEF_AUTH_REVIEWERS",
}

var tracingEnv = &tracing.Env{
	Enabled:     "RELIEF_TRACING_ENABLED",
	ServiceName: "RELIEF_TRACING_SERVICE_NAME",
	Output:      "RELIEF_TRACING_OUTPUT",
	SampleRatio: "RELIEF_TRACING_SAMPLE_RATIO",
}

var eventsEnv = &events.Env{
	Brokers:      "RELIEF_EVENTS_BROKERS",
	Topic:        "RELIEF_EVENTS_TOPIC",
	MaxAttempts:  "RELIEF_EVENTS_MAX_ATTEMPTS",
	WriteTimeout: "RELIEF_EVENTS_WRITE_TIMEOUT",
}

// Config is the root configuration for the Relief service.
type Config struct {
	Server          ServerConfig         `toml:"server"`
	Database        database.Config      `toml:"database"`
	Storage         storage.Config       `toml:"storage"`
	API             APIConfig            `toml:"api"`
	Agent           gaconfig.AgentConfig `toml:"-"`
	Eligibility     EligibilityConfig    `toml:"eligibility"`
	Pipeline        PipelineConfig       `toml:"pipeline"`
	Auth            auth.Config          `toml:"auth"`
	Tracing         tracing.Config       `toml:"tracing"`
	Events          events.Config        `toml:"events"`
	ShutdownTimeout string               `toml:"shutdown_timeout"`
	Version         string               `toml:"version"`
}

// Env returns the RELIEF_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvReliefEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return parseDuration(c.ShutdownTimeout)
}

// parseDuration reads a value that validate has already accepted.
func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

// LoadDatabase resolves only the database section, for tools such as the
// migrator that must not depend on agent or storage settings.
func LoadDatabase() (*database.Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Database.Finalize(databaseEnv); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return &cfg.Database, nil
}

func read() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		if cfg, err = load(BaseConfigFile); err != nil {
			return nil, err
		}
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}
	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Agent.Merge(&overlay.Agent)
	c.Eligibility.Merge(&overlay.Eligibility)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Auth.Merge(&overlay.Auth)
	c.Tracing.Merge(&overlay.Tracing)
	c.Events.Merge(&overlay.Events)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := FinalizeAgent(&c.Agent); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Eligibility.Finalize(); err != nil {
		return fmt.Errorf("eligibility: %w", err)
	}
	if err := c.Pipeline.Finalize(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Auth.Finalize(authEnv); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Tracing.Finalize(tracingEnv); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Events.Finalize(eventsEnv); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvReliefShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvReliefVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Agent, err = decodeAgent(data); err != nil {
		return nil, fmt.Errorf("parse agent config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvReliefEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
