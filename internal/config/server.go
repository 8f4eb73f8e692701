package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost              = "RELIEF_SERVER_HOST"
	EnvServerPort              = "RELIEF_SERVER_PORT"
	EnvServerReadTimeout       = "RELIEF_SERVER_READ_TIMEOUT"
	EnvServerReadHeaderTimeout = "RELIEF_SERVER_READ_HEADER_TIMEOUT"
	EnvServerWriteTimeout      = "RELIEF_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout       = "RELIEF_SERVER_IDLE_TIMEOUT"
	EnvServerShutdownTimeout   = "RELIEF_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds HTTP listener parameters. The write timeout must cover
// a synchronous decide call, which waits on the reasoning backend.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadTimeout       string `toml:"read_timeout"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	IdleTimeout       string `toml:"idle_timeout"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

// serverDuration binds a duration field to its key, env var and default.
type serverDuration struct {
	field *string
	key   string
	env   string
	def   string
}

func (c *ServerConfig) durations() []serverDuration {
	return []serverDuration{
		{&c.ReadTimeout, "read_timeout", EnvServerReadTimeout, "1m"},
		{&c.ReadHeaderTimeout, "read_header_timeout", EnvServerReadHeaderTimeout, "10s"},
		{&c.WriteTimeout, "write_timeout", EnvServerWriteTimeout, "2m"},
		{&c.IdleTimeout, "idle_timeout", EnvServerIdleTimeout, "2m"},
		{&c.ShutdownTimeout, "shutdown_timeout", EnvServerShutdownTimeout, "30s"},
	}
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration {
	return parseDuration(c.ReadTimeout)
}

func (c *ServerConfig) ReadHeaderTimeoutDuration() time.Duration {
	return parseDuration(c.ReadHeaderTimeout)
}

func (c *ServerConfig) WriteTimeoutDuration() time.Duration {
	return parseDuration(c.WriteTimeout)
}

func (c *ServerConfig) IdleTimeoutDuration() time.Duration {
	return parseDuration(c.IdleTimeout)
}

// ShutdownTimeoutDuration bounds http.Server.Shutdown.
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return parseDuration(c.ShutdownTimeout)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	theirs := overlay.durations()
	for i, d := range c.durations() {
		if v := *theirs[i].field; v != "" {
			*d.field = v
		}
	}
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	for _, d := range c.durations() {
		if *d.field == "" {
			*d.field = d.def
		}
	}
}

func (c *ServerConfig) loadEnv() {
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	for _, d := range c.durations() {
		if v := os.Getenv(d.env); v != "" {
			*d.field = v
		}
	}
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for _, d := range c.durations() {
		if _, err := time.ParseDuration(*d.field); err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
	}
	return nil
}
