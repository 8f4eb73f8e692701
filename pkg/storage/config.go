package storage

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// MaxListCap bounds the page size used when enumerating blobs.
const MaxListCap int32 = 5000

var containerName = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9]|-[a-z0-9]){2,62}$`)

// Config selects the blob container documents are stored in. Either
// ConnectionString or AccountURL must be set; AccountURL authenticates
// through the default Azure credential chain.
type Config struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	AccountURL       string `toml:"account_url"`
	MaxListSize      int32  `toml:"max_list_size"`
}

// Env names the variables that override each field.
type Env struct {
	ContainerName    string
	ConnectionString string
	AccountURL       string
	MaxListSize      string
}

// Finalize applies defaults, environment overrides and validation.
func (c *Config) Finalize(env *Env) error {
	if c.ContainerName == "" {
		c.ContainerName = "applications"
	}
	if c.MaxListSize <= 0 {
		c.MaxListSize = 500
	}

	if env != nil {
		for _, f := range c.fields(env) {
			if v := os.Getenv(f.env); f.env != "" && v != "" {
				*f.dst = v
			}
		}
		if v := os.Getenv(env.MaxListSize); env.MaxListSize != "" && v != "" {
			if n, err := strconv.ParseInt(v, 10, 32); err == nil && n > 0 {
				c.MaxListSize = int32(n)
			}
		}
	}
	c.MaxListSize = min(c.MaxListSize, MaxListCap)

	if !containerName.MatchString(c.ContainerName) {
		return fmt.Errorf("invalid container_name %q: want 3-63 lowercase letters, digits or single hyphens", c.ContainerName)
	}
	if c.ConnectionString == "" && c.AccountURL == "" {
		return fmt.Errorf("connection_string or account_url required")
	}
	return nil
}

// Merge overwrites fields that are set on overlay.
func (c *Config) Merge(overlay *Config) {
	for _, f := range c.fields(nil) {
		if v := *f.of(overlay); v != "" {
			*f.dst = v
		}
	}
	if overlay.MaxListSize != 0 {
		c.MaxListSize = overlay.MaxListSize
	}
}

type stringField struct {
	dst *string
	env string
	of  func(*Config) *string
}

func (c *Config) fields(env *Env) []stringField {
	if env == nil {
		env = &Env{}
	}
	return []stringField{
		{&c.ContainerName, env.ContainerName, func(o *Config) *string { return &o.ContainerName }},
		{&c.ConnectionString, env.ConnectionString, func(o *Config) *string { return &o.ConnectionString }},
		{&c.AccountURL, env.AccountURL, func(o *Config) *string { return &o.AccountURL }},
	}
}
