package auth

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config controls how request owners are identified.
//
// With Enabled set, bearer tokens are verified against the OIDC issuer, the
// owner is read from OwnerClaim and reviewers are callers whose
// ReviewerClaim contains ReviewerRole. Otherwise the owner is taken from the
// OwnerHeader request header and reviewers are the owners listed in
// Reviewers, which is intended for local development.
type Config struct {
	Enabled       bool     `toml:"enabled"`
	IssuerURL     string   `toml:"issuer_url"`
	ClientID      string   `toml:"client_id"`
	OwnerClaim    string   `toml:"owner_claim"`
	OwnerHeader   string   `toml:"owner_header"`
	ReviewerClaim string   `toml:"reviewer_claim"`
	ReviewerRole  string   `toml:"reviewer_role"`
	Reviewers     []string `toml:"reviewers"`
}

// Env maps auth config fields to environment variable names.
type Env struct {
	Enabled       string
	IssuerURL     string
	ClientID      string
	OwnerClaim    string
	OwnerHeader   string
	ReviewerClaim string
	ReviewerRole  string
	Reviewers     string
}

// Finalize applies defaults, environment overrides and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Enabled {
		c.Enabled = true
	}
	if overlay.IssuerURL != "" {
		c.IssuerURL = overlay.IssuerURL
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
	if overlay.OwnerClaim != "" {
		c.OwnerClaim = overlay.OwnerClaim
	}
	if overlay.OwnerHeader != "" {
		c.OwnerHeader = overlay.OwnerHeader
	}
	if overlay.ReviewerClaim != "" {
		c.ReviewerClaim = overlay.ReviewerClaim
	}
	if overlay.ReviewerRole != "" {
		c.ReviewerRole = overlay.ReviewerRole
	}
	if len(overlay.Reviewers) > 0 {
		c.Reviewers = overlay.Reviewers
	}
}

func (c *Config) loadDefaults() {
	if c.OwnerClaim == "" {
		c.OwnerClaim = "sub"
	}
	if c.OwnerHeader == "" {
		c.OwnerHeader = "X-Owner-ID"
	}
	if c.ReviewerClaim == "" {
		c.ReviewerClaim = "roles"
	}
	if c.ReviewerRole == "" {
		c.ReviewerRole = "relief.reviewer"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Enabled = b
			}
		}
	}
	if env.IssuerURL != "" {
		if v := os.Getenv(env.IssuerURL); v != "" {
			c.IssuerURL = v
		}
	}
	if env.ClientID != "" {
		if v := os.Getenv(env.ClientID); v != "" {
			c.ClientID = v
		}
	}
	if env.OwnerClaim != "" {
		if v := os.Getenv(env.OwnerClaim); v != "" {
			c.OwnerClaim = v
		}
	}
	if env.OwnerHeader != "" {
		if v := os.Getenv(env.OwnerHeader); v != "" {
			c.OwnerHeader = v
		}
	}
	if env.ReviewerClaim != "" {
		if v := os.Getenv(env.ReviewerClaim); v != "" {
			c.ReviewerClaim = v
		}
	}
	if env.ReviewerRole != "" {
		if v := os.Getenv(env.ReviewerRole); v != "" {
			c.ReviewerRole = v
		}
	}
	if env.Reviewers != "" {
		if v := os.Getenv(env.Reviewers); v != "" {
			c.Reviewers = c.Reviewers[:0]
			for id := range strings.SplitSeq(v, ",") {
				if id = strings.TrimSpace(id); id != "" {
					c.Reviewers = append(c.Reviewers, id)
				}
			}
		}
	}
}

func (c *Config) validate() error {
	if !c.Enabled {
		return nil
	}
	if c.IssuerURL == "" {
		return fmt.Errorf("issuer_url required when auth is enabled")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id required when auth is enabled")
	}
	return nil
}
