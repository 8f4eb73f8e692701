package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/JaimeStill/relief/internal/decisions"
	"github.com/JaimeStill/relief/internal/eligibility"
)

const (
	EnvEligibilityIncomeThreshold = "RELIEF_ELIGIBILITY_INCOME_THRESHOLD"
	EnvEligibilityAssetLimit      = "RELIEF_ELIGIBILITY_ASSET_LIMIT"
	EnvEligibilityMinAge          = "RELIEF_ELIGIBILITY_MIN_AGE"
	EnvEligibilityMaxAge          = "RELIEF_ELIGIBILITY_MAX_AGE"
	EnvEligibilityMaxBenefit      = "RELIEF_ELIGIBILITY_MAX_BENEFIT"
	EnvEligibilityCurrency        = "RELIEF_ELIGIBILITY_CURRENCY"
	EnvEligibilityFrequency       = "RELIEF_ELIGIBILITY_FREQUENCY"
)

// EligibilityConfig holds the program criteria and benefit terms.
// Amounts are decimal strings in the program currency.
type EligibilityConfig struct {
	IncomeThreshold string `toml:"income_threshold"`
	AssetLimit      string `toml:"asset_limit"`
	MinAge          int    `toml:"min_age"`
	MaxAge          int    `toml:"max_age"`
	MaxBenefit      string `toml:"max_benefit"`
	Currency        string `toml:"currency"`
	Frequency       string `toml:"frequency"`
}

// Policy converts the finalized config into a decision policy.
func (c *EligibilityConfig) Policy() decisions.Policy {
	return decisions.Policy{
		Criteria: eligibility.Criteria{
			IncomeThreshold: decimal.RequireFromString(c.IncomeThreshold),
			AssetLimit:      decimal.RequireFromString(c.AssetLimit),
			MinAge:          c.MinAge,
			MaxAge:          c.MaxAge,
		},
		MaxBenefit: decimal.RequireFromString(c.MaxBenefit),
		Currency:   c.Currency,
		Frequency:  c.Frequency,
	}
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EligibilityConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *EligibilityConfig) Merge(overlay *EligibilityConfig) {
	if overlay.IncomeThreshold != "" {
		c.IncomeThreshold = overlay.IncomeThreshold
	}
	if overlay.AssetLimit != "" {
		c.AssetLimit = overlay.AssetLimit
	}
	if overlay.MinAge != 0 {
		c.MinAge = overlay.MinAge
	}
	if overlay.MaxAge != 0 {
		c.MaxAge = overlay.MaxAge
	}
	if overlay.MaxBenefit != "" {
		c.MaxBenefit = overlay.MaxBenefit
	}
	if overlay.Currency != "" {
		c.Currency = overlay.Currency
	}
	if overlay.Frequency != "" {
		c.Frequency = overlay.Frequency
	}
}

func (c *EligibilityConfig) loadDefaults() {
	d := decisions.DefaultPolicy()
	if c.IncomeThreshold == "" {
		c.IncomeThreshold = d.Criteria.IncomeThreshold.String()
	}
	if c.AssetLimit == "" {
		c.AssetLimit = d.Criteria.AssetLimit.String()
	}
	if c.MinAge == 0 {
		c.MinAge = d.Criteria.MinAge
	}
	if c.MaxAge == 0 {
		c.MaxAge = d.Criteria.MaxAge
	}
	if c.MaxBenefit == "" {
		c.MaxBenefit = d.MaxBenefit.String()
	}
	if c.Currency == "" {
		c.Currency = d.Currency
	}
	if c.Frequency == "" {
		c.Frequency = d.Frequency
	}
}

func (c *EligibilityConfig) loadEnv() {
	if v := os.Getenv(EnvEligibilityIncomeThreshold); v != "" {
		c.IncomeThreshold = v
	}
	if v := os.Getenv(EnvEligibilityAssetLimit); v != "" {
		c.AssetLimit = v
	}
	if v := os.Getenv(EnvEligibilityMinAge); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MinAge = n
		}
	}
	if v := os.Getenv(EnvEligibilityMaxAge); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxAge = n
		}
	}
	if v := os.Getenv(EnvEligibilityMaxBenefit); v != "" {
		c.MaxBenefit = v
	}
	if v := os.Getenv(EnvEligibilityCurrency); v != "" {
		c.Currency = v
	}
	if v := os.Getenv(EnvEligibilityFrequency); v != "" {
		c.Frequency = v
	}
}

func (c *EligibilityConfig) validate() error {
	amounts := map[string]string{
		"income_threshold": c.IncomeThreshold,
		"asset_limit":      c.AssetLimit,
		"max_benefit":      c.MaxBenefit,
	}
	for name, v := range amounts {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.MinAge < 0 || c.MaxAge < c.MinAge {
		return fmt.Errorf("invalid age range: %d-%d", c.MinAge, c.MaxAge)
	}
	return nil
}
