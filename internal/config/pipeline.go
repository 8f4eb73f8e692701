package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/relief/internal/reasoning"
)

const (
	EnvPipelineWorkers          = "RELIEF_PIPELINE_WORKERS"
	EnvPipelineQueueSize        = "RELIEF_PIPELINE_QUEUE_SIZE"
	EnvPipelineDocumentWorkers  = "RELIEF_PIPELINE_DOCUMENT_WORKERS"
	EnvPipelineBatchWorkers     = "RELIEF_PIPELINE_BATCH_WORKERS"
	EnvPipelineDocumentTimeout  = "RELIEF_PIPELINE_DOCUMENT_TIMEOUT"
	EnvPipelineReasoningTimeout = "RELIEF_PIPELINE_REASONING_TIMEOUT"
	EnvPipelineProcessingLease  = "RELIEF_PIPELINE_PROCESSING_LEASE"
	EnvPipelineRetryAfter       = "RELIEF_PIPELINE_RETRY_AFTER"
	EnvPipelineAutoDecide       = "RELIEF_PIPELINE_AUTO_DECIDE"
	EnvPipelineReasoning        = "RELIEF_PIPELINE_REASONING"
	EnvPipelineMaxPages         = "RELIEF_PIPELINE_MAX_PAGES"
	EnvPipelineAgentRPS         = "RELIEF_PIPELINE_AGENT_RPS"
	EnvPipelineAgentBurst       = "RELIEF_PIPELINE_AGENT_BURST"
)

// PipelineConfig tunes the background processing pipeline.
type PipelineConfig struct {
	Workers          int     `toml:"workers"`
	QueueSize        int     `toml:"queue_size"`
	DocumentWorkers  int     `toml:"document_workers"`
	BatchWorkers     int     `toml:"batch_workers"`
	DocumentTimeout  string  `toml:"document_timeout"`
	ReasoningTimeout string  `toml:"reasoning_timeout"`
	ProcessingLease  string  `toml:"processing_lease"`
	RetryAfter       string  `toml:"retry_after"`
	AutoDecide       *bool   `toml:"auto_decide"`
	Reasoning        string  `toml:"reasoning"`
	MaxPages         int     `toml:"max_pages"`
	AgentRPS         float64 `toml:"agent_rps"`
	AgentBurst       int     `toml:"agent_burst"`
}

// DocumentTimeoutDuration returns DocumentTimeout as a time.Duration.
func (c *PipelineConfig) DocumentTimeoutDuration() time.Duration {
	return parseDuration(c.DocumentTimeout)
}

// ReasoningTimeoutDuration returns ReasoningTimeout as a time.Duration.
func (c *PipelineConfig) ReasoningTimeoutDuration() time.Duration {
	return parseDuration(c.ReasoningTimeout)
}

// ProcessingLeaseDuration returns ProcessingLease as a time.Duration.
func (c *PipelineConfig) ProcessingLeaseDuration() time.Duration {
	return parseDuration(c.ProcessingLease)
}

// RetryAfterDuration returns RetryAfter as a time.Duration.
func (c *PipelineConfig) RetryAfterDuration() time.Duration {
	return parseDuration(c.RetryAfter)
}

// DecideAutomatically reports whether the pipeline records a decision
// after analysis without waiting for an explicit decide request.
func (c *PipelineConfig) DecideAutomatically() bool {
	return c.AutoDecide == nil || *c.AutoDecide
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PipelineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.QueueSize != 0 {
		c.QueueSize = overlay.QueueSize
	}
	if overlay.DocumentWorkers != 0 {
		c.DocumentWorkers = overlay.DocumentWorkers
	}
	if overlay.BatchWorkers != 0 {
		c.BatchWorkers = overlay.BatchWorkers
	}
	if overlay.DocumentTimeout != "" {
		c.DocumentTimeout = overlay.DocumentTimeout
	}
	if overlay.ReasoningTimeout != "" {
		c.ReasoningTimeout = overlay.ReasoningTimeout
	}
	if overlay.ProcessingLease != "" {
		c.ProcessingLease = overlay.ProcessingLease
	}
	if overlay.RetryAfter != "" {
		c.RetryAfter = overlay.RetryAfter
	}
	if overlay.AutoDecide != nil {
		c.AutoDecide = overlay.AutoDecide
	}
	if overlay.Reasoning != "" {
		c.Reasoning = overlay.Reasoning
	}
	if overlay.MaxPages != 0 {
		c.MaxPages = overlay.MaxPages
	}
	if overlay.AgentRPS != 0 {
		c.AgentRPS = overlay.AgentRPS
	}
	if overlay.AgentBurst != 0 {
		c.AgentBurst = overlay.AgentBurst
	}
}

func (c *PipelineConfig) loadDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.QueueSize == 0 {
		c.QueueSize = 100
	}
	if c.DocumentWorkers == 0 {
		c.DocumentWorkers = 4
	}
	if c.BatchWorkers == 0 {
		c.BatchWorkers = 4
	}
	if c.DocumentTimeout == "" {
		c.DocumentTimeout = "5m"
	}
	if c.ReasoningTimeout == "" {
		c.ReasoningTimeout = "30s"
	}
	if c.ProcessingLease == "" {
		c.ProcessingLease = "15m"
	}
	if c.RetryAfter == "" {
		c.RetryAfter = "5s"
	}
	if c.Reasoning == "" {
		c.Reasoning = string(reasoning.BackendLLM)
	}
	if c.MaxPages == 0 {
		c.MaxPages = 5
	}
	if c.AgentBurst == 0 {
		c.AgentBurst = 4
	}
}

func (c *PipelineConfig) loadEnv() {
	ints := map[string]*int{
		EnvPipelineWorkers:         &c.Workers,
		EnvPipelineQueueSize:       &c.QueueSize,
		EnvPipelineDocumentWorkers: &c.DocumentWorkers,
		EnvPipelineBatchWorkers:    &c.BatchWorkers,
		EnvPipelineMaxPages:        &c.MaxPages,
		EnvPipelineAgentBurst:      &c.AgentBurst,
	}
	for name, dst := range ints {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	if v := os.Getenv(EnvPipelineDocumentTimeout); v != "" {
		c.DocumentTimeout = v
	}
	if v := os.Getenv(EnvPipelineReasoningTimeout); v != "" {
		c.ReasoningTimeout = v
	}
	if v := os.Getenv(EnvPipelineProcessingLease); v != "" {
		c.ProcessingLease = v
	}
	if v := os.Getenv(EnvPipelineRetryAfter); v != "" {
		c.RetryAfter = v
	}
	if v := os.Getenv(EnvPipelineAutoDecide); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.AutoDecide = &b
		}
	}
	if v := os.Getenv(EnvPipelineReasoning); v != "" {
		c.Reasoning = v
	}
	if v := os.Getenv(EnvPipelineAgentRPS); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.AgentRPS = f
		}
	}
}

func (c *PipelineConfig) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1")
	}
	durations := map[string]string{
		"document_timeout":  c.DocumentTimeout,
		"reasoning_timeout": c.ReasoningTimeout,
		"processing_lease":  c.ProcessingLease,
		"retry_after":       c.RetryAfter,
	}
	for name, v := range durations {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	switch reasoning.Backend(c.Reasoning) {
	case reasoning.BackendLLM, reasoning.BackendRules:
	default:
		return fmt.Errorf("invalid reasoning backend: %q", c.Reasoning)
	}
	if c.AgentRPS < 0 {
		return fmt.Errorf("agent_rps must not be negative")
	}
	return nil
}
