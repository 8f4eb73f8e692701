package config

import (
	"encoding/json"
	"fmt"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/pelletier/go-toml/v2"
)

const (
	EnvAgentName         = "RELIEF_AGENT_NAME"
	EnvAgentProviderName = "RELIEF_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "RELIEF_AGENT_BASE_URL"
	EnvAgentToken        = "RELIEF_AGENT_TOKEN"
	EnvAgentDeployment   = "RELIEF_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "RELIEF_AGENT_API_VERSION"
	EnvAgentAuthType     = "RELIEF_AGENT_AUTH_TYPE"
	EnvAgentModelName    = "RELIEF_AGENT_MODEL_NAME"
)

// Provider options read from the environment, keyed by option name.
var agentOptionEnv = map[string]string{
	"token":       EnvAgentToken,
	"deployment":  EnvAgentDeployment,
	"api_version": EnvAgentAPIVersion,
	"auth_type":   EnvAgentAuthType,
}

// Options each provider cannot run without.
var requiredProviderOptions = map[string][]string{
	"azure": {"deployment", "api_version"},
}

// FinalizeAgent applies the three-phase finalize pattern to the model agent
// used for OCR, vision extraction and LLM reasoning.
func FinalizeAgent(c *gaconfig.AgentConfig) error {
	loadAgentDefaults(c)
	loadAgentEnv(c)
	return validateAgent(c)
}

// decodeAgent reads the [agent] table. go-agents types carry json tags,
// so the table is decoded generically and re-read through encoding/json.
func decodeAgent(data []byte) (gaconfig.AgentConfig, error) {
	var agent gaconfig.AgentConfig
	var raw struct {
		Agent map[string]any `toml:"agent"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return agent, err
	}
	if len(raw.Agent) == 0 {
		return agent, nil
	}

	b, err := json.Marshal(raw.Agent)
	if err != nil {
		return agent, fmt.Errorf("encode agent table: %w", err)
	}
	if err := json.Unmarshal(b, &agent); err != nil {
		return agent, fmt.Errorf("decode agent table: %w", err)
	}
	return agent, nil
}

func loadAgentDefaults(c *gaconfig.AgentConfig) {
	defaults := gaconfig.DefaultAgentConfig()
	defaults.Merge(c)
	*c = defaults

	if c.Provider == nil {
		c.Provider = &gaconfig.ProviderConfig{}
	}
	if c.Provider.Options == nil {
		c.Provider.Options = make(map[string]any)
	}
	if c.Model == nil {
		c.Model = &gaconfig.ModelConfig{}
	}
}

func loadAgentEnv(c *gaconfig.AgentConfig) {
	if v := os.Getenv(EnvAgentName); v != "" {
		c.Name = v
	}
	if v := os.Getenv(EnvAgentProviderName); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv(EnvAgentBaseURL); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv(EnvAgentModelName); v != "" {
		c.Model.Name = v
	}
	for key, env := range agentOptionEnv {
		if v := os.Getenv(env); v != "" {
			c.Provider.Options[key] = v
		}
	}
}

func validateAgent(c *gaconfig.AgentConfig) error {
	if c.Name == "" {
		return fmt.Errorf("name required")
	}
	if c.Provider.Name == "" {
		return fmt.Errorf("provider name required")
	}
	for _, key := range requiredProviderOptions[c.Provider.Name] {
		if v, _ := c.Provider.Options[key].(string); v == "" {
			return fmt.Errorf("provider %s requires option %q", c.Provider.Name, key)
		}
	}
	if c.Provider.Name == "azure" && c.Provider.BaseURL == "" {
		return fmt.Errorf("provider azure requires base_url")
	}
	return nil
}
