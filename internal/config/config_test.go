package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JaimeStill/relief/internal/config"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 8080
read_timeout = "1m"
write_timeout = "15m"
shutdown_timeout = "30s"

[database]
host = "localhost"
port = 5432
name = "relief"
user = "relief"
password = "relief"
ssl_mode = "disable"
max_open_conns = 25
max_idle_conns = 5
conn_max_lifetime = "15m"
conn_timeout = "5s"

[storage]
container_name = "applications"
connection_string = "DefaultEndpointsProtocol=http;AccountName=reliefstore;AccountKey=key;BlobEndpoint=http://127.0.0.1:10000/reliefstore;"

[api]
base_path = "/api"

[api.cors]
enabled = false

[api.pagination]
default_page_size = 25
max_page_size = 50

[eligibility]
income_threshold = "6000"
max_benefit = "2500.50"

[pipeline]
workers = 2
auto_decide = false
reasoning = "rules"

[events]
brokers = ["localhost:9092"]
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"

[pipeline]
workers = 8
`

// minimalConfig provides the minimum fields required for validation to pass.
const minimalConfig = `
[database]
name = "relief"
user = "relief"

[storage]
connection_string = "conn"
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func load(t *testing.T, content string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, content)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return cfg
}

func TestLoad(t *testing.T) {
	cfg := load(t, baseConfig)

	if cfg.Server.Port != 8080 {
		t.Errorf("server port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("db host: got %s, want localhost", cfg.Database.Host)
	}
	if cfg.Storage.ContainerName != "applications" {
		t.Errorf("storage container: got %s, want applications", cfg.Storage.ContainerName)
	}
	if cfg.API.Pagination.DefaultPageSize != 25 {
		t.Errorf("pagination default_page_size: got %d, want 25", cfg.API.Pagination.DefaultPageSize)
	}
	if cfg.Pipeline.Workers != 2 {
		t.Errorf("pipeline workers: got %d, want 2", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.DecideAutomatically() {
		t.Error("auto_decide = false was not honored")
	}
	if !cfg.Events.Enabled() {
		t.Error("events should be enabled with a broker configured")
	}
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	writeConfig(t, dir, "config.staging.toml", overlayConfig)
	chdir(t, dir)

	t.Setenv(config.EnvReliefEnv, "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090 (from overlay)", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost (from overlay)", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("db port: got %d, want 5432 (from base)", cfg.Database.Port)
	}
	if cfg.Pipeline.Workers != 8 {
		t.Errorf("pipeline workers: got %d, want 8 (from overlay)", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.Reasoning != "rules" {
		t.Errorf("pipeline reasoning: got %s, want rules (from base)", cfg.Pipeline.Reasoning)
	}
}

func TestLoadEnvVarOverrides(t *testing.T) {
	t.Setenv(config.EnvReliefVersion, "2.0.0")
	t.Setenv(config.EnvServerPort, "3000")
	t.Setenv(config.EnvPipelineAutoDecide, "true")
	t.Setenv(config.EnvPipelineQueueSize, "7")
	t.Setenv(config.EnvEligibilityCurrency, "USD")

	cfg := load(t, baseConfig)

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
	if !cfg.Pipeline.DecideAutomatically() {
		t.Error("auto decide env override not applied")
	}
	if cfg.Pipeline.QueueSize != 7 {
		t.Errorf("queue size: got %d, want 7", cfg.Pipeline.QueueSize)
	}
	if cfg.Eligibility.Currency != "USD" {
		t.Errorf("currency: got %s, want USD", cfg.Eligibility.Currency)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	t.Setenv("RELIEF_DB_NAME", "testdb")
	t.Setenv("RELIEF_DB_USER", "testuser")
	t.Setenv("RELIEF_STORAGE_CONNECTION_STRING", "conn")
	t.Setenv("RELIEF_EVENTS_BROKERS", "a:9092, b:9092")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load without config.toml failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port default: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Name != "testdb" {
		t.Errorf("db name from env: got %s, want testdb", cfg.Database.Name)
	}
	if len(cfg.Events.Brokers) != 2 || cfg.Events.Brokers[1] != "b:9092" {
		t.Errorf("brokers from env: got %v", cfg.Events.Brokers)
	}
}

func TestLoadDatabaseIgnoresOtherSections(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, `
[database]
name = "relief"
user = "migrator"

[storage]
container_name = "NOT VALID"
`)
	chdir(t, dir)

	t.Setenv("RELIEF_DB_HOST", "db.internal")

	db, err := config.LoadDatabase()
	if err != nil {
		t.Fatalf("LoadDatabase() error = %v", err)
	}
	if !strings.HasPrefix(db.URL(), "postgres://migrator:@db.internal:5432/relief?") {
		t.Errorf("URL() = %q", db.URL())
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, `[server`)
	chdir(t, dir)

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestEnv(t *testing.T) {
	cfg := load(t, baseConfig)
	if cfg.Env() != "local" {
		t.Errorf("env: got %s, want local", cfg.Env())
	}

	t.Setenv(config.EnvReliefEnv, "production")
	if cfg.Env() != "production" {
		t.Errorf("env: got %s, want production", cfg.Env())
	}
}

func TestDurations(t *testing.T) {
	cfg := load(t, baseConfig)

	if d := cfg.ShutdownTimeoutDuration(); d != 30*time.Second {
		t.Errorf("shutdown timeout: got %v, want 30s", d)
	}
	if addr := cfg.Server.Addr(); addr != "0.0.0.0:8080" {
		t.Errorf("addr: got %s, want 0.0.0.0:8080", addr)
	}
	if d := cfg.Server.ReadHeaderTimeoutDuration(); d != 10*time.Second {
		t.Errorf("read header timeout default: got %v, want 10s", d)
	}
	if d := cfg.Server.WriteTimeoutDuration(); d != 15*time.Minute {
		t.Errorf("write timeout: got %v, want 15m", d)
	}
	if d := cfg.Pipeline.DocumentTimeoutDuration(); d != 5*time.Minute {
		t.Errorf("document timeout: got %v, want 5m", d)
	}
	if d := cfg.Pipeline.ProcessingLeaseDuration(); d != 15*time.Minute {
		t.Errorf("processing lease: got %v, want 15m", d)
	}
	if d := cfg.Pipeline.RetryAfterDuration(); d != 5*time.Second {
		t.Errorf("retry after: got %v, want 5s", d)
	}
}

func TestDefaults(t *testing.T) {
	cfg := load(t, minimalConfig)

	if cfg.API.Pagination.DefaultPageSize != 20 {
		t.Errorf("pagination default_page_size: got %d, want 20", cfg.API.Pagination.DefaultPageSize)
	}
	if cfg.API.MaxUploadSizeBytes() != 50*1024*1024 {
		t.Errorf("max upload: got %d", cfg.API.MaxUploadSizeBytes())
	}
	if !cfg.Pipeline.DecideAutomatically() {
		t.Error("auto decide should default to true")
	}
	if cfg.Pipeline.Reasoning != "llm" {
		t.Errorf("reasoning: got %s, want llm", cfg.Pipeline.Reasoning)
	}
	if cfg.Events.Enabled() {
		t.Error("events should be disabled without brokers")
	}
	if cfg.Tracing.Enabled {
		t.Error("tracing should be disabled by default")
	}
	if cfg.Auth.OwnerHeader != "X-Owner-ID" {
		t.Errorf("owner header: got %s", cfg.Auth.OwnerHeader)
	}
}

func TestEligibilityPolicy(t *testing.T) {
	cfg := load(t, baseConfig)
	p := cfg.Eligibility.Policy()

	if !p.Criteria.IncomeThreshold.Equal(decimal.NewFromInt(6000)) {
		t.Errorf("income threshold: got %s", p.Criteria.IncomeThreshold)
	}
	if !p.Criteria.AssetLimit.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("asset limit default: got %s", p.Criteria.AssetLimit)
	}
	if !p.MaxBenefit.Equal(decimal.RequireFromString("2500.50")) {
		t.Errorf("max benefit: got %s", p.MaxBenefit)
	}
	if p.Currency != "AED" || p.Criteria.MinAge != 18 || p.Criteria.MaxAge != 65 {
		t.Errorf("policy defaults: %+v", p)
	}
}

func TestMaxUploadSizeBytes(t *testing.T) {
	tests := []struct {
		name string
		size string
		want int64
	}{
		{"valid 50MB", "50MB", 50 * 1024 * 1024},
		{"valid 1GB", "1GB", 1024 * 1024 * 1024},
		{"invalid falls back to 50MB", "bad", 50 * 1024 * 1024},
		{"empty falls back to 50MB", "", 50 * 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.APIConfig{MaxUploadSize: tt.size}
			if got := cfg.MaxUploadSizeBytes(); got != tt.want {
				t.Errorf("MaxUploadSizeBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{"invalid port", "[server]\nport = 99999\n", "invalid port"},
		{"invalid read_timeout", "[server]\nread_timeout = \"bad\"\n", "invalid read_timeout"},
		{"negative threshold", "[eligibility]\nincome_threshold = \"-1\"\n", "income_threshold must not be negative"},
		{"bad amount", "[eligibility]\nmax_benefit = \"lots\"\n", "invalid max_benefit"},
		{"inverted ages", "[eligibility]\nmin_age = 70\nmax_age = 60\n", "invalid age range"},
		{"bad lease", "[pipeline]\nprocessing_lease = \"soon\"\n", "invalid processing_lease"},
		{"unknown backend", "[pipeline]\nreasoning = \"oracle\"\n", "invalid reasoning backend"},
		{"auth without issuer", "[auth]\nenabled = true\n", "issuer_url required"},
		{"bad sample ratio", "[tracing]\nsample_ratio = 2.0\n", "sample_ratio"},
		{"nested base path", "[api]\nbase_path = \"/api/v1\"\n", "invalid base_path"},
		{"upload too large", "[api]\nmax_upload_size = \"4GB\"\n", "max_upload_size must be between"},
		{"upload unparseable", "[api]\nmax_upload_size = \"big\"\n", "invalid max_upload_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, config.BaseConfigFile, minimalConfig+tt.extra)
			chdir(t, dir)

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestServerTimeoutEnvOverride(t *testing.T) {
	t.Setenv(config.EnvServerIdleTimeout, "45s")
	cfg := load(t, baseConfig)

	if d := cfg.Server.IdleTimeoutDuration(); d != 45*time.Second {
		t.Errorf("idle timeout: got %v, want 45s", d)
	}

	t.Setenv(config.EnvServerReadHeaderTimeout, "soon")
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	chdir(t, dir)
	if _, err := config.Load(); err == nil || !strings.Contains(err.Error(), "read_header_timeout") {
		t.Errorf("expected read_header_timeout error, got %v", err)
	}
}

const agentConfig = `
[database]
name = "relief"
user = "relief"

[storage]
connection_string = "conn"

[agent]
name = "relief-agent"

[agent.provider]
name = "ollama"
base_url = "http://localhost:11434"

[agent.model]
name = "llama3.2-vision:11b"
`

func TestAgentTable(t *testing.T) {
	cfg := load(t, agentConfig)

	if cfg.Agent.Name != "relief-agent" {
		t.Errorf("agent name: got %s, want relief-agent", cfg.Agent.Name)
	}
	if cfg.Agent.Provider == nil || cfg.Agent.Provider.BaseURL != "http://localhost:11434" {
		t.Fatalf("provider: got %+v", cfg.Agent.Provider)
	}
	if cfg.Agent.Model == nil || cfg.Agent.Model.Name != "llama3.2-vision:11b" {
		t.Errorf("model: got %+v", cfg.Agent.Model)
	}
}

func TestAgentEnvOverrides(t *testing.T) {
	t.Setenv(config.EnvAgentProviderName, "azure")
	t.Setenv(config.EnvAgentBaseURL, "https://relief.openai.azure.com")
	t.Setenv(config.EnvAgentModelName, "gpt-5-mini")
	t.Setenv(config.EnvAgentToken, "test-token")
	t.Setenv(config.EnvAgentDeployment, "gpt-5-mini")
	t.Setenv(config.EnvAgentAPIVersion, "2024-12-01-preview")

	cfg := load(t, agentConfig)

	if cfg.Agent.Provider.Name != "azure" {
		t.Errorf("provider name: got %s, want azure", cfg.Agent.Provider.Name)
	}
	if cfg.Agent.Model.Name != "gpt-5-mini" {
		t.Errorf("model name: got %s, want gpt-5-mini", cfg.Agent.Model.Name)
	}
	opts := cfg.Agent.Provider.Options
	if opts["token"] != "test-token" || opts["deployment"] != "gpt-5-mini" || opts["api_version"] != "2024-12-01-preview" {
		t.Errorf("options: got %v", opts)
	}
}

func TestAgentAzureRequiresDeployment(t *testing.T) {
	t.Setenv(config.EnvAgentProviderName, "azure")
	t.Setenv(config.EnvAgentBaseURL, "https://relief.openai.azure.com")
	t.Setenv(config.EnvAgentAPIVersion, "2024-12-01-preview")

	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, agentConfig)
	chdir(t, dir)

	_, err := config.Load()
	if err == nil || !strings.Contains(err.Error(), "deployment") {
		t.Errorf("expected deployment error, got %v", err)
	}
}
