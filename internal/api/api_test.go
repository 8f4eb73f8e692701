package api_test

import (
	"testing"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/relief/internal/api"
	"github.com/JaimeStill/relief/internal/config"
	"github.com/JaimeStill/relief/internal/infrastructure"
	"github.com/JaimeStill/relief/pkg/auth"
	"github.com/JaimeStill/relief/pkg/database"
	"github.com/JaimeStill/relief/pkg/events"
	"github.com/JaimeStill/relief/pkg/middleware"
	"github.com/JaimeStill/relief/pkg/pagination"
	"github.com/JaimeStill/relief/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=reliefstore;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/reliefstore;"

func validConfig() *config.Config {
	return &config.Config{
		Agent: gaconfig.AgentConfig{
			Name: "test-agent",
			Provider: &gaconfig.ProviderConfig{
				Name:    "ollama",
				BaseURL: "http://localhost:11434",
				Options: make(map[string]any),
			},
			Model: &gaconfig.ModelConfig{
				Name: "llama3.2-vision:11b",
			},
		},
		Server: config.ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     "1m",
			WriteTimeout:    "15m",
			ShutdownTimeout: "30s",
		},
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "relief",
			User:            "relief",
			Password:        "relief",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			ContainerName:    "applications",
			ConnectionString: azuriteConnString,
		},
		API: config.APIConfig{
			BasePath:      "/api",
			MaxUploadSize: "50MB",
			CORS: middleware.CORSConfig{
				Enabled: false,
			},
			Pagination: pagination.Config{
				DefaultPageSize: 20,
				MaxPageSize:     100,
			},
		},
		Eligibility: config.EligibilityConfig{
			IncomeThreshold: "5000",
			AssetLimit:      "50000",
			MinAge:          18,
			MaxAge:          65,
			MaxBenefit:      "2000",
			Currency:        "AED",
			Frequency:       "monthly",
		},
		Pipeline: config.PipelineConfig{
			Workers:          1,
			QueueSize:        4,
			DocumentWorkers:  2,
			BatchWorkers:     2,
			DocumentTimeout:  "1m",
			ReasoningTimeout: "10s",
			ProcessingLease:  "15m",
			RetryAfter:       "5s",
			Reasoning:        "rules",
			MaxPages:         2,
		},
		Auth: auth.Config{
			OwnerClaim:  "sub",
			OwnerHeader: "X-Owner-ID",
		},
		Events: events.Config{
			Topic:        "relief.decisions",
			MaxAttempts:  3,
			WriteTimeout: "10s",
		},
		ShutdownTimeout: "30s",
		Version:         "0.1.0",
	}
}

func setupInfra(t *testing.T) *infrastructure.Infrastructure {
	t.Helper()
	infra, err := infrastructure.New(validConfig())
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}
	t.Cleanup(func() { infra.Lifecycle.Shutdown(5 * time.Second) })
	return infra
}

func TestNewModule(t *testing.T) {
	cfg := validConfig()
	infra := setupInfra(t)

	m, err := api.NewModule(cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	if m.Prefix() != "/api" {
		t.Errorf("prefix: got %s, want /api", m.Prefix())
	}
}

func TestNewRuntime(t *testing.T) {
	cfg := validConfig()
	infra := setupInfra(t)

	runtime := api.NewRuntime(cfg, infra)

	if runtime.Pagination.DefaultPageSize != 20 {
		t.Errorf("pagination default page size: got %d, want 20", runtime.Pagination.DefaultPageSize)
	}
	if runtime.Logger == nil {
		t.Error("runtime logger is nil")
	}
	if runtime.Database == nil {
		t.Error("runtime database is nil")
	}
	if runtime.Events == nil {
		t.Error("runtime events is nil")
	}
	if runtime.Lifecycle != infra.Lifecycle {
		t.Error("runtime lifecycle differs from infrastructure")
	}
}

func TestNewDomain(t *testing.T) {
	for _, backend := range []string{"rules", "llm"} {
		t.Run(backend, func(t *testing.T) {
			cfg := validConfig()
			cfg.Pipeline.Reasoning = backend
			infra := setupInfra(t)

			domain := api.NewDomain(api.NewRuntime(cfg, infra))

			if domain.Applications == nil || domain.Documents == nil || domain.Prompts == nil {
				t.Error("core systems not created")
			}
			if domain.Decisions == nil || domain.Pipeline == nil || domain.Executor == nil {
				t.Error("decision systems not created")
			}
		})
	}
}
