// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/relief/internal/config"
	"github.com/JaimeStill/relief/internal/infrastructure"
	"github.com/JaimeStill/relief/pkg/auth"
	"github.com/JaimeStill/relief/pkg/middleware"
	"github.com/JaimeStill/relief/pkg/module"
	"github.com/JaimeStill/relief/pkg/routes"
)

// NewModule creates the API module with all domain handlers and middleware,
// and binds the pipeline executor to the infrastructure lifecycle.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)

	var verifier auth.TokenVerifier
	if cfg.Auth.Enabled {
		v, err := auth.NewOIDCVerifier(infra.Lifecycle.Context(), &cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("auth init failed: %w", err)
		}
		verifier = v
	}

	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	groups := registerRoutes(mux, domain)
	runtime.Logger.Info("routes registered", "count", len(routes.Patterns(groups...)))

	domain.Executor.Start(runtime.Lifecycle)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.Recover(runtime.Logger))
	m.Use(auth.Middleware(verifier, &cfg.Auth, runtime.Logger))

	return m, nil
}
