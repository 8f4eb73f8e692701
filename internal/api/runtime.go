package api

import (
	"github.com/JaimeStill/relief/internal/config"
	"github.com/JaimeStill/relief/internal/infrastructure"
	"github.com/JaimeStill/relief/pkg/pagination"
)

// Runtime is the infrastructure view handed to API domains, with the
// logger scoped to the module and the full config for domain settings.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Config     *config.Config
}

// NewRuntime scopes infra to the API module. The shared systems are not
// copied, only the handle holding them.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	scoped := *infra
	scoped.Logger = infra.Logger.With("module", "api")

	return &Runtime{
		Infrastructure: &scoped,
		Pagination:     cfg.API.Pagination,
		Config:         cfg,
	}
}
