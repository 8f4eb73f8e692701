package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/JaimeStill/relief/internal/api"
	"github.com/JaimeStill/relief/internal/config"
	"github.com/JaimeStill/relief/internal/infrastructure"
	"github.com/JaimeStill/relief/pkg/lifecycle"
	"github.com/JaimeStill/relief/pkg/module"
)

const readinessTimeout = 2 * time.Second

// Modules holds the mounted HTTP modules.
type Modules struct {
	API *module.Module
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Modules{API: apiModule}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

func buildRouter(lc *lifecycle.Coordinator) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, probeReport{Status: "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if failures := lc.Check(ctx); len(failures) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, probeReport{Status: "not ready", Failures: failures})
			return
		}
		writeStatus(w, http.StatusOK, probeReport{Status: "ready"})
	})

	return router
}

type probeReport struct {
	Status   string            `json:"status"`
	Failures map[string]string `json:"failures,omitempty"`
}

func writeStatus(w http.ResponseWriter, code int, report probeReport) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(report)
}
