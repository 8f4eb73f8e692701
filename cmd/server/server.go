package main

import (
	"time"

	"github.com/JaimeStill/relief/internal/config"
	"github.com/JaimeStill/relief/internal/infrastructure"
)

// Server owns the infrastructure, the mounted API module and the HTTP
// listener for one relief process.
type Server struct {
	infra   *infrastructure.Infrastructure
	modules *Modules
	http    *httpServer
	version string
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	modules, err := NewModules(infra, cfg)
	if err != nil {
		return nil, err
	}

	router := buildRouter(infra.Lifecycle)
	modules.Mount(router)

	infra.Logger.Info(
		"relief initialized",
		"env", cfg.Env(),
		"addr", cfg.Server.Addr(),
		"modules", router.Prefixes(),
		"version", cfg.Version,
		"reasoning", cfg.Pipeline.Reasoning,
		"auto_decide", cfg.Pipeline.DecideAutomatically(),
	)

	return &Server{
		infra:   infra,
		modules: modules,
		http:    newHTTPServer(&cfg.Server, router, infra.Logger),
		version: cfg.Version,
	}, nil
}

// Start brings up infrastructure, then the listener. Readiness flips once
// every startup hook has returned.
func (s *Server) Start() error {
	if err := s.infra.Start(); err != nil {
		return err
	}

	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		s.infra.Lifecycle.Shutdown(s.http.shutdownTimeout)
		return err
	}

	go func() {
		started := time.Now()
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("relief ready", "version", s.version, "startup", time.Since(started))
	}()

	return nil
}

// Shutdown stops intake, drains pipeline workers and closes infrastructure.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown", "timeout", timeout)
	return s.infra.Lifecycle.Shutdown(timeout)
}
