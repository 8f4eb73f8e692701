package api

import (
	"net/http"

	"github.com/JaimeStill/relief/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain) []routes.Group {
	groups := []routes.Group{
		domain.Applications.Handler().Routes(),
		domain.Documents.Handler().Routes(),
		domain.Prompts.Handler().Routes(),
		domain.Decisions.Handler().Routes(),
		domain.Pipeline.Handler().Routes(),
	}
	routes.Register(mux, groups...)
	return groups
}
