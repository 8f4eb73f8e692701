package decisions

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/relief/internal/applications"
	"github.com/JaimeStill/relief/pkg/auth"
)

// Domain errors for decision operations.
var (
	ErrNotFound   = errors.New("decision not found")
	ErrValidation = errors.New("invalid decision")
	// ErrSelfOverride is returned when a reviewer overrides their own application.
	ErrSelfOverride = errors.New("reviewers cannot override their own application")
)

// MapHTTPStatus maps decision domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrSelfOverride), errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	}
	return applications.MapHTTPStatus(err)
}
