package pipeline

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/relief/internal/decisions"
)

// MapHTTPStatus maps pipeline errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrShuttingDown) {
		return http.StatusServiceUnavailable
	}
	return decisions.MapHTTPStatus(err)
}
