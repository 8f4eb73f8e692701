package applications

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/relief/internal/documents"
	"github.com/JaimeStill/relief/internal/status"
	"github.com/JaimeStill/relief/pkg/handlers"
)

// Domain errors for application operations.
var (
	ErrNotFound     = errors.New("application not found")
	ErrConflict     = errors.New("application conflict")
	ErrValidation   = errors.New("invalid application")
	ErrUnauthorized = errors.New("owner identity required")
	ErrNoActive     = errors.New("no active application")
)

// ActiveApplicationError reports that the owner already has an active application.
type ActiveApplicationError struct {
	ExistingID uuid.UUID
}

func (e *ActiveApplicationError) Error() string {
	return fmt.Sprintf("owner already has active application %s", e.ExistingID)
}

func (e *ActiveApplicationError) Is(target error) bool {
	return target == ErrConflict
}

func (e *ActiveApplicationError) Details() map[string]any {
	return map[string]any{"existing_application_id": e.ExistingID}
}

// MapHTTPStatus maps application domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoActive):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict),
		errors.Is(err, status.ErrInvalidState),
		errors.Is(err, status.ErrAlreadyProcessing),
		errors.Is(err, status.ErrStaleRun):
		return http.StatusConflict
	case errors.Is(err, ErrValidation), errors.Is(err, handlers.ErrInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	}
	return documents.MapHTTPStatus(err)
}
