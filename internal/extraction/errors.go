package extraction

import (
	"errors"
	"fmt"
)

var (
	// ErrExternalService matches any *ServiceError via errors.Is.
	ErrExternalService = errors.New("external service failure")
	ErrRenderFailed    = errors.New("document render failed")
	ErrUnsupported     = errors.New("unsupported document content")
)

// ServiceError wraps a failure of an extraction backend.
type ServiceError struct {
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return target == ErrExternalService
}
