package storage

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrEmptyKey    = errors.New("storage key must not be empty")
	ErrInvalidKey  = errors.New("storage key contains invalid path segment")
	ErrUnavailable = errors.New("blob container unavailable")
)

// KeyError records the operation and key a storage call failed on.
type KeyError struct {
	Op  string
	Key string
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s blob %q: %v", e.Op, e.Key, e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// MapHTTPStatus maps storage errors met while serving stored content.
// Keys are generated server-side, so a rejected key is a server fault.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
