package documents

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/relief/pkg/storage"
)

// Domain errors for document operations.
var (
	ErrNotFound     = errors.New("document not found")
	ErrDuplicate    = errors.New("document already exists")
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")
	ErrInvalidFile  = errors.New("invalid file")
	ErrInvalidType  = errors.New("unknown document type")
	ErrNoDocuments  = errors.New("at least one document is required")
)

// MapHTTPStatus maps document domain errors to HTTP status codes.
// Errors from the blob store behind a document fall through to storage.MapHTTPStatus.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidFile), errors.Is(err, ErrInvalidType), errors.Is(err, ErrNoDocuments):
		return http.StatusBadRequest
	}
	return storage.MapHTTPStatus(err)
}
