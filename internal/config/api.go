package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/JaimeStill/relief/pkg/formatting"
	"github.com/JaimeStill/relief/pkg/middleware"
	"github.com/JaimeStill/relief/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "RELIEF_CORS_ENABLED",
	Origins:          "RELIEF_CORS_ORIGINS",
	AllowedMethods:   "RELIEF_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "RELIEF_CORS_ALLOWED_HEADERS",
	ExposedHeaders:   "RELIEF_CORS_EXPOSED_HEADERS",
	AllowCredentials: "RELIEF_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "RELIEF_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "RELIEF_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "RELIEF_PAGINATION_MAX_PAGE_SIZE",
}

const (
	EnvAPIBasePath      = "RELIEF_API_BASE_PATH"
	EnvAPIMaxUploadSize = "RELIEF_API_MAX_UPLOAD_SIZE"

	defaultMaxUploadSize = 50 << 20
	uploadSizeCeiling    = 1 << 30
)

// APIConfig holds the API mount point, the multipart upload limit for
// applicant documents, and the nested CORS and pagination settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
}

// MaxUploadSizeBytes returns the parsed upload limit, or 50MB when the
// value is missing or unparseable.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil || size <= 0 {
		return defaultMaxUploadSize
	}
	return size
}

func (c *APIConfig) Finalize() error {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = formatting.FormatBytes(defaultMaxUploadSize, 0)
	}
	if v := os.Getenv(EnvAPIBasePath); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv(EnvAPIMaxUploadSize); v != "" {
		c.MaxUploadSize = v
	}

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *APIConfig) validate() error {
	if !strings.HasPrefix(c.BasePath, "/") || len(c.BasePath) < 2 || strings.Count(c.BasePath, "/") != 1 {
		return fmt.Errorf("invalid base_path %q: must be a single segment such as /api", c.BasePath)
	}
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	if size <= 0 || size > uploadSizeCeiling {
		return fmt.Errorf("max_upload_size must be between 1 B and %s", formatting.FormatBytes(uploadSizeCeiling, 0))
	}
	return nil
}
