// Package prompts manages instruction overrides for the model calls made
// during document extraction and decision reasoning. Output specifications
// are fixed; only instructions can be overridden, one active per stage.
package prompts

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prompt is a named instruction override for a stage.
type Prompt struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Stage        Stage     `json:"stage"`
	Instructions string    `json:"instructions"`
	Description  *string   `json:"description"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to create a prompt override.
type CreateCommand struct {
	Name         string  `json:"name"`
	Stage        Stage   `json:"stage"`
	Instructions string  `json:"instructions"`
	Description  *string `json:"description"`
}

// Validate rejects blank names, blank instructions and unknown stages.
func (c CreateCommand) Validate() error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Instructions) == "" {
		return ErrEmpty
	}
	if _, err := ParseStage(string(c.Stage)); err != nil {
		return err
	}
	return nil
}

// UpdateCommand carries the data needed to update a prompt override.
type UpdateCommand CreateCommand
