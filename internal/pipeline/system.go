package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/relief/internal/applications"
	"github.com/JaimeStill/relief/internal/decisions"
)

// DecideCommand requests a decision for an analyzed application.
type DecideCommand struct {
	ForceReview bool `json:"force_review"`
}

// BatchCommand requests decisions for several applications.
type BatchCommand struct {
	ApplicationIDs []uuid.UUID `json:"application_ids"`
	ForceReview    bool        `json:"force_review"`
}

// BatchResult reports the outcome of a single application within a batch.
// On success, Decision is populated and Error is empty.
type BatchResult struct {
	ApplicationID uuid.UUID           `json:"application_id"`
	Decision      *decisions.Decision `json:"decision,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// System defines the public contract for pipeline operations.
type System interface {
	Handler() *Handler

	// Process starts or retries processing and returns once the application
	// has entered the pipeline; the work itself runs in the background.
	Process(ctx context.Context, id uuid.UUID, owner string, cmd applications.ProcessCommand) (*applications.Application, error)
	// Decide runs the decision stage for an application in analysis_completed.
	Decide(ctx context.Context, id uuid.UUID, cmd DecideCommand) (*decisions.Decision, error)
	DecideBatch(ctx context.Context, cmd BatchCommand) []BatchResult
}
