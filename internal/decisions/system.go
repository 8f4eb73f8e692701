package decisions

import (
	"context"

	"github.com/google/uuid"
)

// System defines the public contract for decision operations.
type System interface {
	Handler() *Handler

	// History lists every decision for an application, newest first. A
	// non-empty owner restricts the read to that owner's application.
	History(ctx context.Context, applicationID uuid.UUID, owner string) ([]Decision, error)
	Latest(ctx context.Context, applicationID uuid.UUID, owner string) (*Decision, error)

	// Record persists d and applies its outcome to the application in one
	// transaction: making_decision -> decision_completed -> outcome. A
	// decision whose RunID no longer owns the application is rejected with
	// status.ErrStaleRun.
	Record(ctx context.Context, d Decision) (*Decision, error)
	// Override records a reviewer decision superseding the latest one. The
	// actor may not override a decision on their own application.
	Override(ctx context.Context, applicationID uuid.UUID, cmd OverrideCommand) (*Decision, error)
}
