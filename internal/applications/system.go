package applications

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/relief/internal/documents"
	"github.com/JaimeStill/relief/internal/status"
	"github.com/JaimeStill/relief/pkg/pagination"
)

// System defines the public contract for application domain operations.
//
// Owner-scoped operations take the caller's owner id; an empty owner id
// skips the ownership check and is reserved for internal callers.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Application], error)

	Find(ctx context.Context, id uuid.UUID, owner string) (*Application, error)
	Active(ctx context.Context, owner string) (*Application, error)

	Start(ctx context.Context, owner string, form FormData) (*Application, error)
	SubmitDocuments(ctx context.Context, id uuid.UUID, owner string, cmds []documents.CreateCommand) (*Application, error)
	BeginProcessing(ctx context.Context, id uuid.UUID, owner string, force bool) (*Application, error)
	Reset(ctx context.Context, id uuid.UUID, owner string) (*Application, error)
	Cancel(ctx context.Context, id uuid.UUID, owner string) (*Application, error)
	DiscardActive(ctx context.Context, owner string) (uuid.UUID, error)
	RequireReview(ctx context.Context, id uuid.UUID, cmd ReviewCommand) (*Application, error)

	Status(ctx context.Context, id uuid.UUID, owner string) (*StatusView, error)
	Result(ctx context.Context, id uuid.UUID, owner string) (*ResultView, error)
	Documents(ctx context.Context, id uuid.UUID, owner string) ([]documents.Document, error)

	// Advance applies ev in its own transaction and appends step to the log.
	// A non-nil run must match the pipeline run that owns the application,
	// otherwise status.ErrStaleRun is returned and nothing is written.
	Advance(ctx context.Context, id, run uuid.UUID, ev status.Event, step Step) (*Application, error)
	// Fail moves an in-flight application to partial_success with a failed step.
	Fail(ctx context.Context, id, run uuid.UUID, step Step) (*Application, error)
	// RecordFinancials stores the reconciled income and balance.
	RecordFinancials(ctx context.Context, id, run uuid.UUID, income, balance decimal.NullDecimal) error

	// Lock, Transition and Project let other domains fold state changes
	// into their own transaction.
	Lock(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*Application, error)
	Transition(ctx context.Context, tx *sql.Tx, app *Application, ev status.Event, step Step) error
	Project(ctx context.Context, tx *sql.Tx, id uuid.UUID, score *int, decision DecisionProjection) error
}
