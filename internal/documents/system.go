package documents

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/JaimeStill/relief/pkg/pagination"
)

// System defines the public contract for document domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Find(ctx context.Context, id uuid.UUID) (*Document, error)
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]Document, error)

	// Stage uploads blobs for an application and returns unsaved documents.
	// Callers persist them with Insert inside their own transaction and call
	// Unstage if that transaction fails.
	Stage(ctx context.Context, applicationID uuid.UUID, cmds []CreateCommand) ([]Document, error)
	Unstage(ctx context.Context, docs []Document)
	Insert(ctx context.Context, tx *sql.Tx, docs []Document) ([]Document, error)

	// Content returns the stored bytes of a document.
	Content(ctx context.Context, doc *Document) ([]byte, error)

	// MarkProcessing and RecordExtraction write only while run owns the
	// parent application; uuid.Nil skips the check. A superseded run gets
	// status.ErrStaleRun from RecordExtraction.
	MarkProcessing(ctx context.Context, applicationID, run uuid.UUID) error
	RecordExtraction(ctx context.Context, id, run uuid.UUID, result Extraction) (*Document, error)
	ClearExtraction(ctx context.Context, tx *sql.Tx, applicationID uuid.UUID) error

	// PurgeApplication removes every blob stored for an application.
	// Rows are removed by the application's cascading delete.
	PurgeApplication(ctx context.Context, applicationID uuid.UUID) error
}
