package documents

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/JaimeStill/relief/internal/status"
	"github.com/JaimeStill/relief/pkg/pagination"
	"github.com/JaimeStill/relief/pkg/query"
	"github.com/JaimeStill/relief/pkg/repository"
	"github.com/JaimeStill/relief/pkg/storage"
)

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a document repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "documents"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	docs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	result := pagination.NewPageResult(docs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]Document, error) {
	q, args := query.
		NewBuilder(projection, query.SortField{Field: "UploadedAt"}).
		WhereEquals("ApplicationID", applicationID).
		Build()

	docs, err := repository.QueryMany(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query application documents: %w", err)
	}
	return docs, nil
}

func (r *repo) Stage(ctx context.Context, applicationID uuid.UUID, cmds []CreateCommand) ([]Document, error) {
	if len(cmds) == 0 {
		return nil, ErrNoDocuments
	}

	staged := make([]Document, 0, len(cmds))
	for _, cmd := range cmds {
		if _, err := ParseType(string(cmd.Type)); err != nil {
			r.Unstage(ctx, staged)
			return nil, err
		}

		id := uuid.New()
		key := buildStorageKey(applicationID, id, sanitizeFilename(cmd.Filename))

		if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
			r.Unstage(ctx, staged)
			return nil, fmt.Errorf("upload document blob: %w", err)
		}

		staged = append(staged, Document{
			ID:               id,
			ApplicationID:    applicationID,
			Type:             cmd.Type,
			Filename:         cmd.Filename,
			ContentType:      cmd.ContentType,
			SizeBytes:        int64(len(cmd.Data)),
			PageCount:        cmd.PageCount,
			StorageKey:       key,
			ProcessingStatus: Pending,
		})
	}

	return staged, nil
}

func (r *repo) Unstage(ctx context.Context, docs []Document) {
	for _, d := range docs {
		if err := r.storage.Delete(ctx, d.StorageKey); err != nil {
			r.logger.Warn("compensating blob delete failed", "key", d.StorageKey, "error", err)
		}
	}
}

func (r *repo) Insert(ctx context.Context, tx *sql.Tx, docs []Document) ([]Document, error) {
	q := `
		INSERT INTO documents(id, application_id, document_type, filename, content_type, size_bytes, page_count, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + returning

	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		args := []any{
			d.ID,
			d.ApplicationID,
			d.Type,
			d.Filename,
			d.ContentType,
			d.SizeBytes,
			d.PageCount,
			d.StorageKey,
		}

		saved, err := repository.QueryOne(ctx, tx, q, args, scanDocument)
		if err != nil {
			return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}
		out = append(out, saved)
	}

	r.logger.InfoContext(ctx, "documents registered", "count", len(out))
	return out, nil
}

func (r *repo) Content(ctx context.Context, doc *Document) ([]byte, error) {
	rc, err := r.storage.Download(ctx, doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("download document %s: %w", doc.ID, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", doc.ID, err)
	}
	return data, nil
}

func (r *repo) MarkProcessing(ctx context.Context, applicationID, run uuid.UUID) error {
	_, err := repository.Exec(ctx, r.db, `
		UPDATE documents
		SET processing_status = $2, error_message = NULL, updated_at = NOW()
		WHERE application_id = $1 AND `+runGuard(3),
		applicationID, string(Processing), runArg(run),
	)
	if err != nil {
		return fmt.Errorf("mark documents processing: %w", err)
	}
	return nil
}

func (r *repo) RecordExtraction(ctx context.Context, id, run uuid.UUID, result Extraction) (*Document, error) {
	args, err := extractionArgs(result)
	if err != nil {
		return nil, err
	}

	q := `
		UPDATE documents
		SET ocr_text = $2, ocr_confidence = $3, ocr_processing_ms = $4,
			vision_fields = $5, vision_confidence = $6, vision_processing_ms = $7,
			processing_status = $8, error_message = $9,
			extracted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND ` + runGuard(10) + `
		RETURNING ` + returning

	args = append([]any{id}, args...)
	args = append(args, runArg(run))

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDocument)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) && run != uuid.Nil {
			return nil, fmt.Errorf("%w: document %s", status.ErrStaleRun, id)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.InfoContext(ctx, "extraction recorded",
		"id", d.ID,
		"document_type", d.Type,
		"processing_status", d.ProcessingStatus,
	)
	return &d, nil
}

func (r *repo) ClearExtraction(ctx context.Context, tx *sql.Tx, applicationID uuid.UUID) error {
	_, err := repository.Exec(ctx, tx, `
		UPDATE documents
		SET ocr_text = NULL, ocr_confidence = NULL, ocr_processing_ms = NULL,
			vision_fields = NULL, vision_confidence = NULL, vision_processing_ms = NULL,
			processing_status = $2, error_message = NULL, extracted_at = NULL,
			updated_at = NOW()
		WHERE application_id = $1`,
		applicationID, string(Pending),
	)
	if err != nil {
		return fmt.Errorf("clear extraction results: %w", err)
	}
	return nil
}

func (r *repo) PurgeApplication(ctx context.Context, applicationID uuid.UUID) error {
	n, err := r.storage.DeletePrefix(ctx, applicationPrefix(applicationID))
	if err != nil {
		return fmt.Errorf("purge application blobs: %w", err)
	}
	r.logger.InfoContext(ctx, "application blobs purged", "application_id", applicationID, "count", n)
	return nil
}

// runGuard restricts a documents update to the pipeline run that owns the
// parent application. A NULL run skips the check.
func runGuard(n int) string {
	return fmt.Sprintf(`($%[1]d::uuid IS NULL OR EXISTS (
		SELECT 1 FROM applications a
		WHERE a.id = documents.application_id AND a.run_id = $%[1]d))`, n)
}

func runArg(run uuid.UUID) *uuid.UUID {
	if run == uuid.Nil {
		return nil
	}
	return &run
}

func applicationPrefix(applicationID uuid.UUID) string {
	return fmt.Sprintf("applications/%s/", applicationID)
}

func buildStorageKey(applicationID, id uuid.UUID, filename string) string {
	return fmt.Sprintf("%s%s/%s", applicationPrefix(applicationID), id, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" || name == "/" {
		name = "document"
	}
	return url.PathEscape(name)
}
