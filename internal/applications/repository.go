package applications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/relief/internal/documents"
	"github.com/JaimeStill/relief/internal/status"
	"github.com/JaimeStill/relief/pkg/pagination"
	"github.com/JaimeStill/relief/pkg/query"
	"github.com/JaimeStill/relief/pkg/repository"
)

// activeOwnerIndex is the partial unique index enforcing one active
// application per owner.
const activeOwnerIndex = "applications_active_owner_idx"

// Options tunes timing behaviour of the application system.
type Options struct {
	// RetryAfter is the polling hint returned while an application is processing.
	RetryAfter time.Duration
	// ProcessingLease is how long a pipeline run owns an application before
	// a forced retry may take it over.
	ProcessingLease time.Duration
	// MaxUploadSize bounds multipart document submissions.
	MaxUploadSize int64
}

type repo struct {
	db         *sql.DB
	docs       documents.System
	logger     *slog.Logger
	pagination pagination.Config
	opts       Options
	now        func() time.Time
}

// New creates an application repository implementing the System interface.
func New(
	db *sql.DB,
	docs documents.System,
	logger *slog.Logger,
	pagination pagination.Config,
	opts Options,
) System {
	return &repo{
		db:         db,
		docs:       docs,
		logger:     logger.With("system", "applications"),
		pagination: pagination,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination, r.opts.MaxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Application], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "OwnerID")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanApplication)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID, owner string) (*Application, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	a, err := repository.QueryOne(ctx, r.db, q, args, scanApplication)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrConflict)
	}
	if owner != "" && a.OwnerID != owner {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *repo) Active(ctx context.Context, owner string) (*Application, error) {
	if owner == "" {
		return nil, ErrUnauthorized
	}
	a, err := r.active(ctx, r.db, owner)
	if err != nil {
		return nil, repository.MapError(err, ErrNoActive, ErrConflict)
	}
	return a, nil
}

func (r *repo) Start(ctx context.Context, owner string, form FormData) (*Application, error) {
	if owner == "" {
		return nil, ErrUnauthorized
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}

	formJSON, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("encode form data: %w", err)
	}

	insertQ := `
		INSERT INTO applications AS a (id, owner_id, form_data, status, progress, submitted_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING ` + projection.Columns()

	app, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Application, error) {
		existing, err := r.active(ctx, tx, owner)
		if err == nil {
			return Application{}, &ActiveApplicationError{ExistingID: existing.ID}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return Application{}, err
		}

		args := []any{uuid.New(), owner, formJSON, string(status.Draft), status.Draft.Progress()}
		a, err := repository.QueryOne(ctx, tx, insertQ, args, scanApplication)
		if err != nil {
			return Application{}, err
		}

		err = r.Transition(ctx, tx, &a, status.SubmitForm, Step{
			Name:    "form_submission",
			Status:  StepCompleted,
			Message: "application form submitted",
		})
		return a, err
	})

	if err != nil {
		err = ActiveConflict(err, func() (*Application, error) {
			return r.active(ctx, r.db, owner)
		})
		return nil, r.mapError(err)
	}

	r.logger.InfoContext(ctx, "application started", "id", app.ID, "owner", owner)
	return &app, nil
}

func (r *repo) SubmitDocuments(
	ctx context.Context,
	id uuid.UUID,
	owner string,
	cmds []documents.CreateCommand,
) (*Application, error) {
	current, err := r.Find(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if _, err := status.Next(current.Status, status.UploadDocuments); err != nil {
		return nil, err
	}

	staged, err := r.docs.Stage(ctx, id, cmds)
	if err != nil {
		return nil, err
	}

	app, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Application, error) {
		a, err := r.lockOwned(ctx, tx, id, owner)
		if err != nil {
			return Application{}, err
		}

		if _, err := r.docs.Insert(ctx, tx, staged); err != nil {
			return Application{}, err
		}

		err = r.Transition(ctx, tx, a, status.UploadDocuments, Step{
			Name:    "document_upload",
			Status:  StepCompleted,
			Message: fmt.Sprintf("%d documents uploaded", len(staged)),
		})
		return *a, err
	})

	if err != nil {
		r.docs.Unstage(ctx, staged)
		return nil, r.mapError(err)
	}

	r.logger.InfoContext(ctx, "documents submitted", "id", id, "count", len(staged))
	return &app, nil
}

func (r *repo) BeginProcessing(ctx context.Context, id uuid.UUID, owner string, force bool) (*Application, error) {
	app, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Application, error) {
		a, err := r.lockOwned(ctx, tx, id, owner)
		if err != nil {
			return Application{}, err
		}

		adm, err := Admit(a, force, r.opts.ProcessingLease, r.now())
		if err != nil {
			return Application{}, err
		}

		if adm.Recover {
			if err := r.Transition(ctx, tx, a, status.Fail, Step{
				Name:    "processing_recovery",
				Status:  StepFailed,
				Message: "processing lease expired; recovering",
			}); err != nil {
				return Application{}, err
			}
		}

		err = r.Transition(ctx, tx, a, adm.Event, adm.Step)
		return *a, err
	})

	if err != nil {
		return nil, r.mapError(err)
	}

	r.logger.InfoContext(ctx, "processing started", "id", id, "state", app.Status, "force", force)
	return &app, nil
}

func (r *repo) Reset(ctx context.Context, id uuid.UUID, owner string) (*Application, error) {
	resetQ := `
		UPDATE applications AS a
		SET monthly_income = NULL, account_balance = NULL, eligibility_score = NULL,
			decision_id = NULL, decision_outcome = NULL, decision_confidence = NULL,
			decision_reasoning = NULL, benefit_amount = NULL, benefit_currency = NULL,
			effective_date = NULL, review_date = NULL, appeal_deadline = NULL,
			decided_at = NULL, processing_started_at = NULL, run_id = NULL,
			updated_at = NOW()
		WHERE a.id = $1
		RETURNING ` + projection.Columns()

	app, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Application, error) {
		a, err := r.lockOwned(ctx, tx, id, owner)
		if err != nil {
			return Application{}, err
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM documents WHERE application_id = $1", id,
		).Scan(&count); err != nil {
			return Application{}, fmt.Errorf("count documents: %w", err)
		}

		ev := status.ResetForm
		if count > 0 {
			ev = status.ResetDocuments
		}

		if err := r.Transition(ctx, tx, a, ev, Step{
			Name:    "reset",
			Status:  StepCompleted,
			Message: "application returned to editable state",
		}); err != nil {
			return Application{}, err
		}

		if err := r.docs.ClearExtraction(ctx, tx, id); err != nil {
			return Application{}, err
		}

		return repository.QueryOne(ctx, tx, resetQ, []any{id}, scanApplication)
	})

	if err != nil {
		return nil, r.mapError(err)
	}

	r.logger.InfoContext(ctx, "application reset", "id", id, "state", app.Status)
	return &app, nil
}

func (r *repo) Cancel(ctx context.Context, id uuid.UUID, owner string) (*Application, error) {
	app, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Application, error) {
		a, err := r.lockOwned(ctx, tx, id, owner)
		if err != nil {
			return Application{}, err
		}
		err = r.Transition(ctx, tx, a, status.Cancel, Step{
			Name:    "cancellation",
			Status:  StepCompleted,
			Message: "application cancelled by owner",
		})
		return *a, err
	})

	if err != nil {
		return nil, r.mapError(err)
	}

	r.logger.InfoContext(ctx, "application cancelled", "id", id)
	return &app, nil
}

func (r *repo) DiscardActive(ctx context.Context, owner string) (uuid.UUID, error) {
	if owner == "" {
		return uuid.Nil, ErrUnauthorized
	}

	id, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (uuid.UUID, error) {
		active, err := r.active(ctx, tx, owner)
		if err != nil {
			return uuid.Nil, repository.MapError(err, ErrNoActive, ErrConflict)
		}

		a, err := r.Lock(ctx, tx, active.ID)
		if err != nil {
			return uuid.Nil, err
		}
		if _, err := status.Next(a.Status, status.Discard); err != nil {
			return uuid.Nil, err
		}

		if err := repository.ExecExpectOne(ctx, tx, "DELETE FROM applications WHERE id = $1", a.ID); err != nil {
			return uuid.Nil, err
		}
		return a.ID, nil
	})

	if err != nil {
		return uuid.Nil, r.mapError(err)
	}

	if err := r.docs.PurgeApplication(ctx, id); err != nil {
		r.logger.Warn("blob purge failed after discard", "id", id, "error", err)
	}

	r.logger.InfoContext(ctx, "application discarded", "id", id, "owner", owner, "state", status.Discarded)
	return id, nil
}

func (r *repo) RequireReview(ctx context.Context, id uuid.UUID, cmd ReviewCommand) (*Application, error) {
	if cmd.Actor == "" {
		return nil, ErrUnauthorized
	}

	app, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Application, error) {
		a, err := r.Lock(ctx, tx, id)
		if err != nil {
			return Application{}, err
		}
		err = r.Transition(ctx, tx, a, status.RequireReview, Step{
			Name:    "manual_review",
			Status:  StepPending,
			Message: fmt.Sprintf("flagged by %s: %s", cmd.Actor, cmd.Reason),
		})
		return *a, err
	})

	if err != nil {
		return nil, r.mapError(err)
	}

	r.logger.InfoContext(ctx, "manual review required", "id", id, "actor", cmd.Actor, "reason", cmd.Reason)
	return &app, nil
}

func (r *repo) Status(ctx context.Context, id uuid.UUID, owner string) (*StatusView, error) {
	app, err := r.Find(ctx, id, owner)
	if err != nil {
		return nil, err
	}

	q, args := query.
		NewBuilder(entryProjection, query.SortField{Field: "Seq"}).
		WhereEquals("ApplicationID", id).
		Build()

	steps, err := repository.QueryMany(ctx, r.db, q, args, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query workflow steps: %w", err)
	}

	view := &StatusView{
		ApplicationID:  app.ID,
		State:          app.Status,
		Progress:       app.Progress,
		Processing:     app.Status.Processing(),
		AllowedActions: status.Allowed(app.Status),
		Steps:          steps,
	}
	if view.Processing {
		view.RetryAfterSeconds = r.retryAfterSeconds()
	}
	return view, nil
}

func (r *repo) Result(ctx context.Context, id uuid.UUID, owner string) (*ResultView, error) {
	app, err := r.Find(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	return r.result(app), nil
}

func (r *repo) result(app *Application) *ResultView {
	view := &ResultView{
		ApplicationID:    app.ID,
		State:            app.Status,
		EligibilityScore: app.EligibilityScore,
		MonthlyIncome:    app.MonthlyIncome,
		AccountBalance:   app.AccountBalance,
	}

	switch {
	case app.Status.Decided() && app.Decision != nil:
		view.Status = ResultDecided
		view.Decision = app.Decision
	case app.Status.Closed():
		view.Status = ResultClosed
		view.Message = "application was withdrawn"
	default:
		view.Status = ResultProcessing
		view.RetryAfterSeconds = r.retryAfterSeconds()
		view.Message = fmt.Sprintf("still processing, retry in %d seconds", view.RetryAfterSeconds)
	}
	return view
}

func (r *repo) Documents(ctx context.Context, id uuid.UUID, owner string) ([]documents.Document, error) {
	if _, err := r.Find(ctx, id, owner); err != nil {
		return nil, err
	}
	return r.docs.ListByApplication(ctx, id)
}

func (r *repo) Advance(ctx context.Context, id, run uuid.UUID, ev status.Event, step Step) (*Application, error) {
	app, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Application, error) {
		a, err := r.Lock(ctx, tx, id)
		if err != nil {
			return Application{}, err
		}
		if err := a.CheckRun(run); err != nil {
			return Application{}, err
		}
		err = r.Transition(ctx, tx, a, ev, step)
		return *a, err
	})
	if err != nil {
		return nil, r.mapError(err)
	}
	return &app, nil
}

func (r *repo) Fail(ctx context.Context, id, run uuid.UUID, step Step) (*Application, error) {
	step.Status = StepFailed
	app, err := r.Advance(ctx, id, run, status.Fail, step)
	if err != nil {
		return nil, err
	}
	r.logger.WarnContext(ctx, "processing failed", "id", id, "step", step.Name, "message", step.Message)
	return app, nil
}

func (r *repo) RecordFinancials(ctx context.Context, id, run uuid.UUID, income, balance decimal.NullDecimal) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		a, err := r.Lock(ctx, tx, id)
		if err != nil {
			return struct{}{}, err
		}
		if err := a.CheckRun(run); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, repository.ExecExpectOne(ctx, tx, `
			UPDATE applications
			SET monthly_income = $2, account_balance = $3, updated_at = NOW()
			WHERE id = $1`,
			id, income, balance,
		)
	})
	return r.mapError(err)
}

func (r *repo) Lock(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*Application, error) {
	q, args := query.NewBuilder(projection).BuildSingleForUpdate("ID", id)

	a, err := repository.QueryOne(ctx, tx, q, args, scanApplication)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrConflict)
	}
	return &a, nil
}

func (r *repo) Transition(ctx context.Context, tx *sql.Tx, app *Application, ev status.Event, step Step) error {
	now := r.now()
	c, err := Plan(app, ev, now)
	if err != nil {
		return err
	}

	err = repository.ExecExpectOne(ctx, tx, `
		UPDATE applications
		SET status = $3, progress = $4, version = version + 1, retry_count = $5,
			processing_started_at = $6, processed_at = $7, run_id = $8, updated_at = $9
		WHERE id = $1 AND version = $2`,
		app.ID, app.Version, string(c.Status), c.Progress, c.RetryCount,
		c.ProcessingStartedAt, c.ProcessedAt, c.RunID, now,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: application %s modified concurrently", ErrConflict, app.ID)
		}
		return err
	}

	if step.Status == "" {
		step.Status = StepCompleted
	}

	var elapsed *int64
	if step.ProcessingTime > 0 {
		ms := step.ProcessingTime.Milliseconds()
		elapsed = &ms
	}

	previous := app.Status
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO workflow_states(
			id, application_id, current_state, previous_state, step_name,
			step_status, message, processing_time_ms, confidence, retry_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New(), app.ID, string(c.Status), string(previous), step.Name,
		string(step.Status), step.Message, elapsed, step.Confidence, c.RetryCount,
	); err != nil {
		return fmt.Errorf("append workflow state: %w", err)
	}

	c.apply(app, now)

	r.logger.DebugContext(ctx, "transition",
		"id", app.ID,
		"event", ev,
		"from", previous,
		"to", c.Status,
		"progress", c.Progress,
	)
	return nil
}

func (r *repo) Project(ctx context.Context, tx *sql.Tx, id uuid.UUID, score *int, d DecisionProjection) error {
	err := repository.ExecExpectOne(ctx, tx, `
		UPDATE applications
		SET eligibility_score = $2, decision_id = $3, decision_outcome = $4,
			decision_confidence = $5, decision_reasoning = $6, benefit_amount = $7,
			benefit_currency = $8, effective_date = $9, review_date = $10,
			appeal_deadline = $11, decided_at = $12, updated_at = NOW()
		WHERE id = $1`,
		id, score, d.DecisionID, d.Outcome, d.Confidence, d.Reasoning,
		d.BenefitAmount, nullString(d.Currency), d.EffectiveDate, d.ReviewDate,
		d.AppealDeadline, d.DecidedAt,
	)
	return repository.MapError(err, ErrNotFound, ErrConflict)
}

func (r *repo) active(ctx context.Context, q repository.Querier, owner string) (*Application, error) {
	sqlQ, args := query.
		NewBuilder(projection).
		WhereEquals("OwnerID", owner).
		WhereNotIn("Status", terminalArgs()).
		BuildSingleOrNull()

	a, err := repository.QueryOne(ctx, q, sqlQ, args, scanApplication)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) lockOwned(ctx context.Context, tx *sql.Tx, id uuid.UUID, owner string) (*Application, error) {
	a, err := r.Lock(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if owner != "" && a.OwnerID != owner {
		return nil, ErrNotFound
	}
	return a, nil
}

func (r *repo) retryAfterSeconds() int {
	secs := int(r.opts.RetryAfter.Seconds())
	return max(secs, 1)
}

func (r *repo) mapError(err error) error {
	return repository.MapError(err, ErrNotFound, ErrConflict)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
