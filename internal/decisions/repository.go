package decisions

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/relief/internal/applications"
	"github.com/JaimeStill/relief/internal/status"
	"github.com/JaimeStill/relief/pkg/events"
	"github.com/JaimeStill/relief/pkg/query"
	"github.com/JaimeStill/relief/pkg/repository"
)

// Event types published after a decision commits.
const (
	EventRecorded   = "decision.recorded"
	EventOverridden = "decision.overridden"
)

const (
	stepDecision = "decision_making"
	stepOutcome  = "decision_outcome"
	stepOverride = "decision_override"
)

type repo struct {
	db     *sql.DB
	apps   applications.System
	events events.Publisher
	policy Policy
	logger *slog.Logger
	now    func() time.Time
}

// New creates the decision system.
func New(db *sql.DB, apps applications.System, publisher events.Publisher, policy Policy, logger *slog.Logger) System {
	return &repo{
		db:     db,
		apps:   apps,
		events: publisher,
		policy: policy,
		logger: logger.With("system", "decisions"),
		now:    time.Now,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) History(ctx context.Context, applicationID uuid.UUID, owner string) ([]Decision, error) {
	if err := r.owned(ctx, applicationID, owner); err != nil {
		return nil, err
	}

	q, args := query.
		NewBuilder(projection, newestFirst).
		WhereEquals("ApplicationID", applicationID).
		Build()

	return repository.QueryMany(ctx, r.db, q, args, scanDecision)
}

func (r *repo) Latest(ctx context.Context, applicationID uuid.UUID, owner string) (*Decision, error) {
	if err := r.owned(ctx, applicationID, owner); err != nil {
		return nil, err
	}

	d, err := r.latest(ctx, r.db, applicationID)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, applications.ErrConflict)
	}
	return d, nil
}

func (r *repo) Record(ctx context.Context, d Decision) (*Decision, error) {
	saved, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Decision, error) {
		app, err := r.apps.Lock(ctx, tx, d.ApplicationID)
		if err != nil {
			return Decision{}, err
		}
		if err := app.CheckRun(d.RunID); err != nil {
			return Decision{}, err
		}

		if app.Status == status.AnalysisCompleted {
			begin := applications.Step{Name: stepDecision, Status: applications.StepInProgress}
			if err := r.apps.Transition(ctx, tx, app, status.BeginDecision, begin); err != nil {
				return Decision{}, err
			}
		}

		confidence := d.Confidence
		complete := applications.Step{
			Name:           stepDecision,
			Message:        "reasoning backend: " + string(d.Reasoning.Backend),
			ProcessingTime: time.Duration(d.ProcessingMs) * time.Millisecond,
			Confidence:     &confidence,
		}
		if err := r.apps.Transition(ctx, tx, app, status.CompleteDecision, complete); err != nil {
			return Decision{}, err
		}

		outcome := applications.Step{Name: stepOutcome, Message: string(d.Outcome), Confidence: &confidence}
		if err := r.apps.Transition(ctx, tx, app, d.Outcome.Event(), outcome); err != nil {
			return Decision{}, err
		}

		return r.insert(ctx, tx, d)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, applications.ErrConflict)
	}

	r.logger.InfoContext(ctx, "decision recorded",
		"application_id", saved.ApplicationID,
		"outcome", saved.Outcome,
		"score", saved.Score,
		"confidence", saved.Confidence,
		"backend", saved.Reasoning.Backend,
	)
	r.publish(ctx, EventRecorded, saved)
	return &saved, nil
}

func (r *repo) Override(ctx context.Context, applicationID uuid.UUID, cmd OverrideCommand) (*Decision, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	saved, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Decision, error) {
		app, err := r.apps.Lock(ctx, tx, applicationID)
		if err != nil {
			return Decision{}, err
		}
		if err := cmd.Authorize(app.OwnerID); err != nil {
			return Decision{}, err
		}

		previous, err := r.latest(ctx, tx, applicationID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return Decision{}, err
		}

		d := Override(previous, applicationID, cmd, r.policy, r.now())

		step := applications.Step{
			Name:    stepOverride,
			Message: d.Reasoning.Summary(),
		}
		if err := r.apps.Transition(ctx, tx, app, cmd.Outcome.OverrideEvent(), step); err != nil {
			return Decision{}, err
		}

		return r.insert(ctx, tx, d)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, applications.ErrConflict)
	}

	r.logger.InfoContext(ctx, "decision overridden",
		"application_id", applicationID,
		"outcome", saved.Outcome,
		"actor", saved.Actor,
	)
	r.publish(ctx, EventOverridden, saved)
	return &saved, nil
}

// owned hides decisions of applications the owner cannot see. An empty
// owner is an unscoped read.
func (r *repo) owned(ctx context.Context, applicationID uuid.UUID, owner string) error {
	if owner == "" {
		return nil
	}
	if _, err := r.apps.Find(ctx, applicationID, owner); err != nil {
		if errors.Is(err, applications.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (r *repo) insert(ctx context.Context, tx *sql.Tx, d Decision) (Decision, error) {
	docs, err := encode(d)
	if err != nil {
		return Decision{}, err
	}

	q := `
		INSERT INTO decisions AS dc (
			id, application_id, kind, outcome, confidence, eligibility_score,
			score_breakdown, factors, reasoning, benefit_amount, benefit_currency,
			benefit_frequency, conditions, effective_date, review_date, appeal_deadline,
			actor, reason, previous_id, processing_time_ms, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING ` + projection.Columns()

	args := []any{
		d.ID, d.ApplicationID, string(d.Kind), string(d.Outcome), d.Confidence, d.Score,
		docs.breakdown, docs.factors, docs.reasoning, d.BenefitAmount, nullString(d.Currency),
		nullString(d.Frequency), docs.conditions, d.EffectiveDate, d.ReviewDate, d.AppealDeadline,
		nullString(d.Actor), nullString(d.Reason), d.PreviousID, d.ProcessingMs, d.CreatedAt,
	}

	saved, err := repository.QueryOne(ctx, tx, q, args, scanDecision)
	if err != nil {
		return Decision{}, err
	}

	score := saved.Score
	if err := r.apps.Project(ctx, tx, saved.ApplicationID, &score, saved.Projection()); err != nil {
		return Decision{}, err
	}
	return saved, nil
}

func (r *repo) latest(ctx context.Context, q repository.Querier, applicationID uuid.UUID) (*Decision, error) {
	sqlQ, args := query.
		NewBuilder(projection, newestFirst).
		WhereEquals("ApplicationID", applicationID).
		BuildSingleOrNull()

	d, err := repository.QueryOne(ctx, q, sqlQ, args, scanDecision)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repo) publish(ctx context.Context, eventType string, d Decision) {
	ev := events.Event{
		Type:       eventType,
		Key:        d.ApplicationID.String(),
		OccurredAt: d.CreatedAt,
		Payload: map[string]any{
			"decision_id":    d.ID,
			"application_id": d.ApplicationID,
			"kind":           d.Kind,
			"outcome":        d.Outcome,
			"confidence":     d.Confidence,
			"benefit_amount": d.BenefitAmount,
			"currency":       d.Currency,
		},
	}
	if err := r.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		r.logger.WarnContext(ctx, "publish decision event failed", "type", eventType, "error", err)
	}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
