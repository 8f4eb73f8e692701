package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/relief/internal/aggregation"
	"github.com/JaimeStill/relief/internal/applications"
	"github.com/JaimeStill/relief/internal/decisions"
	"github.com/JaimeStill/relief/internal/status"
)

// MaxBatch caps the applications accepted by DecideBatch.
const MaxBatch = 50

type pipeline struct {
	rt       *Runtime
	executor *Executor
	batch    int
	logger   *slog.Logger
}

// New creates the pipeline system. Batch decisions run with at most
// batchWorkers concurrent applications.
func New(rt *Runtime, executor *Executor, batchWorkers int) System {
	return &pipeline{
		rt:       rt,
		executor: executor,
		batch:    max(batchWorkers, 1),
		logger:   rt.Logger.With("system", "pipeline"),
	}
}

func (p *pipeline) Handler() *Handler {
	return NewHandler(p, p.logger)
}

func (p *pipeline) Process(ctx context.Context, id uuid.UUID, owner string, cmd applications.ProcessCommand) (*applications.Application, error) {
	app, err := p.rt.Applications.BeginProcessing(ctx, id, owner, cmd.ForceRetry)
	if err != nil {
		return nil, err
	}

	var run uuid.UUID
	if app.RunID != nil {
		run = *app.RunID
	}

	resume := app.Status == status.AnalyzingIncome
	if err := p.executor.Submit(app.ID, run, resume); err != nil {
		step := applications.Step{Name: StepInterrupted, Message: err.Error()}
		if _, ferr := p.rt.Applications.Fail(context.WithoutCancel(ctx), app.ID, run, step); ferr != nil {
			p.logger.ErrorContext(ctx, "release unqueued application", "application_id", app.ID, "error", ferr)
		}
		return nil, err
	}

	p.logger.InfoContext(ctx, "processing queued",
		"application_id", app.ID,
		"run_id", run,
		"resume", resume,
		"force", cmd.ForceRetry,
	)
	return app, nil
}

func (p *pipeline) Decide(ctx context.Context, id uuid.UUID, cmd DecideCommand) (*decisions.Decision, error) {
	app, err := p.rt.Applications.Find(ctx, id, "")
	if err != nil {
		return nil, err
	}
	if _, err := status.Next(app.Status, status.BeginDecision); err != nil {
		return nil, err
	}

	docs, err := p.rt.Applications.Documents(ctx, id, "")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	d, err := decide(ctx, p.rt, aggregation.Aggregate(app, docs), uuid.Nil, cmd.ForceReview)
	if err != nil {
		if !errors.Is(err, applications.ErrConflict) && !errors.Is(err, status.ErrInvalidState) {
			p.release(ctx, id, err)
		}
		return nil, err
	}
	return d, nil
}

// release moves an application stranded mid-decision to partial_success.
func (p *pipeline) release(ctx context.Context, id uuid.UUID, cause error) {
	step := applications.Step{Name: StepDecision, Message: cause.Error()}
	if _, err := p.rt.Applications.Fail(context.WithoutCancel(ctx), id, uuid.Nil, step); err != nil {
		p.logger.ErrorContext(ctx, "release failed decision", "application_id", id, "error", err)
	}
}

func (p *pipeline) DecideBatch(ctx context.Context, cmd BatchCommand) []BatchResult {
	results := make([]BatchResult, len(cmd.ApplicationIDs))

	var g errgroup.Group
	g.SetLimit(p.batch)

	for i, id := range cmd.ApplicationIDs {
		results[i].ApplicationID = id
		g.Go(func() error {
			d, err := p.Decide(ctx, id, DecideCommand{ForceReview: cmd.ForceReview})
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Decision = d
			return nil
		})
	}
	g.Wait()

	return results
}
