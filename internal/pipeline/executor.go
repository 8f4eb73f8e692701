package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/relief/internal/applications"
	"github.com/JaimeStill/relief/internal/status"
	"github.com/JaimeStill/relief/pkg/lifecycle"
)

// StepInterrupted names the log entry written when processing stops early.
const StepInterrupted = "processing_interrupted"

// job is one queued pipeline run. run identifies it to the store so a
// superseded worker cannot write.
type job struct {
	id     uuid.UUID
	run    uuid.UUID
	resume bool
}

// Executor runs pipeline jobs on a fixed pool of workers bound to the
// lifecycle coordinator. Work interrupted by shutdown, and work still
// queued, is moved to partial_success so it can be retried.
type Executor struct {
	rt      *Runtime
	jobs    chan job
	workers int
	done    <-chan struct{}
	logger  *slog.Logger
}

// NewExecutor creates an Executor with the given worker count and queue size.
func NewExecutor(rt *Runtime, workers, queueSize int) *Executor {
	return &Executor{
		rt:      rt,
		jobs:    make(chan job, max(queueSize, 1)),
		workers: max(workers, 1),
		logger:  rt.Logger.With("component", "executor"),
	}
}

// Start launches the workers.
func (e *Executor) Start(lc *lifecycle.Coordinator) {
	e.done = lc.Context().Done()
	for range e.workers {
		lc.Run(e.work)
	}
	lc.AddProbe("pipeline", func(context.Context) error {
		if len(e.jobs) == cap(e.jobs) {
			return ErrQueueFull
		}
		return nil
	})
	e.logger.Info("pipeline executor started", "workers", e.workers, "queue", cap(e.jobs))
}

// Submit queues run of an application for processing without blocking.
func (e *Executor) Submit(id, run uuid.UUID, resume bool) error {
	select {
	case <-e.done:
		return ErrShuttingDown
	default:
	}

	select {
	case e.jobs <- job{id: id, run: run, resume: resume}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (e *Executor) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.drain(ctx)
			return
		case j := <-e.jobs:
			e.process(ctx, j)
		}
	}
}

func (e *Executor) process(ctx context.Context, j job) {
	_, err := Execute(ctx, e.rt, j.id, j.run, j.resume)
	switch {
	case err == nil:
	case errors.Is(err, status.ErrStaleRun):
		e.logger.InfoContext(ctx, "pipeline run superseded", "application_id", j.id, "run_id", j.run)
	default:
		msg := err.Error()
		if ctx.Err() != nil {
			msg = "interrupted by shutdown"
		}
		e.fail(ctx, j, msg)
	}
}

func (e *Executor) drain(ctx context.Context) {
	for {
		select {
		case j := <-e.jobs:
			e.fail(ctx, j, "not started before shutdown")
		default:
			return
		}
	}
}

func (e *Executor) fail(ctx context.Context, j job, msg string) {
	ctx = context.WithoutCancel(ctx)
	_, err := e.rt.Applications.Fail(ctx, j.id, j.run, applications.Step{Name: StepInterrupted, Message: msg})
	switch {
	case err == nil:
		e.logger.WarnContext(ctx, "processing failed", "application_id", j.id, "reason", msg)
	case errors.Is(err, status.ErrInvalidState), errors.Is(err, status.ErrStaleRun):
		e.logger.DebugContext(ctx, "processing ended outside pipeline run", "application_id", j.id, "reason", msg)
	default:
		e.logger.ErrorContext(ctx, "mark processing failed", "application_id", j.id, "error", err)
	}
}
