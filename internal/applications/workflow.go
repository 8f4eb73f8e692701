package applications

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/relief/internal/status"
	"github.com/JaimeStill/relief/pkg/repository"
)

// Admission is how BeginProcessing moves an application into the pipeline.
type Admission struct {
	// Recover is set when a forced retry takes over a processing
	// application whose lease has expired; the stale run is failed first.
	Recover bool
	Event   status.Event
	Next    status.State
	Step    Step
}

// Admit decides whether a may enter the pipeline. Without force, an
// application already in a processing state yields *status.AlreadyProcessingError.
// With force, a processing application is taken over only once its lease
// has expired.
func Admit(a *Application, force bool, lease time.Duration, now time.Time) (Admission, error) {
	var adm Admission
	from := a.Status

	if force && from.Processing() {
		if LeaseLive(a, lease, now) {
			return adm, &status.AlreadyProcessingError{Current: from}
		}
		recovered, err := status.Next(from, status.Fail)
		if err != nil {
			return adm, err
		}
		adm.Recover = true
		from = recovered
	}

	adm.Event = status.BeginProcessing
	if force {
		adm.Event = status.RetryProcessing
	}

	next, err := status.Next(from, adm.Event)
	if err != nil {
		return adm, err
	}
	adm.Next = next

	adm.Step = Step{
		Name:    "document_scanning",
		Status:  StepInProgress,
		Message: "extracting documents",
	}
	if next == status.AnalyzingIncome {
		adm.Step = Step{
			Name:    "income_analysis",
			Status:  StepInProgress,
			Message: "resuming analysis after review",
		}
	}
	return adm, nil
}

// LeaseLive reports whether the current pipeline run still owns a. With a
// zero lease a forced retry may always take over.
func LeaseLive(a *Application, lease time.Duration, now time.Time) bool {
	if a.ProcessingStartedAt == nil || lease <= 0 {
		return false
	}
	return now.Sub(*a.ProcessingStartedAt) < lease
}

// Change is the row update produced by applying one event.
type Change struct {
	Status              status.State
	Progress            int
	RetryCount          int
	ProcessingStartedAt *time.Time
	ProcessedAt         *time.Time
	RunID               *uuid.UUID
}

// Plan computes the row update for applying ev to a at now. Starting or
// retrying processing stamps a fresh run id; leaving the processing states
// clears it. Progress never decreases except on reset.
func Plan(a *Application, ev status.Event, now time.Time) (Change, error) {
	next, err := status.Next(a.Status, ev)
	if err != nil {
		return Change{}, err
	}

	c := Change{
		Status:              next,
		Progress:            status.Advance(a.Progress, next),
		RetryCount:          a.RetryCount,
		ProcessingStartedAt: a.ProcessingStartedAt,
		ProcessedAt:         a.ProcessedAt,
		RunID:               a.RunID,
	}

	if ev == status.ResetDocuments || ev == status.ResetForm {
		c.Progress = next.Progress()
	}

	switch {
	case ev == status.BeginProcessing || ev == status.RetryProcessing:
		run := uuid.New()
		c.ProcessingStartedAt = &now
		c.RunID = &run
	case !next.Processing():
		c.ProcessingStartedAt = nil
		c.RunID = nil
	}

	if next.Decided() {
		c.ProcessedAt = &now
	}

	if ev == status.RetryProcessing || (ev == status.BeginProcessing && a.Status == status.PartialSuccess) {
		c.RetryCount++
	}
	return c, nil
}

func (c Change) apply(a *Application, now time.Time) {
	a.Status = c.Status
	a.Progress = c.Progress
	a.Version++
	a.RetryCount = c.RetryCount
	a.ProcessingStartedAt = c.ProcessingStartedAt
	a.ProcessedAt = c.ProcessedAt
	a.RunID = c.RunID
	a.UpdatedAt = now
}

// CheckRun returns status.ErrStaleRun when run is not the pipeline run that
// currently owns a. uuid.Nil skips the check and is reserved for callers
// outside a pipeline run.
func (a *Application) CheckRun(run uuid.UUID) error {
	if run == uuid.Nil {
		return nil
	}
	if a.RunID == nil || *a.RunID != run {
		return fmt.Errorf("%w: application %s", status.ErrStaleRun, a.ID)
	}
	return nil
}

// ActiveConflict maps a failed insert to the active-application conflict.
// A violation of the active-owner index names the existing application when
// lookup finds it, and is a bare ErrConflict otherwise. Other errors pass
// through.
func ActiveConflict(err error, lookup func() (*Application, error)) error {
	var active *ActiveApplicationError
	if errors.As(err, &active) {
		return err
	}
	if !repository.IsUniqueViolation(err, activeOwnerIndex) {
		return err
	}
	if existing, lookupErr := lookup(); lookupErr == nil {
		return &ActiveApplicationError{ExistingID: existing.ID}
	}
	return ErrConflict
}
