// Package decisions turns eligibility scores and reasoning into benefit
// decisions and persists them. The decisions table is the source of truth;
// the application row carries a projection of the latest decision.
package decisions

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/relief/internal/applications"
	"github.com/JaimeStill/relief/internal/eligibility"
	"github.com/JaimeStill/relief/internal/reasoning"
	"github.com/JaimeStill/relief/internal/status"
)

// Outcome is the result of a decision.
type Outcome string

const (
	Approved    Outcome = "approved"
	Rejected    Outcome = "rejected"
	NeedsReview Outcome = "needs_review"
)

// ParseOutcome validates s as an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case Approved, Rejected, NeedsReview:
		return o, nil
	}
	return "", fmt.Errorf("%w: unknown outcome %q", ErrValidation, s)
}

// Event returns the workflow event that applies o after a decision.
func (o Outcome) Event() status.Event {
	switch o {
	case Approved:
		return status.Approve
	case Rejected:
		return status.Reject
	}
	return status.Refer
}

// OverrideEvent returns the workflow event that applies o as a reviewer override.
func (o Outcome) OverrideEvent() status.Event {
	switch o {
	case Approved:
		return status.OverrideApprove
	case Rejected:
		return status.OverrideReject
	}
	return status.OverrideRefer
}

// Kind distinguishes engine decisions from reviewer overrides.
type Kind string

const (
	KindAutomatic Kind = "automatic"
	KindOverride  Kind = "override"
)

// Decision is one persisted decision for an application.
type Decision struct {
	ID             uuid.UUID             `json:"id"`
	ApplicationID  uuid.UUID             `json:"application_id"`
	Kind           Kind                  `json:"kind"`
	Outcome        Outcome               `json:"outcome"`
	Confidence     float64               `json:"confidence"`
	Score          int                   `json:"eligibility_score"`
	Breakdown      eligibility.Breakdown `json:"score_breakdown"`
	Factors        eligibility.Factors   `json:"factors"`
	Reasoning      reasoning.Output      `json:"reasoning"`
	BenefitAmount  decimal.NullDecimal   `json:"benefit_amount"`
	Currency       string                `json:"currency,omitempty"`
	Frequency      string                `json:"frequency,omitempty"`
	Conditions     []string              `json:"conditions"`
	EffectiveDate  *time.Time            `json:"effective_date,omitempty"`
	ReviewDate     *time.Time            `json:"review_date,omitempty"`
	AppealDeadline *time.Time            `json:"appeal_deadline,omitempty"`
	Actor          string                `json:"actor,omitempty"`
	Reason         string                `json:"reason,omitempty"`
	PreviousID     *uuid.UUID            `json:"previous_id,omitempty"`
	ProcessingMs   int64                 `json:"processing_time_ms"`
	CreatedAt      time.Time             `json:"created_at"`

	// RunID is the pipeline run that produced an automatic decision. It is
	// not stored; Record uses it to reject decisions from a superseded run.
	RunID uuid.UUID `json:"-"`
}

// Projection returns the denormalized form stored on the application.
func (d Decision) Projection() applications.DecisionProjection {
	return applications.DecisionProjection{
		DecisionID:     d.ID,
		Outcome:        string(d.Outcome),
		Confidence:     d.Confidence,
		Reasoning:      d.Reasoning.Summary(),
		BenefitAmount:  d.BenefitAmount,
		Currency:       d.Currency,
		EffectiveDate:  d.EffectiveDate,
		ReviewDate:     d.ReviewDate,
		AppealDeadline: d.AppealDeadline,
		DecidedAt:      d.CreatedAt,
	}
}

// OverrideCommand replaces the current decision with a reviewer's outcome.
type OverrideCommand struct {
	Outcome Outcome `json:"outcome"`
	Actor   string  `json:"actor"`
	Reason  string  `json:"reason"`
}

// Validate checks the override is complete.
func (c OverrideCommand) Validate() error {
	var problems []string
	if _, err := ParseOutcome(string(c.Outcome)); err != nil {
		problems = append(problems, "outcome must be approved, rejected or needs_review")
	}
	if strings.TrimSpace(c.Actor) == "" {
		problems = append(problems, "actor is required")
	}
	if strings.TrimSpace(c.Reason) == "" {
		problems = append(problems, "reason is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// Authorize rejects an override of the actor's own application.
func (c OverrideCommand) Authorize(ownerID string) error {
	if strings.EqualFold(strings.TrimSpace(c.Actor), strings.TrimSpace(ownerID)) {
		return ErrSelfOverride
	}
	return nil
}
