package decisions

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/relief/internal/eligibility"
	"github.com/JaimeStill/relief/internal/reasoning"
)

// Score bands.
const (
	ApproveScore = 80
	ReviewScore  = 60
)

// ForcedReviewNote is the only reasoning step of a forced review.
const ForcedReviewNote = "manual review forced"

// Policy holds the program parameters applied to a decision.
type Policy struct {
	Criteria   eligibility.Criteria
	MaxBenefit decimal.Decimal
	Currency   string
	Frequency  string
}

// DefaultPolicy returns the standard program policy.
func DefaultPolicy() Policy {
	return Policy{
		Criteria:   eligibility.DefaultCriteria(),
		MaxBenefit: decimal.NewFromInt(2000),
		Currency:   "AED",
		Frequency:  "monthly",
	}
}

// OutcomeFor maps a score to its outcome band.
func OutcomeFor(score int) Outcome {
	switch {
	case score >= ApproveScore:
		return Approved
	case score >= ReviewScore:
		return NeedsReview
	}
	return Rejected
}

// Request is the input to a decision.
type Request struct {
	ApplicationID uuid.UUID
	Factors       eligibility.Factors
	ForceReview   bool
}

// Engine scores a request, obtains reasoning and builds the decision.
type Engine struct {
	reasoner reasoning.Reasoner
	policy   Policy
	now      func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(r reasoning.Reasoner, p Policy) *Engine {
	return &Engine{reasoner: r, policy: p, now: time.Now}
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Evaluate produces an unsaved decision for req.
func (e *Engine) Evaluate(ctx context.Context, req Request) (Decision, error) {
	started := e.now()
	b := eligibility.Evaluate(req.Factors, e.policy.Criteria)
	score := b.Total()

	in := reasoning.Input{
		ApplicationID: req.ApplicationID,
		Outcome:       string(OutcomeFor(score)),
		Score:         score,
		Breakdown:     b,
		Factors:       req.Factors,
		Criteria:      e.policy.Criteria,
	}

	var out reasoning.Output
	if req.ForceReview {
		in.Outcome = string(NeedsReview)
		out = ForcedReview(in)
	} else {
		var err error
		if out, err = e.reasoner.Explain(ctx, in); err != nil {
			return Decision{}, fmt.Errorf("explain decision: %w", err)
		}
	}

	now := e.now()
	d := Decide(req, score, b, out, e.policy, now)
	d.ProcessingMs = now.Sub(started).Milliseconds()
	return d, nil
}

// ForcedReview is the reasoning attached to a forced manual review.
func ForcedReview(in reasoning.Input) reasoning.Output {
	risks, mitigating := reasoning.Assess(in.Factors, in.Criteria)
	return reasoning.Output{
		Steps:             []string{ForcedReviewNote},
		Evidence:          reasoning.Gather(in.Factors),
		RiskFactors:       risks,
		MitigatingFactors: mitigating,
		Alternatives:      []string{},
		Confidence:        1.0,
		Backend:           reasoning.BackendRules,
	}
}

// Decide applies the outcome bands to a scored request. It is pure: the
// same inputs always produce the same decision.
func Decide(req Request, score int, b eligibility.Breakdown, out reasoning.Output, p Policy, now time.Time) Decision {
	d := Decision{
		ID:            uuid.New(),
		ApplicationID: req.ApplicationID,
		Kind:          KindAutomatic,
		Score:         score,
		Breakdown:     b,
		Factors:       req.Factors,
		Reasoning:     out,
		Conditions:    []string{},
		CreatedAt:     now,
	}

	c := out.Confidence
	switch {
	case req.ForceReview:
		d.Outcome = NeedsReview
		d.Confidence = 1.0
	case score >= ApproveScore:
		d.Outcome = Approved
		d.Confidence = math.Min(0.95, c+0.10)
	case score >= ReviewScore:
		d.Outcome = NeedsReview
		d.Confidence = c
	default:
		d.Outcome = Rejected
		d.Confidence = math.Min(0.9, c+0.05)
	}

	applyTerms(&d, p, now)
	return d
}

func applyTerms(d *Decision, p Policy, now time.Time) {
	switch d.Outcome {
	case Approved:
		d.BenefitAmount = decimal.NewNullDecimal(Benefit(d.Factors.MonthlyIncome, p))
		d.Currency = p.Currency
		d.Frequency = p.Frequency
		d.EffectiveDate = at(now.AddDate(0, 0, 7))
		d.ReviewDate = at(now.AddDate(0, 0, 90))
		d.Conditions = []string{
			"report changes in income, assets or household size within 30 days",
			"eligibility is reassessed on the review date",
		}
	case Rejected:
		d.AppealDeadline = at(now.AddDate(0, 0, 30))
		d.Conditions = []string{"an appeal may be lodged before the appeal deadline"}
	}
}

// Benefit is the monthly support amount: the gap between income and the
// threshold, capped at the maximum benefit. Unknown income pays the cap or
// the threshold, whichever is lower.
func Benefit(income decimal.NullDecimal, p Policy) decimal.Decimal {
	gap := p.Criteria.IncomeThreshold
	if income.Valid {
		gap = gap.Sub(income.Decimal)
	}
	amount := decimal.Min(p.MaxBenefit, gap)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}

// Override builds a reviewer decision replacing previous.
func Override(previous *Decision, applicationID uuid.UUID, cmd OverrideCommand, p Policy, now time.Time) Decision {
	d := Decision{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		Kind:          KindOverride,
		Outcome:       cmd.Outcome,
		Confidence:    1.0,
		Conditions:    []string{},
		Actor:         cmd.Actor,
		Reason:        cmd.Reason,
		CreatedAt:     now,
	}

	var risks, mitigating []string
	evidence := map[string]any{}
	if previous != nil {
		d.PreviousID = &previous.ID
		d.Score = previous.Score
		d.Breakdown = previous.Breakdown
		d.Factors = previous.Factors
		risks = previous.Reasoning.RiskFactors
		mitigating = previous.Reasoning.MitigatingFactors
		evidence = reasoning.Gather(previous.Factors)
	}

	step := fmt.Sprintf("Outcome set to %s by %s: %s", cmd.Outcome, cmd.Actor, cmd.Reason)
	if previous != nil {
		step = fmt.Sprintf("Outcome changed from %s to %s by %s: %s", previous.Outcome, cmd.Outcome, cmd.Actor, cmd.Reason)
	}
	d.Reasoning = reasoning.Output{
		Steps:             []string{step},
		Evidence:          evidence,
		RiskFactors:       nonNil(risks),
		MitigatingFactors: nonNil(mitigating),
		Alternatives:      []string{},
		Confidence:        1.0,
		Backend:           reasoning.BackendRules,
	}

	applyTerms(&d, p, now)
	return d
}

func at(t time.Time) *time.Time {
	return &t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
