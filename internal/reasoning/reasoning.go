// Package reasoning explains eligibility decisions. An LLM backend produces
// narrative reasoning and a deterministic rules backend stands in whenever
// the model is unavailable, so a decision never blocks on the model.
package reasoning

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/relief/internal/eligibility"
	"github.com/JaimeStill/relief/pkg/formatting"
)

// Backend identifies which reasoner produced an Output.
type Backend string

const (
	BackendLLM   Backend = "llm"
	BackendRules Backend = "rules"
)

// Input is everything a reasoner sees about a decision.
type Input struct {
	ApplicationID uuid.UUID             `json:"application_id"`
	Outcome       string                `json:"outcome"`
	Score         int                   `json:"eligibility_score"`
	Breakdown     eligibility.Breakdown `json:"score_breakdown"`
	Factors       eligibility.Factors   `json:"factors"`
	Criteria      eligibility.Criteria  `json:"criteria"`
}

// Output is the structured explanation attached to a decision.
type Output struct {
	Steps []string `json:"reasoning_steps"`
	// Evidence is keyed by fact name. Every output carries the
	// EvidenceConsistency, EvidenceQuality and EvidenceMissingSources keys.
	Evidence          map[string]any `json:"evidence"`
	RiskFactors       []string       `json:"risk_factors"`
	MitigatingFactors []string       `json:"mitigating_factors"`
	Alternatives      []string       `json:"alternative_recommendations"`
	Confidence        float64        `json:"confidence"`
	Backend           Backend        `json:"backend"`
}

const (
	EvidenceConsistency    = "consistency"
	EvidenceQuality        = "quality"
	EvidenceMissingSources = "missing_sources"
)

// Gather returns the evidence every explanation of f carries.
func Gather(f eligibility.Factors) map[string]any {
	missing := f.MissingSources
	if missing == nil {
		missing = []string{}
	}
	return map[string]any{
		EvidenceConsistency:    f.ConsistencyScore,
		EvidenceQuality:        f.QualityScore,
		EvidenceMissingSources: missing,
	}
}

// Summary joins the reasoning steps into a single paragraph.
func (o Output) Summary() string {
	return strings.Join(o.Steps, " ")
}

// Reasoner explains an eligibility outcome.
type Reasoner interface {
	Explain(ctx context.Context, in Input) (Output, error)
}

var (
	incomeRiskRatio  = decimal.NewFromFloat(0.8)
	assetRiskRatio   = decimal.NewFromFloat(0.7)
	vulnerableStatus = map[string]bool{"unemployed": true, "disabled": true, "retired": true}
)

// Assess lists the risk and mitigating factors in f. Both backends attach
// the same assessment so it does not depend on model output.
func Assess(f eligibility.Factors, c eligibility.Criteria) (risks, mitigating []string) {
	risks = []string{}
	mitigating = []string{}

	if !f.MonthlyIncome.Valid {
		risks = append(risks, "monthly income could not be verified")
	} else if f.MonthlyIncome.Decimal.GreaterThanOrEqual(c.IncomeThreshold.Mul(incomeRiskRatio)) {
		risks = append(risks, fmt.Sprintf("monthly income %s is at or above 80%% of the %s threshold",
			aed(f.MonthlyIncome.Decimal), aed(c.IncomeThreshold)))
	}

	if f.AccountBalance.Valid && f.AccountBalance.Decimal.GreaterThanOrEqual(c.AssetLimit.Mul(assetRiskRatio)) {
		risks = append(risks, fmt.Sprintf("account balance %s is at or above 70%% of the %s asset limit",
			aed(f.AccountBalance.Decimal), aed(c.AssetLimit)))
	}

	if !f.DocumentsComplete {
		risks = append(risks, "supporting documents incomplete")
	}
	for _, src := range f.MissingSources {
		risks = append(risks, "missing data source: "+src)
	}
	if f.ConsistencyScore < 0.7 {
		risks = append(risks, fmt.Sprintf("low cross-source consistency (%.2f)", f.ConsistencyScore))
	}
	if f.QualityScore < 0.5 {
		risks = append(risks, fmt.Sprintf("low data quality (%.2f)", f.QualityScore))
	}

	if eligibility.IsLargeHousehold(f.FamilySize) {
		mitigating = append(mitigating, fmt.Sprintf("large household (%d members)", *f.FamilySize))
	}
	if f.Age != nil && *f.Age >= 60 {
		mitigating = append(mitigating, fmt.Sprintf("advanced age (%d)", *f.Age))
	}
	if status := eligibility.NormalizeEmployment(f.EmploymentStatus); vulnerableStatus[status] {
		mitigating = append(mitigating, "vulnerable employment status: "+status)
	}

	return risks, mitigating
}

func withAssessment(out Output, in Input) Output {
	out.RiskFactors, out.MitigatingFactors = Assess(in.Factors, in.Criteria)
	if out.Steps == nil {
		out.Steps = []string{}
	}
	if out.Evidence == nil {
		out.Evidence = make(map[string]any)
	}
	maps.Copy(out.Evidence, Gather(in.Factors))
	if out.Alternatives == nil {
		out.Alternatives = []string{}
	}
	return out
}

func aed(d decimal.Decimal) string {
	return formatting.FormatMoney(d, "AED")
}
