package reasoning

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/JaimeStill/relief/internal/eligibility"
)

// RulesConfidence is the confidence reported by the rules backend.
const RulesConfidence = 0.6

// Rules explains a decision directly from the score breakdown.
type Rules struct{}

// NewRules returns the deterministic reasoner.
func NewRules() *Rules {
	return &Rules{}
}

func (Rules) Explain(ctx context.Context, in Input) (Output, error) {
	f, c, b := in.Factors, in.Criteria, in.Breakdown

	steps := []string{
		fmt.Sprintf("Income: %s against a %s threshold, %d/30 points.",
			amount(f.MonthlyIncome), aed(c.IncomeThreshold), b.Income),
		fmt.Sprintf("Assets: %s against a %s limit, %d/20 points.",
			amount(f.AccountBalance), aed(c.AssetLimit), b.Assets),
		fmt.Sprintf("Age: %s, %d/15 points.", intOrUnknown(f.Age), b.Age),
		fmt.Sprintf("Employment: %s, %d/10 points.", orUnknown(eligibility.NormalizeEmployment(f.EmploymentStatus)), b.Employment),
		fmt.Sprintf("Household: %s members, %d/10 points.", intOrUnknown(f.FamilySize), b.Family),
		fmt.Sprintf("Citizenship verified: %t, %d/10 points.", f.CitizenshipVerified, b.Citizenship),
		fmt.Sprintf("Documents complete: %t, %d/5 points.", f.DocumentsComplete, b.Documents),
		fmt.Sprintf("Total eligibility score %d/%d, outcome %s.", in.Score, eligibility.MaxScore, in.Outcome),
	}

	evidence := map[string]any{
		"documents_complete":   f.DocumentsComplete,
		"citizenship_verified": f.CitizenshipVerified,
	}

	return withAssessment(Output{
		Steps:        steps,
		Evidence:     evidence,
		Alternatives: alternatives(in.Outcome),
		Confidence:   RulesConfidence,
		Backend:      BackendRules,
	}, in), nil
}

func alternatives(outcome string) []string {
	switch outcome {
	case "rejected":
		return []string{
			"Reapply if household income or assets change",
			"Contact employment and training support services",
		}
	case "needs_review":
		return []string{"Provide any missing documents to speed up review"}
	case "approved":
		return []string{"Enroll in financial counselling alongside support payments"}
	}
	return []string{}
}

func amount(v decimal.NullDecimal) string {
	if !v.Valid {
		return "unknown"
	}
	return aed(v.Decimal)
}

func intOrUnknown(v *int) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprint(*v)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
