package aggregation

import (
	"time"

	"github.com/JaimeStill/relief/internal/eligibility"
)

const (
	citizenshipIDThreshold   = 0.8
	citizenshipNameThreshold = 0.7
)

// PrepareDecisionInput derives eligibility factors from the view. Citizenship
// is verified when the Emirates ID vision source is present and agrees with
// the form on both id and name. Documents are complete when both vision
// sources are present.
func PrepareDecisionInput(v View, now time.Time) eligibility.Factors {
	f := eligibility.Factors{
		MonthlyIncome:    v.Financial.MonthlyIncome,
		AccountBalance:   v.Financial.AccountBalance,
		EmploymentStatus: v.EmploymentStatus,
		ConsistencyScore: v.Consistency.Overall,
		QualityScore:     v.QualityScore,
		MissingSources:   v.MissingStrings(),
		CitizenshipVerified: v.Has(VisionEmiratesID) &&
			v.Consistency.ID >= citizenshipIDThreshold &&
			v.Consistency.Name >= citizenshipNameThreshold,
		DocumentsComplete: v.Has(VisionEmiratesID) && v.Has(VisionBankStatement),
	}

	if age, ok := Age(v.Personal.DateOfBirth, now); ok {
		f.Age = &age
	}
	if v.FamilySize > 0 {
		size := v.FamilySize
		f.FamilySize = &size
	}

	return f
}
