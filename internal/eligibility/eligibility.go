// Package eligibility scores an applicant's decision factors against the
// program criteria. Scoring is pure and deterministic.
package eligibility

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxScore caps the eligibility score.
const MaxScore = 100

// LargeHousehold is the household size that earns full family points and
// counts as a mitigating factor.
const LargeHousehold = 3

// IsLargeHousehold reports whether size is at least LargeHousehold.
func IsLargeHousehold(size *int) bool {
	return size != nil && *size >= LargeHousehold
}

// Criteria are the program thresholds scoring is measured against.
type Criteria struct {
	IncomeThreshold decimal.Decimal `json:"income_threshold"`
	AssetLimit      decimal.Decimal `json:"asset_limit"`
	MinAge          int             `json:"min_age"`
	MaxAge          int             `json:"max_age"`
}

// DefaultCriteria returns the standard program thresholds (AED).
func DefaultCriteria() Criteria {
	return Criteria{
		IncomeThreshold: decimal.NewFromInt(5000),
		AssetLimit:      decimal.NewFromInt(50000),
		MinAge:          18,
		MaxAge:          65,
	}
}

// Factors is the canonical decision input. Unknown values are represented
// as invalid NullDecimal or nil pointers and contribute nothing to the score.
type Factors struct {
	MonthlyIncome       decimal.NullDecimal `json:"monthly_income"`
	AccountBalance      decimal.NullDecimal `json:"account_balance"`
	Age                 *int                `json:"age,omitempty"`
	EmploymentStatus    string              `json:"employment_status,omitempty"`
	FamilySize          *int                `json:"family_size,omitempty"`
	CitizenshipVerified bool                `json:"citizenship_verified"`
	DocumentsComplete   bool                `json:"documents_complete"`
	ConsistencyScore    float64             `json:"consistency_score"`
	QualityScore        float64             `json:"quality_score"`
	MissingSources      []string            `json:"missing_sources"`
}

// Breakdown reports the points awarded per component.
type Breakdown struct {
	Income      int `json:"income"`
	Assets      int `json:"assets"`
	Age         int `json:"age"`
	Employment  int `json:"employment"`
	Family      int `json:"family"`
	Citizenship int `json:"citizenship"`
	Documents   int `json:"documents"`
}

// Total sums the components, capped at MaxScore.
func (b Breakdown) Total() int {
	sum := b.Income + b.Assets + b.Age + b.Employment + b.Family + b.Citizenship + b.Documents
	return min(sum, MaxScore)
}

// Score returns the eligibility score in [0, 100].
func Score(f Factors, c Criteria) int {
	return Evaluate(f, c).Total()
}

// Evaluate returns the per-component points behind Score.
func Evaluate(f Factors, c Criteria) Breakdown {
	b := Breakdown{
		Income:     incomePoints(f.MonthlyIncome, c.IncomeThreshold),
		Assets:     assetPoints(f.AccountBalance, c.AssetLimit),
		Age:        agePoints(f.Age, c.MinAge, c.MaxAge),
		Employment: employmentPoints(f.EmploymentStatus),
		Family:     familyPoints(f.FamilySize),
	}
	if f.CitizenshipVerified {
		b.Citizenship = 10
	}
	if f.DocumentsComplete {
		b.Documents = 5
	}
	return b
}

var (
	onePointTwo  = decimal.RequireFromString("1.2")
	onePointFive = decimal.RequireFromString("1.5")
)

func incomePoints(income decimal.NullDecimal, threshold decimal.Decimal) int {
	if !income.Valid {
		return 0
	}
	switch {
	case income.Decimal.LessThanOrEqual(threshold):
		return 30
	case income.Decimal.LessThanOrEqual(threshold.Mul(onePointTwo)):
		return 20
	case income.Decimal.LessThanOrEqual(threshold.Mul(onePointFive)):
		return 10
	}
	return 0
}

func assetPoints(balance decimal.NullDecimal, limit decimal.Decimal) int {
	if !balance.Valid {
		return 0
	}
	switch {
	case balance.Decimal.LessThanOrEqual(limit):
		return 20
	case balance.Decimal.LessThanOrEqual(limit.Mul(onePointFive)):
		return 10
	}
	return 0
}

func agePoints(age *int, minAge, maxAge int) int {
	if age == nil {
		return 0
	}
	a := *age
	switch {
	case a >= minAge && a <= maxAge:
		return 15
	case a < minAge || a >= maxAge+5:
		return 5
	}
	return 0
}

func employmentPoints(status string) int {
	switch NormalizeEmployment(status) {
	case "unemployed", "disabled", "retired":
		return 10
	case "part_time", "temporary":
		return 5
	}
	return 0
}

func familyPoints(size *int) int {
	if size == nil {
		return 0
	}
	switch {
	case IsLargeHousehold(size):
		return 10
	case *size == 2:
		return 5
	}
	return 0
}

// NormalizeEmployment lowercases s and folds spaces and hyphens to underscores,
// so "Part-Time" and "part time" both read as part_time.
func NormalizeEmployment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
