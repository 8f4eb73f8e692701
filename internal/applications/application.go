// Package applications implements the benefit application domain: the
// applicant's form, the persisted workflow state and its append-only
// transition log, and the denormalized processing and decision projections.
package applications

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/relief/internal/status"
)

// FormData is the applicant-declared information captured at submission.
type FormData struct {
	FullName         string              `json:"full_name"`
	EmiratesID       string              `json:"emirates_id"`
	DateOfBirth      string              `json:"date_of_birth"`
	Nationality      string              `json:"nationality,omitempty"`
	Email            string              `json:"email,omitempty"`
	Phone            string              `json:"phone,omitempty"`
	Address          string              `json:"address,omitempty"`
	EmploymentStatus string              `json:"employment_status"`
	FamilySize       int                 `json:"family_size"`
	DeclaredIncome   decimal.NullDecimal `json:"declared_monthly_income"`
}

var emiratesIDPattern = regexp.MustCompile(`^784\d{12}$`)

// DateLayout is the expected format of FormData.DateOfBirth.
const DateLayout = "2006-01-02"

// Validate checks required fields and formats.
func (f FormData) Validate() error {
	var problems []string

	if strings.TrimSpace(f.FullName) == "" {
		problems = append(problems, "full_name is required")
	}
	if !emiratesIDPattern.MatchString(CompactID(f.EmiratesID)) {
		problems = append(problems, "emirates_id must be 15 digits starting with 784")
	}
	if _, err := time.Parse(DateLayout, f.DateOfBirth); err != nil {
		problems = append(problems, "date_of_birth must be YYYY-MM-DD")
	}
	if strings.TrimSpace(f.EmploymentStatus) == "" {
		problems = append(problems, "employment_status is required")
	}
	if f.FamilySize < 1 {
		problems = append(problems, "family_size must be at least 1")
	}
	if f.DeclaredIncome.Valid && f.DeclaredIncome.Decimal.IsNegative() {
		problems = append(problems, "declared_monthly_income must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// CompactID strips separators from an Emirates ID (784-1990-1234567-1 -> 784199012345671).
func CompactID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DecisionProjection caches the latest decision on the application row.
// The decisions table remains the source of truth.
type DecisionProjection struct {
	DecisionID     uuid.UUID           `json:"decision_id"`
	Outcome        string              `json:"outcome"`
	Confidence     float64             `json:"confidence"`
	Reasoning      string              `json:"reasoning"`
	BenefitAmount  decimal.NullDecimal `json:"benefit_amount"`
	Currency       string              `json:"currency,omitempty"`
	EffectiveDate  *time.Time          `json:"effective_date,omitempty"`
	ReviewDate     *time.Time          `json:"review_date,omitempty"`
	AppealDeadline *time.Time          `json:"appeal_deadline,omitempty"`
	DecidedAt      time.Time           `json:"decided_at"`
}

// Application is a benefit application and its workflow position.
type Application struct {
	ID                  uuid.UUID           `json:"id"`
	OwnerID             string              `json:"owner_id"`
	Form                FormData            `json:"form"`
	Status              status.State        `json:"status"`
	Progress            int                 `json:"progress"`
	Version             int                 `json:"version"`
	RetryCount          int                 `json:"retry_count"`
	MonthlyIncome       decimal.NullDecimal `json:"monthly_income"`
	AccountBalance      decimal.NullDecimal `json:"account_balance"`
	EligibilityScore    *int                `json:"eligibility_score"`
	Decision            *DecisionProjection `json:"decision,omitempty"`
	ProcessingStartedAt *time.Time          `json:"processing_started_at,omitempty"`
	RunID               *uuid.UUID          `json:"run_id,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	SubmittedAt         *time.Time          `json:"submitted_at,omitempty"`
	ProcessedAt         *time.Time          `json:"processed_at,omitempty"`
}

// StepStatus is the outcome recorded for a workflow step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// Step describes the work that accompanies a transition.
type Step struct {
	Name           string
	Status         StepStatus
	Message        string
	ProcessingTime time.Duration
	Confidence     *float64
}

// Entry is one row of the append-only transition log.
type Entry struct {
	ID               uuid.UUID     `json:"id"`
	ApplicationID    uuid.UUID     `json:"application_id"`
	CurrentState     status.State  `json:"current_state"`
	PreviousState    *status.State `json:"previous_state"`
	StepName         string        `json:"step_name"`
	StepStatus       StepStatus    `json:"step_status"`
	Message          string        `json:"message,omitempty"`
	ProcessingTimeMs *int64        `json:"processing_time_ms,omitempty"`
	Confidence       *float64      `json:"confidence,omitempty"`
	RetryCount       int           `json:"retry_count"`
	CreatedAt        time.Time     `json:"created_at"`
}

// StatusView is the applicant-facing workflow status.
type StatusView struct {
	ApplicationID     uuid.UUID      `json:"application_id"`
	State             status.State   `json:"state"`
	Progress          int            `json:"progress"`
	Processing        bool           `json:"processing"`
	RetryAfterSeconds int            `json:"retry_after_seconds,omitempty"`
	AllowedActions    []status.Event `json:"allowed_actions"`
	Steps             []Entry        `json:"steps"`
}

// Result states reported by ResultView.
const (
	ResultProcessing = "processing"
	ResultDecided    = "decided"
	ResultClosed     = "closed"
)

// ResultView is the applicant-facing decision result. While the application
// has no decision it carries a retry hint instead of an error.
type ResultView struct {
	ApplicationID     uuid.UUID           `json:"application_id"`
	State             status.State        `json:"state"`
	Status            string              `json:"status"`
	Message           string              `json:"message,omitempty"`
	RetryAfterSeconds int                 `json:"retry_after_seconds,omitempty"`
	EligibilityScore  *int                `json:"eligibility_score,omitempty"`
	MonthlyIncome     decimal.NullDecimal `json:"monthly_income"`
	AccountBalance    decimal.NullDecimal `json:"account_balance"`
	Decision          *DecisionProjection `json:"decision,omitempty"`
}

// ProcessCommand requests pipeline processing.
type ProcessCommand struct {
	ForceRetry bool `json:"force_retry"`
}

// ReviewCommand flags an application for manual review.
type ReviewCommand struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}
