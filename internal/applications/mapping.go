package applications

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/relief/internal/status"
	"github.com/JaimeStill/relief/pkg/query"
	"github.com/JaimeStill/relief/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "applications", "a").
	Project("id", "ID").
	Project("owner_id", "OwnerID").
	Project("form_data", "Form").
	Project("status", "Status").
	Project("progress", "Progress").
	Project("version", "Version").
	Project("retry_count", "RetryCount").
	Project("monthly_income", "MonthlyIncome").
	Project("account_balance", "AccountBalance").
	Project("eligibility_score", "EligibilityScore").
	Project("decision_id", "DecisionID").
	Project("decision_outcome", "Outcome").
	Project("decision_confidence", "DecisionConfidence").
	Project("decision_reasoning", "DecisionReasoning").
	Project("benefit_amount", "BenefitAmount").
	Project("benefit_currency", "BenefitCurrency").
	Project("effective_date", "EffectiveDate").
	Project("review_date", "ReviewDate").
	Project("appeal_deadline", "AppealDeadline").
	Project("decided_at", "DecidedAt").
	Project("processing_started_at", "ProcessingStartedAt").
	Project("run_id", "RunID").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Project("submitted_at", "SubmittedAt").
	Project("processed_at", "ProcessedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

var entryProjection = query.
	NewProjectionMap("public", "workflow_states", "w").
	Project("id", "ID").
	Project("application_id", "ApplicationID").
	Project("current_state", "CurrentState").
	Project("previous_state", "PreviousState").
	Project("step_name", "StepName").
	Project("step_status", "StepStatus").
	Project("message", "Message").
	Project("processing_time_ms", "ProcessingTimeMs").
	Project("confidence", "Confidence").
	Project("retry_count", "RetryCount").
	Project("created_at", "CreatedAt").
	Project("seq", "Seq")

// Filters contains optional filtering criteria for application queries.
type Filters struct {
	OwnerID       *string    `json:"owner_id,omitempty"`
	Status        *string    `json:"status,omitempty"`
	Outcome       *string    `json:"outcome,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("OwnerID", f.OwnerID).
		WhereEquals("Status", f.Status).
		WhereEquals("Outcome", f.Outcome).
		WhereRange("CreatedAt", f.CreatedAfter, f.CreatedBefore)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Unparseable timestamps are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if o := values.Get("owner_id"); o != "" {
		f.OwnerID = &o
	}

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if o := values.Get("outcome"); o != "" {
		f.Outcome = &o
	}

	if s := values.Get("created_after"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			f.CreatedAfter = &t
		}
	}

	if s := values.Get("created_before"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			f.CreatedBefore = &t
		}
	}

	return f
}

func terminalArgs() []any {
	states := status.TerminalStates()
	out := make([]any, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

func scanApplication(s repository.Scanner) (Application, error) {
	var (
		a          Application
		form       []byte
		decisionID uuid.NullUUID
		outcome    sql.NullString
		confidence sql.NullFloat64
		reasoning  sql.NullString
		currency   sql.NullString
		decidedAt  sql.NullTime
		d          DecisionProjection
	)

	err := s.Scan(
		&a.ID,
		&a.OwnerID,
		&form,
		&a.Status,
		&a.Progress,
		&a.Version,
		&a.RetryCount,
		&a.MonthlyIncome,
		&a.AccountBalance,
		&a.EligibilityScore,
		&decisionID,
		&outcome,
		&confidence,
		&reasoning,
		&d.BenefitAmount,
		&currency,
		&d.EffectiveDate,
		&d.ReviewDate,
		&d.AppealDeadline,
		&decidedAt,
		&a.ProcessingStartedAt,
		&a.RunID,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.SubmittedAt,
		&a.ProcessedAt,
	)
	if err != nil {
		return a, err
	}

	if err := json.Unmarshal(form, &a.Form); err != nil {
		return a, fmt.Errorf("decode form data: %w", err)
	}

	if decisionID.Valid {
		d.DecisionID = decisionID.UUID
		d.Outcome = outcome.String
		d.Confidence = confidence.Float64
		d.Reasoning = reasoning.String
		d.Currency = currency.String
		d.DecidedAt = decidedAt.Time
		a.Decision = &d
	}

	return a, nil
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var (
		e   Entry
		seq int64
	)
	err := s.Scan(
		&e.ID,
		&e.ApplicationID,
		&e.CurrentState,
		&e.PreviousState,
		&e.StepName,
		&e.StepStatus,
		&e.Message,
		&e.ProcessingTimeMs,
		&e.Confidence,
		&e.RetryCount,
		&e.CreatedAt,
		&seq,
	)
	return e, err
}
