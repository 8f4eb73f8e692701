package decisions

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/relief/pkg/query"
	"github.com/JaimeStill/relief/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "decisions", "dc").
	Project("id", "ID").
	Project("application_id", "ApplicationID").
	Project("kind", "Kind").
	Project("outcome", "Outcome").
	Project("confidence", "Confidence").
	Project("eligibility_score", "Score").
	Project("score_breakdown", "Breakdown").
	Project("factors", "Factors").
	Project("reasoning", "Reasoning").
	Project("benefit_amount", "BenefitAmount").
	Project("benefit_currency", "Currency").
	Project("benefit_frequency", "Frequency").
	Project("conditions", "Conditions").
	Project("effective_date", "EffectiveDate").
	Project("review_date", "ReviewDate").
	Project("appeal_deadline", "AppealDeadline").
	Project("actor", "Actor").
	Project("reason", "Reason").
	Project("previous_id", "PreviousID").
	Project("processing_time_ms", "ProcessingMs").
	Project("created_at", "CreatedAt")

var newestFirst = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

type encoded struct {
	breakdown  []byte
	factors    []byte
	reasoning  []byte
	conditions []byte
}

func encode(d Decision) (encoded, error) {
	var (
		out encoded
		err error
	)
	if out.breakdown, err = json.Marshal(d.Breakdown); err != nil {
		return out, fmt.Errorf("marshal breakdown: %w", err)
	}
	if out.factors, err = json.Marshal(d.Factors); err != nil {
		return out, fmt.Errorf("marshal factors: %w", err)
	}
	if out.reasoning, err = json.Marshal(d.Reasoning); err != nil {
		return out, fmt.Errorf("marshal reasoning: %w", err)
	}
	if out.conditions, err = json.Marshal(d.Conditions); err != nil {
		return out, fmt.Errorf("marshal conditions: %w", err)
	}
	return out, nil
}

func scanDecision(s repository.Scanner) (Decision, error) {
	var (
		d        Decision
		docs     encoded
		currency sql.NullString
		freq     sql.NullString
		actor    sql.NullString
		reason   sql.NullString
		previous uuid.NullUUID
	)

	err := s.Scan(
		&d.ID,
		&d.ApplicationID,
		&d.Kind,
		&d.Outcome,
		&d.Confidence,
		&d.Score,
		&docs.breakdown,
		&docs.factors,
		&docs.reasoning,
		&d.BenefitAmount,
		&currency,
		&freq,
		&docs.conditions,
		&d.EffectiveDate,
		&d.ReviewDate,
		&d.AppealDeadline,
		&actor,
		&reason,
		&previous,
		&d.ProcessingMs,
		&d.CreatedAt,
	)
	if err != nil {
		return d, err
	}

	d.Currency = currency.String
	d.Frequency = freq.String
	d.Actor = actor.String
	d.Reason = reason.String
	if previous.Valid {
		d.PreviousID = &previous.UUID
	}

	for _, f := range []struct {
		name string
		data []byte
		dst  any
	}{
		{"score_breakdown", docs.breakdown, &d.Breakdown},
		{"factors", docs.factors, &d.Factors},
		{"reasoning", docs.reasoning, &d.Reasoning},
		{"conditions", docs.conditions, &d.Conditions},
	} {
		if len(f.data) == 0 {
			continue
		}
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return d, fmt.Errorf("unmarshal %s: %w", f.name, err)
		}
	}
	if d.Conditions == nil {
		d.Conditions = []string{}
	}

	return d, nil
}
