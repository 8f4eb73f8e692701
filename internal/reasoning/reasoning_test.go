package reasoning_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/relief/internal/eligibility"
	"github.com/JaimeStill/relief/internal/prompts"
	"github.com/JaimeStill/relief/internal/reasoning"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func amount(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func intp(v int) *int { return &v }

type mockPrompts struct {
	prompts.System
}

func (mockPrompts) Instructions(ctx context.Context, stage prompts.Stage) (string, error) {
	return "explain", nil
}

func (mockPrompts) Spec(ctx context.Context, stage prompts.Stage) (string, error) {
	return "json", nil
}

type mockClient struct {
	response string
	err      error
	delay    time.Duration
	prompt   string
}

func (m *mockClient) Chat(ctx context.Context, prompt string) (string, error) {
	m.prompt = prompt
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.response, m.err
}

type failingReasoner struct{}

func (failingReasoner) Explain(ctx context.Context, in reasoning.Input) (reasoning.Output, error) {
	return reasoning.Output{}, errors.New("model unavailable")
}

func input() reasoning.Input {
	f := eligibility.Factors{
		MonthlyIncome:       amount(4500),
		AccountBalance:      amount(40000),
		Age:                 intp(62),
		EmploymentStatus:    "Retired",
		FamilySize:          intp(5),
		CitizenshipVerified: true,
		DocumentsComplete:   false,
		ConsistencyScore:    0.5,
		QualityScore:        0.4,
		MissingSources:      []string{"ocr_bank_statement"},
	}
	c := eligibility.DefaultCriteria()
	b := eligibility.Evaluate(f, c)
	return reasoning.Input{
		ApplicationID: uuid.New(),
		Outcome:       "needs_review",
		Score:         b.Total(),
		Breakdown:     b,
		Factors:       f,
		Criteria:      c,
	}
}

func TestAssess(t *testing.T) {
	in := input()
	risks, mitigating := reasoning.Assess(in.Factors, in.Criteria)

	wantRisks := []string{
		"monthly income 4,500.00 AED is at or above 80% of the 5,000.00 AED threshold",
		"account balance 40,000.00 AED is at or above 70% of the 50,000.00 AED asset limit",
		"supporting documents incomplete",
		"missing data source: ocr_bank_statement",
		"low cross-source consistency (0.50)",
		"low data quality (0.40)",
	}
	if !slices.Equal(risks, wantRisks) {
		t.Errorf("risks = %q\nwant %q", risks, wantRisks)
	}

	wantMitigating := []string{
		"large household (5 members)",
		"advanced age (62)",
		"vulnerable employment status: retired",
	}
	if !slices.Equal(mitigating, wantMitigating) {
		t.Errorf("mitigating = %q\nwant %q", mitigating, wantMitigating)
	}
}

func TestAssessLargeHouseholdMatchesScoring(t *testing.T) {
	for _, size := range []int{eligibility.LargeHousehold - 1, eligibility.LargeHousehold} {
		f := eligibility.Factors{FamilySize: intp(size)}
		_, mitigating := reasoning.Assess(f, eligibility.DefaultCriteria())
		b := eligibility.Evaluate(f, eligibility.DefaultCriteria())

		large := slices.Contains(mitigating, fmt.Sprintf("large household (%d members)", size))
		if large != (b.Family == 10) {
			t.Errorf("family %d: mitigating = %v, family points = %d", size, large, b.Family)
		}
	}
}

// checkEvidence asserts the keys every explanation carries.
func checkEvidence(t *testing.T, out reasoning.Output, in reasoning.Input) {
	t.Helper()
	if got := out.Evidence[reasoning.EvidenceConsistency]; got != in.Factors.ConsistencyScore {
		t.Errorf("consistency = %v, want %v", got, in.Factors.ConsistencyScore)
	}
	if got := out.Evidence[reasoning.EvidenceQuality]; got != in.Factors.QualityScore {
		t.Errorf("quality = %v, want %v", got, in.Factors.QualityScore)
	}
	missing, ok := out.Evidence[reasoning.EvidenceMissingSources].([]string)
	if !ok || !slices.Equal(missing, in.Factors.MissingSources) {
		t.Errorf("missing_sources = %v, want %v", out.Evidence[reasoning.EvidenceMissingSources], in.Factors.MissingSources)
	}
}

func TestAssessUnknownIncome(t *testing.T) {
	f := eligibility.Factors{DocumentsComplete: true, ConsistencyScore: 1, QualityScore: 1}
	risks, mitigating := reasoning.Assess(f, eligibility.DefaultCriteria())

	if !slices.Equal(risks, []string{"monthly income could not be verified"}) {
		t.Errorf("risks = %q", risks)
	}
	if len(mitigating) != 0 {
		t.Errorf("mitigating = %q, want none", mitigating)
	}
}

func TestRules(t *testing.T) {
	in := input()
	out, err := reasoning.NewRules().Explain(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	if out.Backend != reasoning.BackendRules || out.Confidence != reasoning.RulesConfidence {
		t.Errorf("backend = %s confidence = %v", out.Backend, out.Confidence)
	}
	if len(out.Steps) != 8 {
		t.Errorf("steps = %d, want 8", len(out.Steps))
	}
	if !strings.Contains(out.Summary(), "outcome needs_review") {
		t.Errorf("summary missing outcome: %s", out.Summary())
	}
	if len(out.RiskFactors) == 0 || len(out.MitigatingFactors) == 0 {
		t.Error("expected assessment on rules output")
	}
	checkEvidence(t, out, in)
	if out.Evidence["documents_complete"] != false {
		t.Errorf("documents_complete = %v", out.Evidence["documents_complete"])
	}
}

func TestLLM(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantSteps []string
		wantKey   string
		wantErr   bool
	}{
		{
			name:      "structured",
			response:  "```json\n{\"reasoning_steps\":[\"income qualifies\"],\"evidence\":[\"bank statement\"],\"alternative_recommendations\":[]}\n```",
			wantSteps: []string{"income qualifies"},
			wantKey:   "notes",
		},
		{
			name:      "keyed evidence",
			response:  `{"reasoning_steps":["income qualifies"],"evidence":{"statement_income":4500,"consistency":0.99}}`,
			wantSteps: []string{"income qualifies"},
			wantKey:   "statement_income",
		},
		{
			name:      "plain text",
			response:  "Income is low.\n\n  Household is large.\n",
			wantSteps: []string{"Income is low.", "Household is large."},
		},
		{
			name:     "blank",
			response: " \n ",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{response: tt.response}
			r := reasoning.NewLLM(client, mockPrompts{}, discard())

			out, err := r.Explain(context.Background(), input())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}

			if !slices.Equal(out.Steps, tt.wantSteps) {
				t.Errorf("steps = %q, want %q", out.Steps, tt.wantSteps)
			}
			if out.Backend != reasoning.BackendLLM || out.Confidence != reasoning.LLMConfidence {
				t.Errorf("backend = %s confidence = %v", out.Backend, out.Confidence)
			}
			if len(out.RiskFactors) == 0 {
				t.Error("expected risk factors from assessment")
			}
			checkEvidence(t, out, input())
			if _, ok := out.Evidence[tt.wantKey]; tt.wantKey != "" && !ok {
				t.Errorf("evidence = %v, missing %q", out.Evidence, tt.wantKey)
			}
			if !strings.Contains(client.prompt, "Decision input") {
				t.Error("prompt missing decision input payload")
			}
		})
	}
}

func TestWithFallback(t *testing.T) {
	t.Run("primary succeeds", func(t *testing.T) {
		llm := reasoning.NewLLM(&mockClient{response: "ok"}, mockPrompts{}, discard())
		r := reasoning.WithFallback(llm, reasoning.NewRules(), time.Second, discard())

		out, err := r.Explain(context.Background(), input())
		if err != nil {
			t.Fatal(err)
		}
		if out.Backend != reasoning.BackendLLM {
			t.Errorf("backend = %s, want llm", out.Backend)
		}
	})

	t.Run("primary error", func(t *testing.T) {
		r := reasoning.WithFallback(failingReasoner{}, reasoning.NewRules(), time.Second, discard())

		out, err := r.Explain(context.Background(), input())
		if err != nil {
			t.Fatal(err)
		}
		if out.Backend != reasoning.BackendRules {
			t.Errorf("backend = %s, want rules", out.Backend)
		}
	})

	t.Run("primary timeout", func(t *testing.T) {
		llm := reasoning.NewLLM(&mockClient{response: "late", delay: time.Second}, mockPrompts{}, discard())
		r := reasoning.WithFallback(llm, reasoning.NewRules(), 10*time.Millisecond, discard())

		out, err := r.Explain(context.Background(), input())
		if err != nil {
			t.Fatal(err)
		}
		if out.Backend != reasoning.BackendRules {
			t.Errorf("backend = %s, want rules", out.Backend)
		}
	})

	t.Run("no primary", func(t *testing.T) {
		r := reasoning.WithFallback(nil, reasoning.NewRules(), 0, discard())

		out, err := r.Explain(context.Background(), input())
		if err != nil {
			t.Fatal(err)
		}
		if out.Confidence != reasoning.RulesConfidence {
			t.Errorf("confidence = %v", out.Confidence)
		}
	})
}
