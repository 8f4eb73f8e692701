package aggregation_test

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/relief/internal/aggregation"
	"github.com/JaimeStill/relief/internal/applications"
	"github.com/JaimeStill/relief/internal/documents"
	"github.com/JaimeStill/relief/internal/eligibility"
)

const epsilon = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func sampleApp() *applications.Application {
	return &applications.Application{
		ID: uuid.MustParse("9b2f6a1e-0c4d-4a8e-8f10-3d2b1c0a9e77"),
		Form: applications.FormData{
			FullName:         "Ahmed Al Mansoori",
			EmiratesID:       "784-1990-1234567-1",
			DateOfBirth:      "1990-05-14",
			Nationality:      "UAE",
			EmploymentStatus: "unemployed",
			FamilySize:       4,
		},
	}
}

func fullDocuments(conf float64) []documents.Document {
	return []documents.Document{
		{
			ID:   uuid.New(),
			Type: documents.EmiratesID,
			OCR:  &documents.OCR{Text: "AHMED AL MANSOORI 784-1990-1234567-1", Confidence: conf},
			Vision: &documents.Vision{
				Confidence: conf,
				Fields: map[string]any{
					documents.FieldFullName:    "AHMED AL-MANSOORI",
					documents.FieldIDNumber:    "784 1990 1234567 1",
					documents.FieldNationality: "UAE",
				},
			},
		},
		{
			ID:   uuid.New(),
			Type: documents.BankStatement,
			OCR:  &documents.OCR{Text: "Closing balance 12,000.00", Confidence: conf},
			Vision: &documents.Vision{
				Confidence: conf,
				Fields: map[string]any{
					documents.FieldAccountHolder:  "Ahmed Al Mansoori",
					documents.FieldMonthlyIncome:  3000.0,
					documents.FieldAccountBalance: "AED 12,000.50",
					documents.FieldBankName:       "Emirates NBD",
				},
			},
		},
	}
}

func TestAggregateFormOnly(t *testing.T) {
	v := aggregation.Aggregate(sampleApp(), nil)

	if v.Available() != 1 {
		t.Fatalf("Available() = %d, want 1", v.Available())
	}
	if len(v.Missing) != 4 {
		t.Errorf("missing = %v, want 4 sources", v.Missing)
	}
	if v.Consistency.Name != 0.5 || v.Consistency.ID != 0.5 {
		t.Errorf("consistency = %+v, want 0.5 for single values", v.Consistency)
	}
	if !approx(v.QualityScore, 0.58) {
		t.Errorf("QualityScore = %v, want 0.58", v.QualityScore)
	}
	if v.Financial.MonthlyIncome.Valid {
		t.Error("income must be unknown without a bank statement")
	}
}

func TestAggregateAllSources(t *testing.T) {
	v := aggregation.Aggregate(sampleApp(), fullDocuments(0.9))

	if v.Available() != 5 {
		t.Fatalf("Available() = %d, want 5", v.Available())
	}
	if len(v.Missing) != 0 {
		t.Errorf("missing = %v, want none", v.Missing)
	}
	if !approx(v.Consistency.Name, 1) || !approx(v.Consistency.ID, 1) {
		t.Errorf("consistency = %+v, want 1.0", v.Consistency)
	}
	if !approx(v.QualityScore, 0.968) {
		t.Errorf("QualityScore = %v, want 0.968", v.QualityScore)
	}
	if !v.Financial.MonthlyIncome.Decimal.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("income = %v", v.Financial.MonthlyIncome)
	}
	if !v.Financial.AccountBalance.Decimal.Equal(decimal.RequireFromString("12000.50")) {
		t.Errorf("balance = %v", v.Financial.AccountBalance)
	}

	formOnly := aggregation.Aggregate(sampleApp(), nil)
	if formOnly.QualityScore >= v.QualityScore {
		t.Errorf("form-only quality %v should be below full quality %v", formOnly.QualityScore, v.QualityScore)
	}
}

func TestAggregateAbsentIsNotLowConfidence(t *testing.T) {
	docs := fullDocuments(0.9)
	docs[0].OCR = nil
	docs[1].Vision.Confidence = 0.1

	v := aggregation.Aggregate(sampleApp(), docs)

	if v.Has(aggregation.OCREmiratesID) {
		t.Error("OCR source with no result must be absent")
	}
	if !v.Has(aggregation.VisionBankStatement) {
		t.Error("low-confidence source must remain present")
	}
	if len(v.Missing) != 1 || v.Missing[0] != aggregation.OCREmiratesID {
		t.Errorf("missing = %v", v.Missing)
	}
}

func TestAggregateFinancialsIgnoreOCR(t *testing.T) {
	docs := fullDocuments(0.9)
	docs[1].Vision = nil

	v := aggregation.Aggregate(sampleApp(), docs)
	if v.Financial.MonthlyIncome.Valid || v.Financial.AccountBalance.Valid {
		t.Error("financial figures must come only from vision extraction")
	}
}

func TestAggregatePicksMostConfidentDocument(t *testing.T) {
	docs := fullDocuments(0.6)
	better := fullDocuments(0.95)[1]
	better.Vision.Fields[documents.FieldMonthlyIncome] = 4100.0
	docs = append(docs, better)

	v := aggregation.Aggregate(sampleApp(), docs)
	if got := v.Sources[aggregation.VisionBankStatement].Confidence; got != 0.95 {
		t.Errorf("confidence = %v, want 0.95", got)
	}
	if !v.Financial.MonthlyIncome.Decimal.Equal(decimal.NewFromInt(4100)) {
		t.Errorf("income = %v, want 4100", v.Financial.MonthlyIncome)
	}
}

func TestPrepareDecisionInput(t *testing.T) {
	now := time.Date(2026, 5, 13, 0, 0, 0, 0, time.UTC)

	t.Run("complete and consistent", func(t *testing.T) {
		v := aggregation.Aggregate(sampleApp(), fullDocuments(0.9))
		f := aggregation.PrepareDecisionInput(v, now)

		if !f.CitizenshipVerified || !f.DocumentsComplete {
			t.Errorf("factors = %+v, want verified and complete", f)
		}
		if f.Age == nil || *f.Age != 35 {
			t.Errorf("age = %v, want 35 the day before the birthday", f.Age)
		}
		if f.FamilySize == nil || *f.FamilySize != 4 {
			t.Errorf("family size = %v", f.FamilySize)
		}

		score := eligibility.Score(f, eligibility.DefaultCriteria())
		if score != 100 {
			t.Errorf("score = %d, want 100", score)
		}
	})

	t.Run("mismatched id is not verified", func(t *testing.T) {
		docs := fullDocuments(0.9)
		docs[0].Vision.Fields[documents.FieldIDNumber] = "784-2001-7654321-9"

		v := aggregation.Aggregate(sampleApp(), docs)
		f := aggregation.PrepareDecisionInput(v, now)

		if f.CitizenshipVerified {
			t.Errorf("id consistency %v must not verify citizenship", v.Consistency.ID)
		}
	})

	t.Run("form only", func(t *testing.T) {
		v := aggregation.Aggregate(sampleApp(), nil)
		f := aggregation.PrepareDecisionInput(v, now)

		if f.CitizenshipVerified || f.DocumentsComplete {
			t.Errorf("factors = %+v", f)
		}
		if len(f.MissingSources) != 4 {
			t.Errorf("missing = %v", f.MissingSources)
		}
		if f.MonthlyIncome.Valid {
			t.Error("income must be unknown")
		}
	})
}

func TestAgreement(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   float64
	}{
		{"none", nil, 0},
		{"blank only", []string{" ", "-"}, 0},
		{"single", []string{"Ahmed"}, 0.5},
		{"identical after normalization", []string{"Ahmed Ali", "AHMED-ALI"}, 1},
		{"disjoint", []string{"ABC", "XYZ"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := aggregation.Agreement(tt.values, aggregation.NormalizeName)
			if !approx(got, tt.want) {
				t.Errorf("Agreement() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSimilarityPartial(t *testing.T) {
	got := aggregation.Similarity("ABCD", "ABCE")
	if !approx(got, 0.75) {
		t.Errorf("Similarity() = %v, want 0.75", got)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		want  string
		valid bool
	}{
		{"float", 3200.5, "3200.5", true},
		{"currency string", "AED 12,500.75", "12500.75", true},
		{"int", 7, "7", true},
		{"garbage", "n/a", "", false},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := aggregation.ParseAmount(tt.in)
			if got.Valid != tt.valid {
				t.Fatalf("Valid = %v, want %v", got.Valid, tt.valid)
			}
			if tt.valid && !got.Decimal.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount() = %v, want %s", got.Decimal, tt.want)
			}
		})
	}
}

func TestAge(t *testing.T) {
	now := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
	if age, ok := aggregation.Age("1990-05-14", now); !ok || age != 36 {
		t.Errorf("Age() = %d, %v; want 36 on the birthday", age, ok)
	}
	if _, ok := aggregation.Age("2030-01-01", now); ok {
		t.Error("future birth date must be rejected")
	}
	if _, ok := aggregation.Age("bad", now); ok {
		t.Error("malformed birth date must be rejected")
	}
}
