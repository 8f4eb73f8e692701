// Package aggregation reconciles the applicant form and per-document
// extraction results into a single confidence-weighted view.
package aggregation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/relief/internal/applications"
	"github.com/JaimeStill/relief/internal/documents"
)

// SourceID names one of the canonical data sources.
type SourceID string

const (
	FormSource          SourceID = "application_form"
	OCREmiratesID       SourceID = "ocr_emirates_id"
	OCRBankStatement    SourceID = "ocr_bank_statement"
	VisionEmiratesID    SourceID = "multimodal_emirates_id"
	VisionBankStatement SourceID = "multimodal_bank_statement"
)

const (
	formConfidence     = 1.0
	availabilityWeight = 0.4
	confidenceWeight   = 0.4
	consistencyWeight  = 0.2
)

// SourceIDs returns the canonical sources in display order.
func SourceIDs() []SourceID {
	return []SourceID{FormSource, OCREmiratesID, OCRBankStatement, VisionEmiratesID, VisionBankStatement}
}

func ocrSource(t documents.Type) SourceID    { return SourceID("ocr_" + string(t)) }
func visionSource(t documents.Type) SourceID { return SourceID("multimodal_" + string(t)) }

// Source is one available data source.
type Source struct {
	ID         SourceID       `json:"id"`
	Confidence float64        `json:"confidence"`
	Data       map[string]any `json:"data"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Personal is the reconciled identity of the applicant.
type Personal struct {
	FullName    string `json:"full_name"`
	EmiratesID  string `json:"emirates_id"`
	DateOfBirth string `json:"date_of_birth"`
	Nationality string `json:"nationality,omitempty"`
}

// Financial holds figures taken from the bank statement vision extraction.
type Financial struct {
	MonthlyIncome  decimal.NullDecimal `json:"monthly_income"`
	AccountBalance decimal.NullDecimal `json:"account_balance"`
	AccountNumber  string              `json:"account_number,omitempty"`
	BankName       string              `json:"bank_name,omitempty"`
}

// Consistency scores cross-source agreement in [0, 1].
type Consistency struct {
	Name    float64 `json:"name"`
	ID      float64 `json:"id"`
	Overall float64 `json:"overall"`
}

// View is the unified, confidence-weighted picture of one application.
type View struct {
	ApplicationID    uuid.UUID           `json:"application_id"`
	Sources          map[SourceID]Source `json:"sources"`
	Missing          []SourceID          `json:"missing_sources"`
	Personal         Personal            `json:"personal"`
	Financial        Financial           `json:"financial"`
	EmploymentStatus string              `json:"employment_status"`
	FamilySize       int                 `json:"family_size"`
	Consistency      Consistency         `json:"consistency"`
	MeanConfidence   float64             `json:"mean_confidence"`
	QualityScore     float64             `json:"quality_score"`
}

// Available reports how many sources contributed.
func (v View) Available() int {
	return len(v.Sources)
}

// Has reports whether a source contributed.
func (v View) Has(id SourceID) bool {
	_, ok := v.Sources[id]
	return ok
}

// Aggregate builds the unified view of app from its documents. A source is
// absent when its extraction stage never completed; absence never fails
// aggregation. When several documents share a type, the most confident
// result of each stage is used.
func Aggregate(app *applications.Application, docs []documents.Document) View {
	v := View{
		ApplicationID:    app.ID,
		Sources:          make(map[SourceID]Source, len(SourceIDs())),
		EmploymentStatus: app.Form.EmploymentStatus,
		FamilySize:       app.Form.FamilySize,
		Personal: Personal{
			FullName:    app.Form.FullName,
			EmiratesID:  applications.CompactID(app.Form.EmiratesID),
			DateOfBirth: app.Form.DateOfBirth,
			Nationality: app.Form.Nationality,
		},
	}

	v.Sources[FormSource] = Source{
		ID:         FormSource,
		Confidence: formConfidence,
		Data:       formData(app.Form),
	}

	idVision := collect(v.Sources, docs)
	bank := visionOf(v.Sources[VisionBankStatement])

	if v.Personal.Nationality == "" {
		v.Personal.Nationality, _ = idVision.StringField(documents.FieldNationality)
	}
	if bank != nil {
		v.Financial = Financial{
			MonthlyIncome:  ParseAmount(bank.Fields[documents.FieldMonthlyIncome]),
			AccountBalance: ParseAmount(bank.Fields[documents.FieldAccountBalance]),
		}
		v.Financial.AccountNumber, _ = bank.StringField(documents.FieldAccountNumber)
		v.Financial.BankName, _ = bank.StringField(documents.FieldBankName)
	}

	names := []string{app.Form.FullName}
	if s, ok := idVision.StringField(documents.FieldFullName); ok {
		names = append(names, s)
	}
	if s, ok := bank.StringField(documents.FieldAccountHolder); ok {
		names = append(names, s)
	}

	ids := []string{app.Form.EmiratesID}
	if s, ok := idVision.StringField(documents.FieldIDNumber); ok {
		ids = append(ids, s)
	}

	v.Consistency.Name = Agreement(names, NormalizeName)
	v.Consistency.ID = Agreement(ids, NormalizeID)
	v.Consistency.Overall = (v.Consistency.Name + v.Consistency.ID) / 2

	for _, id := range SourceIDs() {
		if !v.Has(id) {
			v.Missing = append(v.Missing, id)
		}
	}

	var total float64
	for _, s := range v.Sources {
		total += s.Confidence
	}
	v.MeanConfidence = total / float64(len(v.Sources))
	v.QualityScore = Quality(len(v.Sources), v.MeanConfidence, v.Consistency.Overall)

	return v
}

// Quality combines availability, mean confidence and overall consistency.
func Quality(available int, meanConfidence, consistency float64) float64 {
	availability := float64(available) / float64(len(SourceIDs()))
	return availabilityWeight*availability +
		confidenceWeight*meanConfidence +
		consistencyWeight*consistency
}

// collect adds the OCR and vision sources of docs and returns the chosen
// Emirates ID vision result.
func collect(sources map[SourceID]Source, docs []documents.Document) *documents.Vision {
	var idVision *documents.Vision

	for i := range docs {
		d := &docs[i]

		if d.OCR != nil {
			id := ocrSource(d.Type)
			if cur, ok := sources[id]; !ok || d.OCR.Confidence > cur.Confidence {
				sources[id] = Source{
					ID:         id,
					Confidence: d.OCR.Confidence,
					Data:       map[string]any{"text": d.OCR.Text},
					Metadata:   metadata(d, d.OCR.ProcessingMs),
				}
			}
		}

		if d.Vision != nil {
			id := visionSource(d.Type)
			if cur, ok := sources[id]; !ok || d.Vision.Confidence > cur.Confidence {
				sources[id] = Source{
					ID:         id,
					Confidence: d.Vision.Confidence,
					Data:       d.Vision.Fields,
					Metadata:   metadata(d, d.Vision.ProcessingMs),
				}
				if d.Type == documents.EmiratesID {
					idVision = d.Vision
				}
			}
		}
	}

	return idVision
}

func visionOf(s Source) *documents.Vision {
	if s.Data == nil {
		return nil
	}
	return &documents.Vision{Fields: s.Data, Confidence: s.Confidence}
}

func metadata(d *documents.Document, elapsedMs int64) map[string]any {
	return map[string]any{
		"document_id":   d.ID,
		"filename":      d.Filename,
		"processing_ms": elapsedMs,
	}
}

func formData(f applications.FormData) map[string]any {
	data := map[string]any{
		"full_name":         f.FullName,
		"emirates_id":       f.EmiratesID,
		"date_of_birth":     f.DateOfBirth,
		"employment_status": f.EmploymentStatus,
		"family_size":       f.FamilySize,
	}
	if f.Nationality != "" {
		data["nationality"] = f.Nationality
	}
	if f.DeclaredIncome.Valid {
		data["declared_monthly_income"] = f.DeclaredIncome.Decimal.String()
	}
	return data
}

// ParseAmount reads a monetary value from vision output. Numbers and
// strings such as "AED 12,500.75" are accepted; anything else is unknown.
func ParseAmount(v any) decimal.NullDecimal {
	switch x := v.(type) {
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(x))
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(x)))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(x))
	case string:
		var b strings.Builder
		for _, r := range x {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				b.WriteRune(r)
			}
		}
		d, err := decimal.NewFromString(b.String())
		if err != nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(d)
	}
	return decimal.NullDecimal{}
}

// Age returns completed years between dob (YYYY-MM-DD) and now.
func Age(dob string, now time.Time) (int, bool) {
	born, err := time.Parse(applications.DateLayout, dob)
	if err != nil || born.After(now) {
		return 0, false
	}
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	return years, true
}

// MissingStrings converts the missing source ids for display and factors.
func (v View) MissingStrings() []string {
	out := make([]string, len(v.Missing))
	for i, id := range v.Missing {
		out[i] = string(id)
	}
	return out
}
