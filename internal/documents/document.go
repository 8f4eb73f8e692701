// Package documents implements the supporting-document domain: upload to
// blob storage, per-document extraction results, and their persistence.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies what a supporting document evidences.
type Type string

const (
	EmiratesID    Type = "emirates_id"
	BankStatement Type = "bank_statement"
)

// Types lists the document types the pipeline extracts from.
func Types() []Type {
	return []Type{EmiratesID, BankStatement}
}

// ParseType validates s against the known document types.
func ParseType(s string) (Type, error) {
	for _, t := range Types() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", ErrInvalidType
}

// ProcessingStatus tracks extraction progress for a single document.
type ProcessingStatus string

const (
	Pending    ProcessingStatus = "pending"
	Processing ProcessingStatus = "processing"
	Completed  ProcessingStatus = "completed"
	Partial    ProcessingStatus = "partial"
	Failed     ProcessingStatus = "failed"
)

// OCR is the raw text extraction for a document.
type OCR struct {
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
	ProcessingMs int64   `json:"processing_ms"`
}

// Vision is the structured field extraction for a document.
type Vision struct {
	Fields       map[string]any `json:"fields"`
	Confidence   float64        `json:"confidence"`
	ProcessingMs int64          `json:"processing_ms"`
}

// Document is an uploaded supporting document and its extraction results.
// OCR and Vision are nil until the corresponding stage has completed.
type Document struct {
	ID               uuid.UUID        `json:"id"`
	ApplicationID    uuid.UUID        `json:"application_id"`
	Type             Type             `json:"document_type"`
	Filename         string           `json:"filename"`
	ContentType      string           `json:"content_type"`
	SizeBytes        int64            `json:"size_bytes"`
	PageCount        *int             `json:"page_count"`
	StorageKey       string           `json:"storage_key"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	OCR              *OCR             `json:"ocr,omitempty"`
	Vision           *Vision          `json:"vision,omitempty"`
	ErrorMessage     *string          `json:"error_message,omitempty"`
	UploadedAt       time.Time        `json:"uploaded_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	ExtractedAt      *time.Time       `json:"extracted_at,omitempty"`
}

// CreateCommand carries one uploaded file for an application.
// PageCount is optional and extracted by the handler for PDFs.
type CreateCommand struct {
	Type        Type
	Data        []byte
	Filename    string
	ContentType string
	PageCount   *int
}

// Extraction is the outcome of running both extraction stages on a document.
// A nil stage result with a non-empty error marks that stage as failed.
type Extraction struct {
	OCR         *OCR
	Vision      *Vision
	OCRError    string
	VisionError string
}

// Status derives the per-document processing status from the stage outcomes.
func (e Extraction) Status() ProcessingStatus {
	switch {
	case e.OCR != nil && e.Vision != nil:
		return Completed
	case e.OCR != nil || e.Vision != nil:
		return Partial
	}
	return Failed
}

// Error joins the stage errors, or returns "" when both stages succeeded.
func (e Extraction) Error() string {
	switch {
	case e.OCRError != "" && e.VisionError != "":
		return "ocr: " + e.OCRError + "; vision: " + e.VisionError
	case e.OCRError != "":
		return "ocr: " + e.OCRError
	case e.VisionError != "":
		return "vision: " + e.VisionError
	}
	return ""
}
