package documents

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/relief/pkg/query"
	"github.com/JaimeStill/relief/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "documents", "d").
	Project("id", "ID").
	Project("application_id", "ApplicationID").
	Project("document_type", "Type").
	Project("filename", "Filename").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("storage_key", "StorageKey").
	Project("processing_status", "ProcessingStatus").
	Project("ocr_text", "OCRText").
	Project("ocr_confidence", "OCRConfidence").
	Project("ocr_processing_ms", "OCRProcessingMs").
	Project("vision_fields", "VisionFields").
	Project("vision_confidence", "VisionConfidence").
	Project("vision_processing_ms", "VisionProcessingMs").
	Project("error_message", "ErrorMessage").
	Project("uploaded_at", "UploadedAt").
	Project("updated_at", "UpdatedAt").
	Project("extracted_at", "ExtractedAt")

const returning = `id, application_id, document_type, filename, content_type, size_bytes,
	page_count, storage_key, processing_status, ocr_text, ocr_confidence, ocr_processing_ms,
	vision_fields, vision_confidence, vision_processing_ms, error_message,
	uploaded_at, updated_at, extracted_at`

var defaultSort = query.SortField{
	Field:      "UploadedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for document queries.
// Nil fields are ignored. Filename uses case-insensitive contains matching.
type Filters struct {
	ApplicationID    *uuid.UUID `json:"application_id,omitempty"`
	Type             *string    `json:"document_type,omitempty"`
	ProcessingStatus *string    `json:"processing_status,omitempty"`
	Filename         *string    `json:"filename,omitempty"`
	ContentType      *string    `json:"content_type,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ApplicationID", f.ApplicationID).
		WhereEquals("Type", f.Type).
		WhereEquals("ProcessingStatus", f.ProcessingStatus).
		WhereContains("Filename", f.Filename).
		WhereEquals("ContentType", f.ContentType)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("application_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			f.ApplicationID = &id
		}
	}

	if t := values.Get("document_type"); t != "" {
		f.Type = &t
	}

	if ps := values.Get("processing_status"); ps != "" {
		f.ProcessingStatus = &ps
	}

	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}

	if ct := values.Get("content_type"); ct != "" {
		f.ContentType = &ct
	}

	return f
}

func scanDocument(s repository.Scanner) (Document, error) {
	var (
		d            Document
		ocrText      sql.NullString
		ocrConf      sql.NullFloat64
		ocrMs        sql.NullInt64
		visionFields []byte
		visionConf   sql.NullFloat64
		visionMs     sql.NullInt64
	)

	err := s.Scan(
		&d.ID,
		&d.ApplicationID,
		&d.Type,
		&d.Filename,
		&d.ContentType,
		&d.SizeBytes,
		&d.PageCount,
		&d.StorageKey,
		&d.ProcessingStatus,
		&ocrText,
		&ocrConf,
		&ocrMs,
		&visionFields,
		&visionConf,
		&visionMs,
		&d.ErrorMessage,
		&d.UploadedAt,
		&d.UpdatedAt,
		&d.ExtractedAt,
	)
	if err != nil {
		return d, err
	}

	if ocrConf.Valid {
		d.OCR = &OCR{
			Text:         ocrText.String,
			Confidence:   ocrConf.Float64,
			ProcessingMs: ocrMs.Int64,
		}
	}

	if visionConf.Valid {
		v := &Vision{
			Confidence:   visionConf.Float64,
			ProcessingMs: visionMs.Int64,
		}
		if len(visionFields) > 0 {
			if err := json.Unmarshal(visionFields, &v.Fields); err != nil {
				return d, fmt.Errorf("decode vision fields: %w", err)
			}
		}
		d.Vision = v
	}

	return d, nil
}

func extractionArgs(e Extraction) ([]any, error) {
	var (
		ocrText             *string
		ocrConf, visionConf *float64
		ocrMs, visionMs     *int64
		visionFields        []byte
	)

	if e.OCR != nil {
		ocrText = &e.OCR.Text
		ocrConf = &e.OCR.Confidence
		ocrMs = &e.OCR.ProcessingMs
	}

	if e.Vision != nil {
		fields, err := json.Marshal(e.Vision.Fields)
		if err != nil {
			return nil, fmt.Errorf("encode vision fields: %w", err)
		}
		visionFields = fields
		visionConf = &e.Vision.Confidence
		visionMs = &e.Vision.ProcessingMs
	}

	var errMsg *string
	if msg := e.Error(); msg != "" {
		errMsg = &msg
	}

	return []any{
		ocrText, ocrConf, ocrMs,
		visionFields, visionConf, visionMs,
		string(e.Status()), errMsg,
	}, nil
}
