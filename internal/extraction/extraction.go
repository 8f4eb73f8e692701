// Package extraction reads uploaded documents with OCR and vision models
// and records the per-stage results. Documents are processed in parallel;
// a failing stage degrades that document rather than the application.
package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/JaimeStill/relief/internal/documents"
	"github.com/JaimeStill/relief/internal/prompts"
	"github.com/JaimeStill/relief/pkg/formatting"
)

// OCR reads the raw text of a document.
type OCR interface {
	Recognize(ctx context.Context, doc documents.Document, pages []string) (*documents.OCR, error)
}

// Vision extracts structured fields from a document.
type Vision interface {
	Extract(ctx context.Context, doc documents.Document, pages []string) (*documents.Vision, error)
}

// Client sends images with a prompt to a vision-capable model.
type Client interface {
	Vision(ctx context.Context, prompt string, images []string) (string, error)
}

type ocrResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type visionResponse struct {
	Fields     map[string]any `json:"fields"`
	Confidence float64        `json:"confidence"`
}

type documentContext struct {
	DocumentType   documents.Type `json:"document_type"`
	Filename       string         `json:"filename"`
	PageCount      int            `json:"page_count"`
	ExpectedFields []string       `json:"expected_fields,omitempty"`
}

// AgentOCR performs OCR through a vision model.
type AgentOCR struct {
	client  Client
	prompts prompts.System
}

// NewAgentOCR creates a model-backed OCR stage.
func NewAgentOCR(client Client, ps prompts.System) *AgentOCR {
	return &AgentOCR{client: client, prompts: ps}
}

func (o *AgentOCR) Recognize(ctx context.Context, doc documents.Document, pages []string) (*documents.OCR, error) {
	started := time.Now()

	payload := documentContext{DocumentType: doc.Type, Filename: doc.Filename, PageCount: len(pages)}
	prompt, err := prompts.Compose(ctx, o.prompts, prompts.StageOCR, "Document", payload)
	if err != nil {
		return nil, err
	}

	text, err := o.client.Vision(ctx, prompt, pages)
	if err != nil {
		return nil, &ServiceError{Service: "ocr", Err: err}
	}

	parsed, err := formatting.Parse[ocrResponse](text)
	if err != nil {
		return nil, &ServiceError{Service: "ocr", Err: err}
	}
	if parsed.Text == "" {
		return nil, &ServiceError{Service: "ocr", Err: fmt.Errorf("no text recognized")}
	}

	return &documents.OCR{
		Text:         parsed.Text,
		Confidence:   clamp(parsed.Confidence),
		ProcessingMs: time.Since(started).Milliseconds(),
	}, nil
}

// AgentVision extracts document fields through a vision model.
type AgentVision struct {
	client  Client
	prompts prompts.System
}

// NewAgentVision creates a model-backed vision stage.
func NewAgentVision(client Client, ps prompts.System) *AgentVision {
	return &AgentVision{client: client, prompts: ps}
}

func (v *AgentVision) Extract(ctx context.Context, doc documents.Document, pages []string) (*documents.Vision, error) {
	started := time.Now()

	payload := documentContext{
		DocumentType:   doc.Type,
		Filename:       doc.Filename,
		PageCount:      len(pages),
		ExpectedFields: documents.ExpectedFields(doc.Type),
	}
	prompt, err := prompts.Compose(ctx, v.prompts, prompts.StageVision, "Document", payload)
	if err != nil {
		return nil, err
	}

	text, err := v.client.Vision(ctx, prompt, pages)
	if err != nil {
		return nil, &ServiceError{Service: "vision", Err: err}
	}

	parsed, err := formatting.Parse[visionResponse](text)
	if err != nil {
		return nil, &ServiceError{Service: "vision", Err: err}
	}
	if len(parsed.Fields) == 0 {
		return nil, &ServiceError{Service: "vision", Err: fmt.Errorf("no fields extracted")}
	}

	return &documents.Vision{
		Fields:       parsed.Fields,
		Confidence:   clamp(parsed.Confidence),
		ProcessingMs: time.Since(started).Milliseconds(),
	}, nil
}

func clamp(c float64) float64 {
	return min(max(c, 0), 1)
}
