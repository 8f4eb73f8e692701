package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/relief/internal/documents"
	"github.com/JaimeStill/relief/pkg/tracing"
)

// Options bound the runner's concurrency and per-document time.
type Options struct {
	Workers         int
	DocumentTimeout time.Duration
}

// Summary counts document outcomes for one run.
type Summary struct {
	Completed int                                `json:"completed"`
	Partial   int                                `json:"partial"`
	Failed    int                                `json:"failed"`
	Results   map[uuid.UUID]documents.Extraction `json:"-"`
}

// Total is the number of documents processed.
func (s Summary) Total() int {
	return s.Completed + s.Partial + s.Failed
}

// Extracted reports whether any document yielded at least one stage result.
func (s Summary) Extracted() bool {
	return s.Completed+s.Partial > 0
}

// Runner fans documents out to the extraction stages and joins before returning.
type Runner struct {
	docs     documents.System
	renderer Renderer
	ocr      OCR
	vision   Vision
	opts     Options
	logger   *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(docs documents.System, renderer Renderer, ocr OCR, vision Vision, opts Options, logger *slog.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	return &Runner{
		docs:     docs,
		renderer: renderer,
		ocr:      ocr,
		vision:   vision,
		opts:     opts,
		logger:   logger.With("component", "extraction"),
	}
}

// Run extracts every document and records each result under the given
// pipeline run. Individual failures are recorded on the document; Run fails
// when ctx is done or when run no longer owns the application, which stops
// the remaining documents.
func (r *Runner) Run(ctx context.Context, run uuid.UUID, docs []documents.Document) (Summary, error) {
	summary := Summary{Results: make(map[uuid.UUID]documents.Extraction, len(docs))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for _, doc := range docs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			result := r.extract(gctx, doc)

			if _, err := r.docs.RecordExtraction(gctx, doc.ID, run, result); err != nil {
				return fmt.Errorf("record extraction for %s: %w", doc.ID, err)
			}

			mu.Lock()
			defer mu.Unlock()
			summary.Results[doc.ID] = result
			switch result.Status() {
			case documents.Completed:
				summary.Completed++
			case documents.Partial:
				summary.Partial++
			default:
				summary.Failed++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	r.logger.InfoContext(ctx, "extraction complete",
		"documents", len(docs),
		"completed", summary.Completed,
		"partial", summary.Partial,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (r *Runner) extract(ctx context.Context, doc documents.Document) (result documents.Extraction) {
	ctx, span := tracing.Start(ctx, "extraction.document",
		attribute.String("document_id", doc.ID.String()),
		attribute.String("document_type", string(doc.Type)),
	)
	defer func() {
		span.SetAttributes(attribute.String("status", string(result.Status())))
		tracing.End(span, nil)
	}()

	if r.opts.DocumentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.DocumentTimeout)
		defer cancel()
	}

	pages, err := r.pages(ctx, doc)
	if err != nil {
		msg := describe(err)
		r.logger.WarnContext(ctx, "document unreadable", "document_id", doc.ID, "error", err)
		return documents.Extraction{OCRError: msg, VisionError: msg}
	}

	var wg sync.WaitGroup
	wg.Go(func() {
		out, err := r.ocr.Recognize(ctx, doc, pages)
		if err != nil {
			r.logger.WarnContext(ctx, "ocr failed", "document_id", doc.ID, "error", err)
			result.OCRError = describe(err)
			return
		}
		result.OCR = out
	})
	wg.Go(func() {
		out, err := r.vision.Extract(ctx, doc, pages)
		if err != nil {
			r.logger.WarnContext(ctx, "vision failed", "document_id", doc.ID, "error", err)
			result.VisionError = describe(err)
			return
		}
		result.Vision = out
	})
	wg.Wait()

	return result
}

func (r *Runner) pages(ctx context.Context, doc documents.Document) ([]string, error) {
	data, err := r.docs.Content(ctx, &doc)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	return r.renderer.Render(ctx, doc, data)
}

func describe(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	return err.Error()
}
