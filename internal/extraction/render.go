package extraction

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/JaimeStill/document-context/pkg/config"
	"github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/encoding"
	"github.com/JaimeStill/document-context/pkg/image"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/relief/internal/documents"
)

// Renderer turns a stored document into page images encoded as data URIs.
type Renderer interface {
	Render(ctx context.Context, doc documents.Document, data []byte) ([]string, error)
}

// PageRenderer rasterizes PDFs with ImageMagick and passes images through.
type PageRenderer struct {
	maxPages int
}

// NewPageRenderer creates a renderer. PDFs are truncated to maxPages when
// maxPages is positive.
func NewPageRenderer(maxPages int) *PageRenderer {
	return &PageRenderer{maxPages: maxPages}
}

func (r *PageRenderer) Render(ctx context.Context, doc documents.Document, data []byte) ([]string, error) {
	switch ct := strings.ToLower(doc.ContentType); {
	case ct == "application/pdf":
		return r.renderPDF(ctx, data)
	case ct == "image/png":
		uri, err := encoding.EncodeImageDataURI(data, document.PNG)
		if err != nil {
			return nil, fmt.Errorf("%w: encode image: %w", ErrRenderFailed, err)
		}
		return []string{uri}, nil
	case ct == "image/jpeg":
		return []string{"data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, doc.ContentType)
	}
}

func (r *PageRenderer) renderPDF(ctx context.Context, data []byte) ([]string, error) {
	dir, err := os.MkdirTemp("", "relief-render-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %w", ErrRenderFailed, err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("%w: write temp pdf: %w", ErrRenderFailed, err)
	}

	pdf, err := document.OpenPDF(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %w", ErrRenderFailed, err)
	}
	defer pdf.Close()

	renderer, err := image.NewImageMagickRenderer(config.DefaultImageConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: create renderer: %w", ErrRenderFailed, err)
	}

	pages, err := pdf.ExtractAllPages()
	if err != nil {
		return nil, fmt.Errorf("%w: extract pages: %w", ErrRenderFailed, err)
	}
	if r.maxPages > 0 && len(pages) > r.maxPages {
		pages = pages[:r.maxPages]
	}

	uris := make([]string, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(min(runtime.NumCPU(), len(pages)), 1))

	for i, page := range pages {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			img, err := page.ToImage(renderer, nil)
			if err != nil {
				return fmt.Errorf("render page %d: %w", i+1, err)
			}

			uri, err := encoding.EncodeImageDataURI(img, document.PNG)
			if err != nil {
				return fmt.Errorf("encode page %d: %w", i+1, err)
			}

			uris[i] = uri
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
	return uris, nil
}
