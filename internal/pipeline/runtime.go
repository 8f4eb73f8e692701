// Package pipeline drives an application through extraction, analysis and
// decision as a state graph, on a bounded pool of background workers.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/relief/internal/applications"
	"github.com/JaimeStill/relief/internal/decisions"
	"github.com/JaimeStill/relief/internal/documents"
	"github.com/JaimeStill/relief/internal/extraction"
)

var (
	ErrQueueFull    = errors.New("pipeline queue full")
	ErrShuttingDown = errors.New("pipeline shutting down")
)

// Extractor runs document extraction for one application under a pipeline run.
type Extractor interface {
	Run(ctx context.Context, run uuid.UUID, docs []documents.Document) (extraction.Summary, error)
}

// Decider turns decision factors into an unsaved decision.
type Decider interface {
	Evaluate(ctx context.Context, req decisions.Request) (decisions.Decision, error)
}

// Runtime bundles the dependencies that graph nodes require.
type Runtime struct {
	Applications applications.System
	Documents    documents.System
	Extractor    Extractor
	Decider      Decider
	Decisions    decisions.System
	AutoDecide   bool
	Logger       *slog.Logger
	Now          func() time.Time
}

func (rt *Runtime) now() time.Time {
	if rt.Now != nil {
		return rt.Now()
	}
	return time.Now()
}
