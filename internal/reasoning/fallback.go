package reasoning

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/JaimeStill/relief/pkg/tracing"
)

// DefaultTimeout bounds a primary reasoning attempt.
const DefaultTimeout = 30 * time.Second

type fallback struct {
	primary  Reasoner
	fallback Reasoner
	timeout  time.Duration
	logger   *slog.Logger
}

// WithFallback returns a reasoner that tries primary within timeout and
// degrades to fallback on any error. A nil primary always uses fallback.
func WithFallback(primary, fb Reasoner, timeout time.Duration, logger *slog.Logger) Reasoner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &fallback{
		primary:  primary,
		fallback: fb,
		timeout:  timeout,
		logger:   logger.With("component", "reasoning"),
	}
}

func (r *fallback) Explain(ctx context.Context, in Input) (out Output, err error) {
	ctx, span := tracing.Start(ctx, "reasoning.explain",
		attribute.String("application_id", in.ApplicationID.String()),
	)
	defer func() {
		span.SetAttributes(attribute.String("backend", string(out.Backend)))
		tracing.End(span, err)
	}()

	if r.primary != nil {
		pctx, cancel := context.WithTimeout(ctx, r.timeout)
		out, err = r.primary.Explain(pctx, in)
		cancel()
		if err == nil {
			return out, nil
		}
		r.logger.Warn("primary reasoning failed, using fallback",
			"application_id", in.ApplicationID,
			"error", err,
		)
	}

	return r.fallback.Explain(context.WithoutCancel(ctx), in)
}
