// Package agents wraps go-agents behind a rate-limited client shared by
// document extraction and decision reasoning.
package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/JaimeStill/relief/pkg/tracing"
)

// ErrEmptyResponse is returned when the model answers with no content.
var ErrEmptyResponse = errors.New("empty model response")

// Client issues chat and vision requests against one agent configuration.
// Requests wait on a shared limiter so concurrent pipeline work stays
// within the provider's quota.
type Client struct {
	cfg     gaconfig.AgentConfig
	limiter *rate.Limiter
}

// New creates a client. A non-positive rps disables rate limiting.
func New(cfg gaconfig.AgentConfig, rps float64, burst int) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &Client{cfg: cfg, limiter: rate.NewLimiter(limit, burst)}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	if c.cfg.Model == nil {
		return ""
	}
	return c.cfg.Model.Name
}

// Chat sends a text-only prompt.
func (c *Client) Chat(ctx context.Context, prompt string) (_ string, err error) {
	ctx, span := tracing.Start(ctx, "agents.chat", attribute.String("model", c.Model()))
	defer func() { tracing.End(span, err) }()

	a, err := c.acquire(ctx)
	if err != nil {
		return "", err
	}

	resp, err := a.Chat(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return content(resp.Content())
}

// Vision sends a prompt with images encoded as data URIs.
func (c *Client) Vision(ctx context.Context, prompt string, images []string) (_ string, err error) {
	ctx, span := tracing.Start(ctx, "agents.vision",
		attribute.String("model", c.Model()),
		attribute.Int("images", len(images)),
	)
	defer func() { tracing.End(span, err) }()

	a, err := c.acquire(ctx)
	if err != nil {
		return "", err
	}

	resp, err := a.Vision(ctx, prompt, images)
	if err != nil {
		return "", fmt.Errorf("vision: %w", err)
	}
	return content(resp.Content())
}

func (c *Client) acquire(ctx context.Context) (agent.Agent, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	a, err := agent.New(&c.cfg)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return a, nil
}

func content(s string) (string, error) {
	if s == "" {
		return "", ErrEmptyResponse
	}
	return s, nil
}
