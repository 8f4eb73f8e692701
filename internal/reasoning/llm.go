package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JaimeStill/relief/internal/prompts"
	"github.com/JaimeStill/relief/pkg/formatting"
)

// LLMConfidence is the confidence reported by the model backend.
const LLMConfidence = 0.85

// Client sends a text prompt to a language model.
type Client interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

type llmResponse struct {
	Steps        []string `json:"reasoning_steps"`
	Evidence     any      `json:"evidence"`
	Alternatives []string `json:"alternative_recommendations"`
}

// LLM explains decisions with a language model.
type LLM struct {
	client  Client
	prompts prompts.System
	logger  *slog.Logger
}

// NewLLM creates the model-backed reasoner.
func NewLLM(client Client, ps prompts.System, logger *slog.Logger) *LLM {
	return &LLM{
		client:  client,
		prompts: ps,
		logger:  logger.With("reasoner", "llm"),
	}
}

func (r *LLM) Explain(ctx context.Context, in Input) (Output, error) {
	prompt, err := prompts.Compose(ctx, r.prompts, prompts.StageReasoning, "Decision input", in)
	if err != nil {
		return Output{}, err
	}

	text, err := r.client.Chat(ctx, prompt)
	if err != nil {
		return Output{}, fmt.Errorf("reasoning request: %w", err)
	}

	parsed, err := formatting.Parse[llmResponse](text)
	if err != nil || len(parsed.Steps) == 0 {
		r.logger.Debug("unstructured reasoning response, using plain text", "application_id", in.ApplicationID)
		parsed = llmResponse{Steps: lines(text)}
	}
	if len(parsed.Steps) == 0 {
		return Output{}, fmt.Errorf("reasoning response contained no steps")
	}

	return withAssessment(Output{
		Steps:        parsed.Steps,
		Evidence:     modelEvidence(parsed.Evidence),
		Alternatives: parsed.Alternatives,
		Confidence:   LLMConfidence,
		Backend:      BackendLLM,
	}, in), nil
}

// modelEvidence keeps keyed evidence as returned and files a bare list
// under "notes".
func modelEvidence(v any) map[string]any {
	switch e := v.(type) {
	case map[string]any:
		return e
	case []any:
		if len(e) > 0 {
			return map[string]any{"notes": e}
		}
	case string:
		if e != "" {
			return map[string]any{"notes": []any{e}}
		}
	}
	return nil
}

func lines(text string) []string {
	var out []string
	for l := range strings.Lines(text) {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
