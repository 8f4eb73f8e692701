package prompts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Compose builds a model prompt from the effective instructions and the
// stage spec. A non-nil payload is appended as indented JSON under label.
func Compose(ctx context.Context, ps System, stage Stage, label string, payload any) (string, error) {
	instructions, err := ps.Instructions(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load instructions for %s: %w", stage, err)
	}

	spec, err := ps.Spec(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load spec for %s: %w", stage, err)
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(spec)

	if payload != nil {
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return "", fmt.Errorf("serialize %s: %w", label, err)
		}
		sb.WriteString("\n\n")
		sb.WriteString(label)
		sb.WriteString(":\n\n")
		sb.Write(data)
	}

	return sb.String(), nil
}
