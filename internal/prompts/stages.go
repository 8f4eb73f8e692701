package prompts

import (
	"encoding/json"
	"slices"
)

// Stage identifies the model call a prompt override targets.
type Stage string

const (
	StageOCR       Stage = "ocr"
	StageVision    Stage = "vision"
	StageReasoning Stage = "reasoning"
)

var stages = []Stage{
	StageOCR,
	StageVision,
	StageReasoning,
}

// Stages returns the list of valid stages.
func Stages() []Stage {
	return stages
}

// UnmarshalJSON validates that the decoded string is a known stage value.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStage validates a string as a known stage.
func ParseStage(s string) (Stage, error) {
	v := Stage(s)
	if !slices.Contains(stages, v) {
		return "", ErrInvalidStage
	}
	return v, nil
}
