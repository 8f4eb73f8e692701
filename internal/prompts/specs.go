package prompts

const ocrSpec = `Respond with a JSON object matching this exact structure:

{
  "text": "<full transcription>",
  "confidence": 0.0
}

Field constraints:
- text: The complete transcription of all pages, pages separated by a
  blank line.
- confidence: Number between 0 and 1 describing how legible the document
  was overall. Use values below 0.5 when significant portions are
  illegible.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing`

const visionSpec = `Respond with a JSON object matching this exact structure:

{
  "fields": {
    "<field_name>": "<value>"
  },
  "confidence": 0.0
}

Field constraints:
- fields: Object keyed by the requested field names. Include only fields
  found in the document. Monetary fields are numbers; all other fields are
  strings. Dates use YYYY-MM-DD.
- confidence: Number between 0 and 1 describing certainty across the
  extracted fields.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Never invent field names beyond those requested`

const reasoningSpec = `Respond with a JSON object matching this exact structure:

{
  "reasoning_steps": ["<step>"],
  "evidence": {"<fact>": <value>},
  "alternative_recommendations": ["<recommendation>"]
}

Field constraints:
- reasoning_steps: Ordered explanation of the assessment, one factor per
  step, referencing the points awarded.
- evidence: Object of facts from the decision factors supporting the
  steps, keyed by short snake_case names.
- alternative_recommendations: Other programs, services or actions the
  applicant could pursue. Empty array when none apply.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Do not change the outcome or the score`

var specs = map[Stage]string{
	StageOCR:       ocrSpec,
	StageVision:    visionSpec,
	StageReasoning: reasoningSpec,
}

// Spec returns the immutable output specification for a stage.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
