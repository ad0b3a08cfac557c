package evaluate

import "github.com/abhisek/widen/internal/llm"

// VerdictSchema defines the JSON schema for answer evaluation responses.
var VerdictSchema = &llm.Schema{
	Name:        "answer-verdict",
	Description: "Judgement of whether a learner's answer engages the question at the required depth",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_appropriate": map[string]any{
				"type":        "boolean",
				"description": "True when the answer genuinely engages the question at the level's cognitive depth",
			},
			"feedback": map[string]any{
				"type":        "string",
				"description": "One or two sentences of feedback addressed to the learner",
			},
			"is_looking_for_help": map[string]any{
				"type":        "boolean",
				"description": "True when the learner is asking for help or signalling they are stuck rather than answering",
			},
			"hint": map[string]any{
				"type":        "string",
				"description": "A nudge toward a better answer. Empty when the answer is appropriate.",
			},
		},
		"required":             []any{"is_appropriate", "feedback", "is_looking_for_help", "hint"},
		"additionalProperties": false,
	},
}
