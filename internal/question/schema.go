package question

import "github.com/abhisek/widen/internal/llm"

// QuestionSchema defines the JSON schema for question generation responses.
var QuestionSchema = &llm.Schema{
	Name:        "tutoring-question",
	Description: "A single open question at the requested cognitive level",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "The question posed to the learner, conversational and self-contained",
			},
		},
		"required":             []any{"question"},
		"additionalProperties": false,
	},
}
