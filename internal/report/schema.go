package report

import "github.com/abhisek/widen/internal/llm"

// ReportSchema defines the JSON schema for session feedback reports.
var ReportSchema = &llm.Schema{
	Name:        "session-report",
	Description: "Structured feedback on a completed tutoring session",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"description": "A short narrative summary of how the session went",
			},
			"strengths": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":       map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"example": map[string]any{
							"type":        "string",
							"description": "A quote or paraphrase from the learner's answers showing the strength",
						},
					},
					"required":             []any{"title", "description", "example"},
					"additionalProperties": false,
				},
			},
			"weaknesses": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":       map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"suggestion": map[string]any{
							"type":        "string",
							"description": "A concrete way to work on this weakness",
						},
					},
					"required":             []any{"title", "description", "suggestion"},
					"additionalProperties": false,
				},
			},
			"suggestions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":       map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"resources": map[string]any{
							"type":        "string",
							"description": "Reading or material to follow up with",
						},
						"questions": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "Questions the learner could explore next",
						},
					},
					"required":             []any{"title", "description", "resources", "questions"},
					"additionalProperties": false,
				},
			},
			"revised_answer": map[string]any{
				"type":        "string",
				"description": "An exemplar answer to the final question, written the way a strong learner would",
			},
		},
		"required":             []any{"summary", "strengths", "weaknesses", "suggestions", "revised_answer"},
		"additionalProperties": false,
	},
}
