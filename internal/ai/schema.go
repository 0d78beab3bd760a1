package ai

import "github.com/amishk599/jobsift/internal/model"

// scoreSchema is the JSON Schema enforced for Call 1. strict mode requires
// every property to be listed as required.
var scoreSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"score": map[string]any{"type": "integer"},
		"verdict": map[string]any{
			"type": "string",
			"enum": []string{
				string(model.VerdictStrongMatch),
				string(model.VerdictWeakMatch),
				string(model.VerdictNoMatch),
			},
		},
		"rationale": map[string]any{"type": "string"},
		"rejection_category": map[string]any{
			"type": "string",
			"enum": rejectionCategoryEnum(),
		},
		"summary": map[string]any{"type": "string"},
	},
	"required": []string{"score", "verdict", "rationale", "rejection_category", "summary"},
}

// duplicateSchema is the JSON Schema enforced for Call 2.
var duplicateSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"is_duplicate":    map[string]any{"type": "boolean"},
		"duplicate_of_id": map[string]any{"type": "string"},
	},
	"required": []string{"is_duplicate", "duplicate_of_id"},
}

func rejectionCategoryEnum() []string {
	out := make([]string, len(model.RejectionCategories))
	for i, c := range model.RejectionCategories {
		out[i] = string(c)
	}
	return out
}
