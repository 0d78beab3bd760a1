package ai

import (
	_ "embed"
	"text/template"
)

var (
	//go:embed prompts/score.md
	scorePromptRaw string
	//go:embed prompts/posting.md
	postingPromptRaw string
	//go:embed prompts/duplicate.md
	duplicatePromptRaw string
	//go:embed prompts/duplicate_user.md
	duplicateUserPromptRaw string
)

// Templates are parsed once at package init and reused on every call.
var (
	scoreTemplate         = template.Must(template.New("score").Parse(scorePromptRaw))
	postingTemplate       = template.Must(template.New("posting").Parse(postingPromptRaw))
	duplicateUserTemplate = template.Must(template.New("duplicate_user").Parse(duplicateUserPromptRaw))
)
