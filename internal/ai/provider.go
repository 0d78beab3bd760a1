package ai

import "context"

// Request is a single structured completion: system and user prompts plus the
// JSON schema the reply must conform to.
type Request struct {
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
}

// LLMProvider sends a request to an LLM and returns the raw JSON text reply.
// Used only by Judge.
type LLMProvider interface {
	Complete(ctx context.Context, req Request) (string, error)
}
