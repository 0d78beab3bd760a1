package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/genai"

	"github.com/amishk599/jobsift/internal/model"
)

// GeminiProvider calls Gemini through the genai SDK with a JSON response schema.
// The SDK client is created on the first call, so a missing API key surfaces
// as a failed run instead of a startup error.
type GeminiProvider struct {
	cfg   genai.ClientConfig
	model string

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiProvider prepares a Gemini API client. baseURL is only set in tests.
func NewGeminiProvider(apiKey, modelName, baseURL string, httpClient *http.Client) *GeminiProvider {
	cfg := genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	return &GeminiProvider{cfg: cfg, model: modelName}
}

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	cfg := p.cfg
	client, err := genai.NewClient(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	p.client = client
	return client, nil
}

// Complete sends req to Gemini and returns the JSON reply text.
func (p *GeminiProvider) Complete(ctx context.Context, r Request) (string, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(r.System, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		MaxOutputTokens:   1024,
		ResponseMIMEType:  "application/json",
		ResponseSchema:    toGenaiSchema(r.Schema),
	}

	resp, err := client.Models.GenerateContent(ctx, p.model, genai.Text(r.User), config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &model.HTTPError{Service: "gemini", StatusCode: apiErr.Code, Err: err}
		}
		return "", fmt.Errorf("gemini request: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("gemini returned nil response")
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text content")
	}
	return text, nil
}

// toGenaiSchema converts the JSON Schema maps shared with OpenAI into the
// subset Gemini understands. additionalProperties has no equivalent.
func toGenaiSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}

	switch m["type"] {
	case "object":
		s.Type = genai.TypeObject
	case "string":
		s.Type = genai.TypeString
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
	}

	if enum, ok := m["enum"].([]string); ok {
		s.Enum = enum
	}
	if req, ok := m["required"].([]string); ok {
		s.Required = req
		s.PropertyOrdering = req
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, v := range props {
			if sub, ok := v.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(sub)
			}
		}
	}
	return s
}
