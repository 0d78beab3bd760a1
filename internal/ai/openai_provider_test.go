package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amishk599/jobsift/internal/model"
)

func makeTestServer(t *testing.T, statusCode int, body string) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, srv.Client()
}

var testRequest = Request{
	System:     "system",
	User:       "score this",
	SchemaName: "duplicate_check",
	Schema:     duplicateSchema,
}

func TestComplete_Success(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK,
		`{"choices":[{"finish_reason":"stop","message":{"content":"{\"is_duplicate\":false,\"duplicate_of_id\":\"\"}"}}]}`)

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", client)
	got, err := provider.Complete(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"is_duplicate":false,"duplicate_of_id":""}` {
		t.Errorf("got %q, want json string", got)
	}
}

func TestComplete_HTTPError(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusInternalServerError, `{"error":"server error"}`)

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", client)
	_, err := provider.Complete(context.Background(), testRequest)
	if err == nil {
		t.Fatal("expected error on 5xx response")
	}
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 500 || httpErr.Service != "openai" {
		t.Errorf("expected openai HTTPError 500, got %v", err)
	}
}

func TestComplete_RateLimited(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusTooManyRequests, `{"error":"rate limited"}`)

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", client)
	_, err := provider.Complete(context.Background(), testRequest)
	if err == nil {
		t.Fatal("expected error on 429 response")
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK, `{"choices":[]}`)

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", client)
	_, err := provider.Complete(context.Background(), testRequest)
	if err == nil {
		t.Fatal("expected error when LLM returns no choices")
	}
}

func TestComplete_Refusal(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":"","refusal":"I can't help with that"}}]}`)

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", client)
	if _, err := provider.Complete(context.Background(), testRequest); err == nil {
		t.Fatal("expected error on refusal")
	}
}

func TestComplete_Truncated(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK,
		`{"choices":[{"finish_reason":"length","message":{"content":"{\"is_dup"}}]}`)

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", client)
	if _, err := provider.Complete(context.Background(), testRequest); err == nil {
		t.Fatal("expected error when the reply hit max_tokens")
	}
}

func TestComplete_SendsStructuredOutputFormat(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer srv.Close()

	provider := NewOpenAIProvider(srv.URL, "my-secret-key", "test-model", srv.Client())
	if _, err := provider.Complete(context.Background(), testRequest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer my-secret-key" {
		t.Errorf("Authorization header = %q, want %q", gotAuth, "Bearer my-secret-key")
	}
	if gotReq.Model != "test-model" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Content != "score this" {
		t.Errorf("unexpected messages %+v", gotReq.Messages)
	}
	if gotReq.ResponseFormat.Type != "json_schema" {
		t.Errorf("response_format.type = %q", gotReq.ResponseFormat.Type)
	}
	if gotReq.ResponseFormat.JSONSchema.Name != "duplicate_check" || !gotReq.ResponseFormat.JSONSchema.Strict {
		t.Errorf("unexpected json_schema %+v", gotReq.ResponseFormat.JSONSchema)
	}
	if _, ok := gotReq.ResponseFormat.JSONSchema.Schema["properties"]; !ok {
		t.Error("schema properties were not sent")
	}
}
