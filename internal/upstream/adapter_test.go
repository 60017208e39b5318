package upstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/openaiwire"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/upstream"
)

type fixedCredential struct{ token string }

func (c fixedCredential) Token(ctx context.Context) (string, error) { return c.token, nil }

func TestAdapter_Complete(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	a := upstream.New(server.URL, fixedCredential{token: "sk-1"}, upstream.WithHTTPClient(server.Client()))

	got, err := a.Complete(context.Background(), openaiwire.ChatCompletionRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got.ID != "chatcmpl-1" {
		t.Errorf("ID = %q, want chatcmpl-1", got.ID)
	}
	if gotAuth != "Bearer sk-1" {
		t.Errorf("Authorization = %q, want Bearer sk-1", gotAuth)
	}
}

func TestAdapter_Complete_ClassifiesUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached for requests","type":"rate_limit_exceeded"}}`))
	}))
	defer server.Close()

	a := upstream.New(server.URL, fixedCredential{token: "sk-1"}, upstream.WithHTTPClient(server.Client()))

	_, err := a.Complete(context.Background(), openaiwire.ChatCompletionRequest{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("Complete() error = nil, want classified upstream error")
	}
	var upErr *upstream.Error
	if !asUpstreamError(err, &upErr) {
		t.Fatalf("error = %v (%T), want *upstream.Error", err, err)
	}
	if upErr.Kind != upstream.KindRateLimited {
		t.Errorf("Kind = %v, want rate_limited", upErr.Kind)
	}
}

func TestAdapter_AzureURLShape(t *testing.T) {
	var gotPath, gotQuery, gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAPIKey = r.Header.Get("api-key")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	a := upstream.New(server.URL, fixedCredential{token: "azure-key"},
		upstream.WithHTTPClient(server.Client()),
		upstream.WithAzure("2024-02-01"),
	)

	_, err := a.Complete(context.Background(), openaiwire.ChatCompletionRequest{Model: "gpt-4o-deployment"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if gotPath != "/openai/deployments/gpt-4o-deployment/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "api-version=2024-02-01" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotAPIKey != "azure-key" {
		t.Errorf("api-key header = %q, want azure-key", gotAPIKey)
	}
}

func TestAdapter_StreamComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range []string{
			`data: {"choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
			`data: {"choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
			`data: [DONE]`,
		} {
			_, _ = w.Write([]byte(line + "\n\n"))
			flusher.Flush()
		}
	}))
	defer server.Close()

	a := upstream.New(server.URL, fixedCredential{token: "sk-1"}, upstream.WithHTTPClient(server.Client()))

	stream, err := a.StreamComplete(context.Background(), openaiwire.ChatCompletionRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("StreamComplete() error = %v", err)
	}

	var texts []string
	for chunk, chunkErr := range stream {
		if chunkErr != nil {
			t.Fatalf("chunk error = %v", chunkErr)
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != nil {
			texts = append(texts, *chunk.Choices[0].Delta.Content)
		}
	}

	if len(texts) != 2 || texts[0] != "Hel" || texts[1] != "lo" {
		t.Errorf("collected texts = %v, want [Hel lo]", texts)
	}
}

func TestAdapter_CircuitBreakerOpensOnUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"internal error"}}`))
	}))
	defer server.Close()

	cb := upstream.NewCircuitBreaker("test", 1, 0, nil)
	a := upstream.New(server.URL, fixedCredential{token: "sk-1"},
		upstream.WithHTTPClient(server.Client()),
		upstream.WithCircuitBreaker(cb),
	)

	_, err := a.Complete(context.Background(), openaiwire.ChatCompletionRequest{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("expected the first call to fail and trip the breaker")
	}
	if cb.State() != upstream.CircuitOpen {
		t.Fatalf("State() = %v, want open after one failure at threshold 1", cb.State())
	}
}

// asUpstreamError is a tiny errors.As wrapper kept local to avoid importing
// the errors package just for this one assertion helper across the file.
func asUpstreamError(err error, target **upstream.Error) bool {
	upErr, ok := err.(*upstream.Error)
	if !ok {
		return false
	}
	*target = upErr
	return true
}
