package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type staticCredential struct{ token string }

func (c staticCredential) Token(ctx context.Context) (string, error) { return c.token, nil }

func TestPassthroughHandler_ForwardsBodyAndAuth(t *testing.T) {
	var gotAuth, gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"chatcmpl-x"}`))
	}))
	defer upstream.Close()

	h := &PassthroughHandler{
		HTTPClient: upstream.Client(),
		BaseURL:    upstream.URL,
		Credential: staticCredential{token: "sk-test"},
		Logger:     testLogger(),
	}

	reqBody := `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(reqBody))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want Bearer sk-test", gotAuth)
	}
	if gotBody != reqBody {
		t.Errorf("forwarded body = %q, want verbatim %q", gotBody, reqBody)
	}
	if rec.Body.String() != `{"id":"chatcmpl-x"}` {
		t.Errorf("relayed response body = %q", rec.Body.String())
	}
}

func TestPassthroughHandler_AzureURLShape(t *testing.T) {
	var gotPath, gotQuery, gotAPIKey string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAPIKey = r.Header.Get("api-key")
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	h := &PassthroughHandler{
		HTTPClient:      upstream.Client(),
		BaseURL:         upstream.URL,
		Credential:      staticCredential{token: "azure-key"},
		Azure:           true,
		AzureAPIVersion: "2024-02-01",
		AzureModel:      "gpt-4o-deployment",
		Logger:          testLogger(),
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	wantPath := "/openai/deployments/gpt-4o-deployment/chat/completions"
	if gotPath != wantPath {
		t.Errorf("path = %q, want %q", gotPath, wantPath)
	}
	if gotQuery != "api-version=2024-02-01" {
		t.Errorf("query = %q, want api-version=2024-02-01", gotQuery)
	}
	if gotAPIKey != "azure-key" {
		t.Errorf("api-key header = %q, want azure-key", gotAPIKey)
	}
}

func TestPassthroughHandler_CustomHeadersInjected(t *testing.T) {
	var gotHeader string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Org-Id")
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	h := &PassthroughHandler{
		HTTPClient:    upstream.Client(),
		BaseURL:       upstream.URL,
		Credential:    staticCredential{token: "x"},
		CustomHeaders: map[string]string{"X-Org-Id": "org-123"},
		Logger:        testLogger(),
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if gotHeader != "org-123" {
		t.Errorf("X-Org-Id = %q, want org-123", gotHeader)
	}
}
