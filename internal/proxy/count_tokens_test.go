package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/anthropic"
)

func TestCountTokensHandler(t *testing.T) {
	h := &CountTokensHandler{}

	body := `{"model":"claude-3-5-sonnet","messages":[{"role":"user","content":"01234567"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/count_tokens", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp anthropic.TokenCountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.InputTokens != 2 {
		t.Errorf("InputTokens = %d, want 2", resp.InputTokens)
	}
}

func TestCountTokensHandler_InvalidBody(t *testing.T) {
	h := &CountTokensHandler{}

	req := httptest.NewRequest(http.MethodPost, "/v1/messages/count_tokens", strings.NewReader("not json"))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
