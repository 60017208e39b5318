package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/anthropic"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/translate"
)

// CountTokensHandler serves POST /v1/messages/count_tokens with a local
// character-based estimate (spec.md §6.1) rather than a call upstream.
type CountTokensHandler struct{}

var _ http.Handler = (*CountTokensHandler)(nil)

func (h *CountTokensHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req anthropic.TokenCountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(ctx, w, anthropic.NewErrorBody("invalid_request_error", "invalid request body"), http.StatusBadRequest)
		return
	}

	writeJSON(ctx, w, anthropic.TokenCountResponse{
		InputTokens: translate.EstimateInputTokens(req),
	}, http.StatusOK)
}
