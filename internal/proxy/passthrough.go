package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/anthropic"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/upstream"
)

// PassthroughHandler serves POST /v1/chat/completions (spec.md §6.1): the
// request body is forwarded verbatim, after adding upstream authentication,
// and the upstream response (JSON or an SSE stream) is relayed back as-is.
// No Anthropic<->OpenAI translation happens on this path.
type PassthroughHandler struct {
	HTTPClient      *http.Client
	BaseURL         string
	Credential      upstream.Credential
	Azure           bool
	AzureAPIVersion string
	AzureModel      string
	CustomHeaders   map[string]string
	Logger          *slog.Logger
}

var _ http.Handler = (*PassthroughHandler)(nil)

func (h *PassthroughHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	url := strings.TrimRight(h.BaseURL, "/") + "/chat/completions"
	if h.Azure {
		url = fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			strings.TrimRight(h.BaseURL, "/"), h.AzureModel, h.AzureAPIVersion)
	}

	outReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, r.Body)
	if err != nil {
		writeJSON(ctx, w, anthropic.NewErrorBody("api_error", "failed to build upstream request"), http.StatusInternalServerError)
		return
	}
	outReq.Header.Set("Content-Type", "application/json")

	token, err := h.Credential.Token(ctx)
	if err != nil {
		writeJSON(ctx, w, anthropic.NewErrorBody("authentication_error", "failed to resolve upstream credential"), http.StatusUnauthorized)
		return
	}
	if h.Azure {
		outReq.Header.Set("api-key", token)
	} else {
		outReq.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range h.CustomHeaders {
		outReq.Header.Set(k, v)
	}

	resp, err := h.HTTPClient.Do(outReq)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.Logger.ErrorContext(ctx, "passthrough request failed", "error", err)
		writeJSON(ctx, w, anthropic.NewErrorBody("api_error", "upstream request failed"), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	relayBody(ctx, w, resp.Body, flusher, h.Logger)
}

// relayBody copies the upstream response body to w, flushing after every
// write when the response is a live stream so SSE chunks aren't buffered.
func relayBody(ctx context.Context, w io.Writer, body io.Reader, flusher http.Flusher, logger *slog.Logger) {
	buf := make([]byte, 4096)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				logger.ErrorContext(ctx, "failed relaying passthrough body", "error", writeErr)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				logger.ErrorContext(ctx, "error reading upstream passthrough body", "error", readErr)
			}
			return
		}
	}
}
