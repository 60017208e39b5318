package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/anthropic"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/cache"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/openaiwire"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/registry"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/translate"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/upstream"
)

// MessagesHandler serves POST /v1/messages, translating an Anthropic-dialect
// request into an upstream Chat Completions call and translating the result
// (or the live stream) back.
type MessagesHandler struct {
	Client    upstream.Client
	ModelCfg  *translate.ModelConfig
	Cache     *cache.ResponseCache
	Registry  *registry.Registry
	MaxTokens int
	Logger    *slog.Logger
}

var _ http.Handler = (*MessagesHandler)(nil)

func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req anthropic.MessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(ctx, w, anthropic.NewErrorBody("invalid_request_error", "invalid request body"), http.StatusBadRequest)
		return
	}
	if err := validator.New().Struct(req); err != nil {
		writeJSON(ctx, w, anthropic.NewErrorBody("invalid_request_error", err.Error()), http.StatusBadRequest)
		return
	}

	rewrite := translate.RewriteModel(req.Model, h.ModelCfg)
	req.Model = rewrite.Rewritten

	upstreamReq := translate.ToUpstreamRequest(req, h.MaxTokens)

	requestID := r.Header.Get("X-Request-Id")
	if requestID != "" && h.Registry != nil {
		cancelCtx, cancel := context.WithCancel(ctx)
		h.Registry.Insert(requestID, cancel)
		defer h.Registry.Remove(requestID)
		ctx = cancelCtx
	}

	if req.Stream {
		h.streamResponse(ctx, w, upstreamReq, rewrite.Original)
		return
	}
	h.writeResponse(ctx, w, upstreamReq, rewrite.Original)
}

// writeResponse handles the non-streaming path, consulting the response
// cache before dispatching upstream and populating it on success.
func (h *MessagesHandler) writeResponse(ctx context.Context, w http.ResponseWriter, req openaiwire.ChatCompletionRequest, originalModel string) {
	var cacheKey string
	if h.Cache != nil {
		asMap := toRawMap(req)
		cacheKey = cache.Key(asMap)
		if cached, ok := h.Cache.Get(cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}

	completion, err := h.Client.Complete(ctx, req)
	if err != nil {
		h.writeUpstreamError(ctx, w, err)
		return
	}

	rendering := translate.DetermineToolRendering(originalModel)
	resp := translate.ToMessagesResponse(h.Logger, completion, originalModel, rendering)

	body, err := json.Marshal(resp)
	if err != nil {
		writeJSON(ctx, w, anthropic.NewErrorBody("api_error", "failed to encode response"), http.StatusInternalServerError)
		return
	}

	if h.Cache != nil && cacheKey != "" {
		h.Cache.Set(cacheKey, body)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// streamResponse handles the streaming path: each upstream chunk drives the
// StreamState FSM, whose frames are written as named Anthropic SSE events.
func (h *MessagesHandler) streamResponse(ctx context.Context, w http.ResponseWriter, req openaiwire.ChatCompletionRequest, originalModel string) {
	stream, err := h.Client.StreamComplete(ctx, req)
	if err != nil {
		h.writeUpstreamError(ctx, w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		writeJSON(ctx, w, anthropic.NewErrorBody("api_error", "streaming unsupported"), http.StatusInternalServerError)
		return
	}

	state := translate.NewStreamState(originalModel, h.Logger)

	for _, frame := range state.Init() {
		if writeErr := writeFrame(sse, frame); writeErr != nil {
			h.Logger.ErrorContext(ctx, "failed to write init frame", "error", writeErr)
			return
		}
	}

	for chunk, chunkErr := range stream {
		if ctx.Err() != nil {
			h.Logger.DebugContext(ctx, "client disconnected during stream")
			return
		}
		if chunkErr != nil {
			for _, frame := range state.Fail(chunkErr) {
				_ = writeFrame(sse, frame)
			}
			return
		}

		for _, frame := range state.HandleChunk(chunk) {
			if writeErr := writeFrame(sse, frame); writeErr != nil {
				h.Logger.ErrorContext(ctx, "failed to write stream frame", "error", writeErr)
				return
			}
		}

		if state.Terminated() {
			return
		}
	}

	if !state.Terminated() {
		for _, frame := range state.Finalize() {
			_ = writeFrame(sse, frame)
		}
	}
}

func writeFrame(sse *SSEWriter, frame translate.Frame) error {
	if frame.Event == "" {
		return sse.WriteRaw("[DONE]")
	}
	return sse.WriteEvent(frame.Event, frame.Data)
}

func (h *MessagesHandler) writeUpstreamError(ctx context.Context, w http.ResponseWriter, err error) {
	var upErr *upstream.Error
	if errors.As(err, &upErr) {
		writeJSON(ctx, w, anthropic.NewErrorBody(string(upErr.Kind), upErr.Message), upErr.Status)
		return
	}
	h.Logger.ErrorContext(ctx, "unclassified upstream error", "error", err)
	writeJSON(ctx, w, anthropic.NewErrorBody("api_error", err.Error()), http.StatusInternalServerError)
}

// toRawMap round-trips req through JSON to the map[string]any shape
// cache.Key expects, so the cache layer stays independent of the wire types.
func toRawMap(req openaiwire.ChatCompletionRequest) map[string]any {
	body, err := json.Marshal(req)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil
	}
	return m
}
