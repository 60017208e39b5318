// Package upstream implements the Upstream Client Adapter of spec.md §4.4:
// Complete and StreamComplete over an OpenAI-Chat-Completions-compatible
// endpoint, with cancellation, native/Azure URL handling, custom header
// injection, credential management, circuit breaking, and error
// classification (§4.5).
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/openaiwire"
)

// Client is the abstract upstream client the translators and handlers
// depend on (spec.md §1: "The core consumes an abstract upstream client
// offering two operations").
type Client interface {
	Complete(ctx context.Context, req openaiwire.ChatCompletionRequest) (openaiwire.ChatCompletion, error)
	StreamComplete(ctx context.Context, req openaiwire.ChatCompletionRequest) (iter.Seq2[openaiwire.ChatCompletionChunk, error], error)
}

// Error wraps an upstream or local failure with its classified Kind and HTTP
// status, so the HTTP layer need not re-classify.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func newClassifiedError(message string, fromLocal bool) *Error {
	kind, status, msg := Classify(message, fromLocal)
	return &Error{Kind: kind, Status: status, Message: msg}
}

// Adapter is the default Client implementation, making raw net/http calls
// against the configured upstream base URL.
type Adapter struct {
	httpClient      *http.Client
	baseURL         string
	azure           bool
	azureAPIVersion string
	credential      Credential
	customHeaders   map[string]string
	breaker         *CircuitBreaker
	logger          *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

func WithHTTPClient(c *http.Client) Option { return func(a *Adapter) { a.httpClient = c } }

// WithAzure switches the adapter to Azure OpenAI's URL shape, which embeds
// the deployment (model) name in the path and requires an api-version query
// parameter (spec.md §4.4: "two URL styles (native and Azure-style, where a
// version string is required)").
func WithAzure(apiVersion string) Option {
	return func(a *Adapter) { a.azure = true; a.azureAPIVersion = apiVersion }
}

func WithCustomHeaders(headers map[string]string) Option {
	return func(a *Adapter) { a.customHeaders = headers }
}

func WithCircuitBreaker(cb *CircuitBreaker) Option { return func(a *Adapter) { a.breaker = cb } }

func WithLogger(logger *slog.Logger) Option { return func(a *Adapter) { a.logger = logger } }

// New creates an Adapter targeting baseURL, authenticating via credential.
func New(baseURL string, credential Credential, opts ...Option) *Adapter {
	a := &Adapter{
		httpClient: &http.Client{Timeout: 0}, // no timeout; deadlines come from ctx or a WithHTTPClient client
		baseURL:    strings.TrimRight(baseURL, "/"),
		credential: credential,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) endpoint(model string) string {
	if a.azure {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", a.baseURL, model, a.azureAPIVersion)
	}
	return a.baseURL + "/chat/completions"
}

func (a *Adapter) newRequest(ctx context.Context, req openaiwire.ChatCompletionRequest) (*http.Request, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding upstream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(req.Model), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	token, err := a.credential.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving upstream credential: %w", err)
	}
	if a.azure {
		httpReq.Header.Set("api-key", token)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	for k, v := range a.customHeaders {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

// Complete performs a non-streaming upstream call. Cancellation is carried
// by ctx: if it is done before or during the call, the in-flight request is
// aborted and Complete returns a KindCancelled error.
func (a *Adapter) Complete(ctx context.Context, req openaiwire.ChatCompletionRequest) (openaiwire.ChatCompletion, error) {
	var result openaiwire.ChatCompletion
	err := a.withBreaker(func() error {
		var innerErr error
		result, innerErr = a.doComplete(ctx, req)
		return innerErr
	})
	return result, err
}

func (a *Adapter) doComplete(ctx context.Context, req openaiwire.ChatCompletionRequest) (openaiwire.ChatCompletion, error) {
	req.Stream = false
	req.StreamOptions = nil

	httpReq, err := a.newRequest(ctx, req)
	if err != nil {
		return openaiwire.ChatCompletion{}, newClassifiedError(err.Error(), true)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return openaiwire.ChatCompletion{}, &Error{Kind: KindCancelled, Status: 499, Message: "request cancelled"}
		}
		return openaiwire.ChatCompletion{}, newClassifiedError(err.Error(), false)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return openaiwire.ChatCompletion{}, newClassifiedError(err.Error(), false)
	}

	if resp.StatusCode >= 300 {
		return openaiwire.ChatCompletion{}, newClassifiedError(upstreamErrorMessage(resp.StatusCode, bodyBytes), false)
	}

	var completion openaiwire.ChatCompletion
	if err := json.Unmarshal(bodyBytes, &completion); err != nil {
		return openaiwire.ChatCompletion{}, newClassifiedError(fmt.Sprintf("decoding upstream response: %v", err), true)
	}
	return completion, nil
}

// StreamComplete performs a streaming upstream call, returning a pull
// iterator over decoded chunks. The underlying response body is closed
// automatically when iteration ends for any reason (exhaustion, caller
// break, or ctx cancellation).
func (a *Adapter) StreamComplete(ctx context.Context, req openaiwire.ChatCompletionRequest) (iter.Seq2[openaiwire.ChatCompletionChunk, error], error) {
	req.Stream = true
	if req.StreamOptions == nil {
		req.StreamOptions = &openaiwire.StreamOptions{IncludeUsage: true}
	}

	httpReq, err := a.newRequest(ctx, req)
	if err != nil {
		return nil, newClassifiedError(err.Error(), true)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindCancelled, Status: 499, Message: "request cancelled"}
		}
		return nil, newClassifiedError(err.Error(), false)
	}

	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, newClassifiedError(upstreamErrorMessage(resp.StatusCode, bodyBytes), false)
	}

	seq := func(yield func(openaiwire.ChatCompletionChunk, error) bool) {
		defer resp.Body.Close()

		_ = sseLines(resp.Body, func(raw string) bool {
			if ctx.Err() != nil {
				yield(openaiwire.ChatCompletionChunk{}, &Error{Kind: KindCancelled, Status: 499, Message: "request cancelled"})
				return false
			}
			var chunk openaiwire.ChatCompletionChunk
			if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
				return yield(openaiwire.ChatCompletionChunk{}, fmt.Errorf("decoding upstream chunk: %w", err))
			}
			return yield(chunk, nil)
		})
	}

	return seq, nil
}

func (a *Adapter) withBreaker(fn func() error) error {
	if a.breaker == nil {
		return fn()
	}
	err := a.breaker.Execute(fn)
	if err != nil && strings.Contains(err.Error(), "circuit breaker open") {
		return newClassifiedError(err.Error(), false)
	}
	return err
}

func upstreamErrorMessage(status int, body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return fmt.Sprintf("upstream returned status %d: %s", status, strings.TrimSpace(string(body)))
}

// DefaultTimeout equals the REQUEST_TIMEOUT default (spec.md §6.3). The
// Adapter does not apply it: a client built by New has no timeout of its own.
const DefaultTimeout = 90 * time.Second
