package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/cache"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/registry"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/translate"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/upstream"
)

// ModelConfig is the subset of app.ModelConfig the HTTP surface needs, kept
// as an independent type so this package never imports internal/app (which
// imports this package to assemble the server).
type ModelConfig struct {
	BigModel          string
	SmallModel        string
	PreferredProvider string
	MaxTokensLimit    int
}

// UpstreamConfig is the subset of app.UpstreamConfig the passthrough handler
// needs.
type UpstreamConfig struct {
	BaseURL         string
	Azure           bool
	AzureAPIVersion string
	CustomHeaders   map[string]string
}

// Config is the HTTP-surface-relevant slice of the application configuration.
type Config struct {
	AnthropicAPIKey string
	Model           ModelConfig
	Upstream        UpstreamConfig
}

// serviceInfo is the body of GET /.
type serviceInfo struct {
	Service string `json:"service"`
	Status  string `json:"status"`
}

// healthInfo is the body of GET /health.
type healthInfo struct {
	Status string `json:"status"`
}

// Proxy is the HTTP surface of spec.md §6.1: a protocol-translating reverse
// proxy in front of an OpenAI-Chat-Completions-compatible upstream.
type Proxy struct {
	mux    chi.Router
	server *http.Server
}

var _ http.Handler = (*Proxy)(nil)

// DefaultTransport returns a fresh http.Transport tuned for upstream calls.
// Cloning http.DefaultTransport and returning a new instance on each call
// prevents accidental shared-state mutation.
func DefaultTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = 90 * time.Second
	return t
}

// New wires the full HTTP surface: POST /v1/messages (streaming and
// non-streaming), POST /v1/messages/count_tokens, POST /v1/chat/completions
// (verbatim passthrough), GET / and GET /health.
func New(cfg Config, client upstream.Client, credential upstream.Credential, responseCache *cache.ResponseCache, reg *registry.Registry, logger *slog.Logger) (*Proxy, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{Transport: DefaultTransport()}

	messagesHandler := &MessagesHandler{
		Client:    client,
		ModelCfg:  &translate.ModelConfig{BigModel: cfg.Model.BigModel, SmallModel: cfg.Model.SmallModel, PreferredProvider: cfg.Model.PreferredProvider},
		Cache:     responseCache,
		Registry:  reg,
		MaxTokens: cfg.Model.MaxTokensLimit,
		Logger:    logger,
	}

	countTokensHandler := &CountTokensHandler{}

	passthroughHandler := &PassthroughHandler{
		HTTPClient:      httpClient,
		BaseURL:         cfg.Upstream.BaseURL,
		Credential:      credential,
		Azure:           cfg.Upstream.Azure,
		AzureAPIVersion: cfg.Upstream.AzureAPIVersion,
		AzureModel:      cfg.Model.BigModel,
		CustomHeaders:   cfg.Upstream.CustomHeaders,
		Logger:          logger,
	}

	r := chi.NewRouter()
	r.Use(Logging(logger))
	r.Use(Recovery)
	r.Use(Auth(cfg.AnthropicAPIKey))

	r.Post("/v1/messages", messagesHandler.ServeHTTP)
	r.Post("/v1/messages/count_tokens", countTokensHandler.ServeHTTP)
	r.Post("/v1/chat/completions", passthroughHandler.ServeHTTP)

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(req.Context(), w, serviceInfo{Service: "anthropic-proxy", Status: "ok"}, http.StatusOK)
	})
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(req.Context(), w, healthInfo{Status: "ok"}, http.StatusOK)
	})

	return &Proxy{mux: r}, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Startup errors (port in use, permission denied) are returned synchronously;
// runtime errors are sent to the returned channel.
func (p *Proxy) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	p.server = &http.Server{
		Handler:      p,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		err := p.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	if err := p.server.Shutdown(ctx); err != nil {
		_ = p.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
