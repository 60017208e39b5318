package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/cache"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/proxy"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/registry"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/tokensource"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/upstream"
)

// App orchestrates the lifecycle of the proxy server and its supporting
// services (credential, circuit breaker, cache, cancellation registry).
type App struct {
	cfg      *Config
	proxy    *proxy.Proxy
	registry *registry.Registry
}

// New assembles an App from configuration: the upstream credential, the
// circuit-breaker-wrapped upstream adapter, the response cache, the
// cancellation registry, and the HTTP surface. No I/O is performed beyond
// what each component's constructor already defers.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	credential, err := newCredential(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream credential: %w", err)
	}

	logger := slog.Default()

	var breaker *upstream.CircuitBreaker
	if cfg.Circuit.FailureThreshold > 0 {
		breaker = upstream.NewCircuitBreaker("upstream", cfg.Circuit.FailureThreshold, cfg.Circuit.RecoveryTimeout, logger)
	}

	adapterOpts := []upstream.Option{
		upstream.WithHTTPClient(&http.Client{Transport: proxy.DefaultTransport(), Timeout: cfg.Upstream.RequestTimeout}),
		upstream.WithLogger(logger),
	}
	if cfg.Upstream.Azure {
		adapterOpts = append(adapterOpts, upstream.WithAzure(cfg.Upstream.AzureAPIVersion))
	}
	if len(cfg.Upstream.CustomHeaders) > 0 {
		adapterOpts = append(adapterOpts, upstream.WithCustomHeaders(cfg.Upstream.CustomHeaders))
	}
	if breaker != nil {
		adapterOpts = append(adapterOpts, upstream.WithCircuitBreaker(breaker))
	}

	adapter := upstream.New(cfg.Upstream.BaseURL, credential, adapterOpts...)

	var responseCache *cache.ResponseCache
	if cfg.Cache.TTL > 0 {
		responseCache = cache.New(cfg.Cache.TTL, cfg.Cache.MaxSize)
	}

	reg := registry.New()

	proxyCfg := proxy.Config{
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		Model: proxy.ModelConfig{
			BigModel:          cfg.Model.BigModel,
			SmallModel:        cfg.Model.SmallModel,
			PreferredProvider: cfg.Model.PreferredProvider,
			MaxTokensLimit:    cfg.Model.MaxTokensLimit,
		},
		Upstream: proxy.UpstreamConfig{
			BaseURL:         cfg.Upstream.BaseURL,
			Azure:           cfg.Upstream.Azure,
			AzureAPIVersion: cfg.Upstream.AzureAPIVersion,
			CustomHeaders:   cfg.Upstream.CustomHeaders,
		},
	}

	proxyServer, err := proxy.New(proxyCfg, adapter, credential, responseCache, reg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	return &App{cfg: cfg, proxy: proxyServer, registry: reg}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection
// for coordinated cleanup, matching the teacher's lifecycle idiom.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	slog.InfoContext(gCtx, "starting proxy server", "address", address)
	proxyErrCh, err := a.proxy.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.proxy.Shutdown)

	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// newCredential creates the upstream.Credential matching the configured
// authentication method. No I/O is performed - token acquisition is deferred
// to the first Token() call.
func newCredential(cfg AuthConfig) (upstream.Credential, error) {
	store, err := cfg.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	switch cfg.Method {
	case AuthenticationMethodStatic:
		return upstream.NewStaticCredential(store), nil
	case AuthenticationMethodOAuth:
		factory := func(string) oauth2.TokenSource {
			return tokensource.NewClientCredentialsSource(
				cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.OAuthTokenURL, cfg.OAuthScopes,
			)
		}
		return upstream.NewOAuthCredential(factory, store, slog.Default())
	default:
		return nil, fmt.Errorf("unsupported authentication method: %s", cfg.Method)
	}
}
