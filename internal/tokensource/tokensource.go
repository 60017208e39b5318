package tokensource

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenSourceOption configures a TokenSource.
type TokenSourceOption func(*tokenSourceConfig)

type tokenSourceConfig struct {
	baseTransport http.RoundTripper
}

// WithTransport sets a custom base transport for token refresh requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) TokenSourceOption {
	return func(c *tokenSourceConfig) {
		c.baseTransport = transport
	}
}

// NewClientCredentialsSource creates an oauth2.TokenSource that acquires and
// automatically refreshes access tokens via the standard OAuth2
// client-credentials grant (form-encoded, per RFC 6749 — no provider-specific
// transport quirks needed here, unlike Anthropic's PKCE/authorization-code flow).
func NewClientCredentialsSource(clientID, clientSecret, tokenURL string, scopes []string, opts ...TokenSourceOption) oauth2.TokenSource {
	cfg := &tokenSourceConfig{baseTransport: http.DefaultTransport}
	for _, opt := range opts {
		opt(cfg)
	}

	ccConfig := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: cfg.baseTransport,
	}
	// oauth2 injects custom HTTP clients via context (oauth2.HTTPClient key).
	oauthCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	return ccConfig.TokenSource(oauthCtx)
}
