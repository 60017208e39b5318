package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/tokenstore"
)

// Credential supplies the bearer token placed on every upstream request.
type Credential interface {
	Token(ctx context.Context) (string, error)
}

// StaticCredential reads a token from a tokenstore.TokenStore (typically an
// EnvStore around OPENAI_API_KEY, or a FileStore/KeyringStore for other
// deployments). The token is read once and cached, since static credentials
// by definition do not rotate.
type StaticCredential struct {
	once  sync.Once
	token string
	err   error
	store tokenstore.TokenStore
}

func NewStaticCredential(store tokenstore.TokenStore) *StaticCredential {
	return &StaticCredential{store: store}
}

func (c *StaticCredential) Token(ctx context.Context) (string, error) {
	c.once.Do(func() {
		c.token, c.err = c.store.Read(ctx)
	})
	return c.token, c.err
}

// TokenSourceFactory creates an oauth2.TokenSource from a stored token string.
type TokenSourceFactory func(token string) oauth2.TokenSource

// OAuthCredential wraps an oauth2.TokenSource with token persistence,
// adapted from the teacher's Anthropic-OAuth-login credential management to
// authenticate to an Azure-AD-fronted (or any OAuth2 client-credentials)
// upstream instead. Initialization is deferred to avoid I/O during startup.
type OAuthCredential struct {
	factory    TokenSourceFactory
	tokenStore tokenstore.TokenStore
	logger     *slog.Logger

	tokenSource func() (oauth2.TokenSource, error)

	lastToken atomic.Pointer[string]
	writeMu   sync.Mutex
}

var _ Credential = (*OAuthCredential)(nil)

// NewOAuthCredential creates an OAuthCredential. No I/O is performed until
// the first Token call.
func NewOAuthCredential(factory TokenSourceFactory, tokenStore tokenstore.TokenStore, logger *slog.Logger) (*OAuthCredential, error) {
	if factory == nil {
		return nil, fmt.Errorf("missing token source factory")
	}
	if tokenStore == nil {
		return nil, fmt.Errorf("missing token store")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &OAuthCredential{factory: factory, tokenStore: tokenStore, logger: logger}
	c.tokenSource = sync.OnceValues(c.createTokenSource)
	return c, nil
}

func (c *OAuthCredential) createTokenSource() (oauth2.TokenSource, error) {
	ctx := context.Background()
	initial, err := c.tokenStore.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read initial token: %w", err)
	}
	c.lastToken.Store(&initial)
	return c.factory(initial), nil
}

// Token returns a valid access token, refreshing if necessary and persisting
// the refreshed token for next startup.
func (c *OAuthCredential) Token(ctx context.Context) (string, error) {
	ts, err := c.tokenSource()
	if err != nil {
		return "", err
	}

	fresh, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("getting token from token source: %w", err)
	}

	lastPtr := c.lastToken.Load()
	last := ""
	if lastPtr != nil {
		last = *lastPtr
	}

	if fresh.RefreshToken != "" && fresh.RefreshToken != last {
		c.writeMu.Lock()
		if err := c.tokenStore.Write(ctx, fresh.RefreshToken); err != nil {
			c.logger.ErrorContext(ctx, "failed to persist refresh token")
		} else {
			newToken := fresh.RefreshToken
			c.lastToken.Store(&newToken)
		}
		c.writeMu.Unlock()
	}

	return fresh.AccessToken, nil
}
