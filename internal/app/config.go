package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TokenStorageType represents the storage backend for the upstream credential.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// AuthenticationMethod represents how the stored credential becomes an
// access token on the wire.
type AuthenticationMethod string

const (
	AuthenticationMethodStatic AuthenticationMethod = "static"
	AuthenticationMethodOAuth  AuthenticationMethod = "oauth"
)

// Default configuration values (spec.md §6.3).
const (
	DefaultConfigLogFormat        = LogFormatText
	DefaultConfigLogLevel         = "error"
	DefaultConfigServerHost       = "0.0.0.0"
	DefaultConfigServerPort       = 8082
	DefaultConfigShutdownTimeout  = 5 * time.Second
	DefaultConfigAuthStorage      = TokenStorageTypeEnv
	DefaultConfigAuthMethod       = AuthenticationMethodStatic
	DefaultConfigUpstreamBaseURL  = "https://api.openai.com/v1"
	DefaultConfigBigModel         = "gpt-4o"
	DefaultConfigSmallModel       = "gpt-4o-mini"
	DefaultConfigPreferredProvider = "openai"
	DefaultConfigMaxTokensLimit   = 16384
	DefaultConfigRequestTimeout   = 90 * time.Second
	DefaultConfigResponseCacheTTL = 0 // disabled
	DefaultConfigCacheMaxSize     = 1000
	DefaultConfigCircuitFailures  = 5
	DefaultConfigCircuitRecovery  = 30 * time.Second
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"server_host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"server_port"`
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	Timeout time.Duration `json:"shutdown_timeout"`
}

// UpstreamConfig holds upstream endpoint configuration (spec.md §6.3, §4.4).
type UpstreamConfig struct {
	BaseURL         string            `json:"openai_base_url" validate:"required,url"`
	Azure           bool              `json:"azure,omitempty"`
	AzureAPIVersion string            `json:"azure_api_version,omitempty"`
	CustomHeaders   map[string]string `json:"custom_headers,omitempty"`
	RequestTimeout  time.Duration     `json:"request_timeout"`
}

// AuthConfig describes how to construct the TokenStore/Credential backing the
// upstream request's bearer token (internal/upstream.Credential).
type AuthConfig struct {
	Storage TokenStorageType `json:"auth_storage" validate:"required,oneof=file env keyring"`

	File        string `json:"auth_file,omitempty"`
	EnvKey      string `json:"auth_env_key,omitempty"`
	KeyringUser string `json:"auth_keyring_user,omitempty"`

	Method AuthenticationMethod `json:"auth_method" validate:"required,oneof=oauth static"`

	// OAuth-only fields (Azure AD client-credentials), used when Method==oauth.
	OAuthClientID     string   `json:"oauth_client_id,omitempty"`
	OAuthClientSecret string   `json:"oauth_client_secret,omitempty"`
	OAuthTokenURL     string   `json:"oauth_token_url,omitempty"`
	OAuthScopes       []string `json:"oauth_scopes,omitempty"`
}

// NewTokenStore creates a TokenStore from the authentication configuration.
func (a *AuthConfig) NewTokenStore() (tokenstore.TokenStore, error) {
	switch a.Storage {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(a.File)
	case TokenStorageTypeEnv:
		return tokenstore.NewEnvStore(a.EnvKey)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore("anthropic-proxy-upstream", a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// ModelConfig holds model-name-rewriting configuration (spec.md §6.4).
type ModelConfig struct {
	BigModel         string `json:"big_model"`
	SmallModel       string `json:"small_model"`
	PreferredProvider string `json:"preferred_provider"`
	MaxTokensLimit   int    `json:"max_tokens_limit" validate:"required,gt=0"`
}

// CacheConfig holds the supplemented response-cache configuration.
type CacheConfig struct {
	TTL     time.Duration `json:"response_cache_ttl"`
	MaxSize int           `json:"response_cache_max_size"`
}

// CircuitBreakerConfig holds the supplemented circuit-breaker configuration.
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"circuit_failure_threshold"`
	RecoveryTimeout  time.Duration `json:"circuit_recovery_timeout"`
}

// Config holds the application's full configuration, built once at startup
// from TOML file + environment + CLI flags + defaults (spec.md §9 "Global
// configuration": one immutable value passed explicitly to every component).
type Config struct {
	LogLevel  string    `json:"log_level"`
	LogFormat LogFormat `json:"log_format" validate:"oneof=text json"`

	Server   ServerConfig   `json:"server"`
	Shutdown ShutdownConfig `json:"shutdown"`
	Upstream UpstreamConfig `json:"upstream"`
	Auth     AuthConfig     `json:"auth"`
	Model    ModelConfig    `json:"model"`
	Cache    CacheConfig    `json:"cache"`
	Circuit  CircuitBreakerConfig `json:"circuit"`

	// AnthropicAPIKey, when non-empty, is the shared secret inbound clients
	// must present (spec.md §6.2). Empty means auth is disabled.
	AnthropicAPIKey string `json:"anthropic_api_key,omitempty"`

	// OTelExporter selects the observability log exporter: "", "stdout",
	// "otlp-grpc", or "otlp-http".
	OTelExporter string `json:"otel_exporter,omitempty"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogLevel == "" {
		c.LogLevel = DefaultConfigLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultConfigUpstreamBaseURL
	}
	if c.Upstream.RequestTimeout == 0 {
		c.Upstream.RequestTimeout = DefaultConfigRequestTimeout
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}
	if c.Auth.Method == "" {
		c.Auth.Method = DefaultConfigAuthMethod
	}
	if c.Auth.Storage == TokenStorageTypeEnv && c.Auth.EnvKey == "" {
		c.Auth.EnvKey = "OPENAI_API_KEY"
	}
	if c.Model.BigModel == "" {
		c.Model.BigModel = DefaultConfigBigModel
	}
	if c.Model.SmallModel == "" {
		c.Model.SmallModel = DefaultConfigSmallModel
	}
	if c.Model.PreferredProvider == "" {
		c.Model.PreferredProvider = DefaultConfigPreferredProvider
	}
	if c.Model.MaxTokensLimit == 0 {
		c.Model.MaxTokensLimit = DefaultConfigMaxTokensLimit
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = DefaultConfigCacheMaxSize
	}
	if c.Circuit.FailureThreshold == 0 {
		c.Circuit.FailureThreshold = DefaultConfigCircuitFailures
	}
	if c.Circuit.RecoveryTimeout == 0 {
		c.Circuit.RecoveryTimeout = DefaultConfigCircuitRecovery
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "anthropic-proxy", "upstream-credential")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeEnv:
		// env_key must be explicitly configured or defaulted above.
	}

	return nil
}

// Validate validates the configuration using struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Auth.Method == AuthenticationMethodOAuth && c.Auth.Storage == TokenStorageTypeEnv {
		return errors.New("oauth authentication requires writable storage, env is read-only")
	}
	if c.Auth.Method == AuthenticationMethodOAuth {
		if c.Auth.OAuthClientID == "" || c.Auth.OAuthTokenURL == "" {
			return errors.New("oauth authentication requires oauth_client_id and oauth_token_url")
		}
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case TokenStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

// SlogLevel parses LogLevel into a slog.Level, defaulting to Error to match
// spec.md §6.3's LOG_LEVEL default.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
