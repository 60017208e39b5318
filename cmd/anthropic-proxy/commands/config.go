package commands

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/urfave/cli/v3"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/app"
)

// envKeyMap maps the flat environment variables of spec.md §6.3 to the dot
// path of the Config field they populate. Unlike the double-underscore
// nested scheme this replaces, these names don't decompose mechanically
// (e.g. SERVER_HOST -> server.server_host), so the mapping is explicit.
var envKeyMap = map[string]string{
	"OPENAI_BASE_URL":     "upstream.openai_base_url",
	"REQUEST_TIMEOUT":     "upstream.request_timeout",
	"ANTHROPIC_API_KEY":   "anthropic_api_key",
	"BIG_MODEL":           "model.big_model",
	"SMALL_MODEL":         "model.small_model",
	"PREFERRED_PROVIDER":  "model.preferred_provider",
	"MAX_TOKENS_LIMIT":    "model.max_tokens_limit",
	"SERVER_HOST":         "server.server_host",
	"SERVER_PORT":         "server.server_port",
	"LOG_LEVEL":           "log_level",
	"LOG_FORMAT":          "log_format",
	"RESPONSE_CACHE_TTL":  "cache.response_cache_ttl",
	"AUTH_STORAGE":        "auth.auth_storage",
	"AUTH_FILE":           "auth.auth_file",
	"AUTH_ENV_KEY":        "auth.auth_env_key",
	"AUTH_KEYRING_USER":   "auth.auth_keyring_user",
	"AUTH_METHOD":         "auth.auth_method",
	"OAUTH_CLIENT_ID":     "auth.oauth_client_id",
	"OAUTH_CLIENT_SECRET": "auth.oauth_client_secret",
	"OAUTH_TOKEN_URL":     "auth.oauth_token_url",
}

const customHeaderEnvPrefix = "CUSTOM_HEADER_"

// loadConfig loads application configuration from various sources with
// precedence: config file -> environment variables -> CLI flags -> defaults.
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		TransformFunc: transformEnvKey,
		EnvironFunc:   environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	if cmd != nil {
		flagValues := extractAndTransformFlags(cmd)
		if err := k.Load(confmap.Provider(flagValues, "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.ComposeDecodeHookFunc(secondsToDurationHook),
			Result:           config,
		},
	}
	if err := k.UnmarshalWithConf("", config, unmarshalConf); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// transformEnvKey maps a raw OS environment variable to its Config dot path,
// discarding anything not in envKeyMap or prefixed with CUSTOM_HEADER_ (the
// only dynamic key family, spec.md §6.3's "CUSTOM_HEADER_<UPPER_SNAKE>").
func transformEnvKey(key, value string) (string, any) {
	if dotPath, ok := envKeyMap[key]; ok {
		return dotPath, value
	}
	if rest, ok := strings.CutPrefix(key, customHeaderEnvPrefix); ok && rest != "" {
		return "upstream.custom_headers." + upperSnakeToHeaderName(rest), value
	}
	return "", nil
}

// upperSnakeToHeaderName converts e.g. "X_API_VERSION" to "X-Api-Version".
func upperSnakeToHeaderName(upperSnake string) string {
	parts := strings.Split(strings.ToLower(upperSnake), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}

// secondsToDurationHook interprets env/CLI values destined for a
// time.Duration field as a count of whole seconds (spec.md §6.3's
// REQUEST_TIMEOUT is documented as seconds, not a Go duration string).
func secondsToDurationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}

	switch v := data.(type) {
	case string:
		seconds, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return data, nil
		}
		return time.Duration(seconds * float64(time.Second)), nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return data, nil
	}
}

// extractAndTransformFlags transforms CLI flag names to match config
// structure. Examples: --host -> server.server_host.
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	flagDotPaths := map[string]string{
		"log-format":          "log_format",
		"log-level":           "log_level",
		"host":                "server.server_host",
		"port":                "server.server_port",
		"openai-base-url":     "upstream.openai_base_url",
		"anthropic-api-key":   "anthropic_api_key",
		"big-model":           "model.big_model",
		"small-model":         "model.small_model",
		"preferred-provider":  "model.preferred_provider",
		"max-tokens-limit":    "model.max_tokens_limit",
		"request-timeout":     "upstream.request_timeout",
	}

	for _, name := range cmd.FlagNames() {
		if !cmd.IsSet(name) {
			continue
		}
		dotPath, ok := flagDotPaths[name]
		if !ok {
			continue
		}
		if value := cmd.Value(name); value != nil {
			values[dotPath] = value
		}
	}

	return values
}
