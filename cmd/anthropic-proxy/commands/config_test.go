package commands

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/urfave/cli/v3"
)

func TestUpperSnakeToHeaderName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"X_API_VERSION", "X-Api-Version"},
		{"AUTHORIZATION", "Authorization"},
		{"X_MY_CUSTOM_HEADER", "X-My-Custom-Header"},
	}
	for _, tt := range tests {
		if got := upperSnakeToHeaderName(tt.in); got != tt.want {
			t.Errorf("upperSnakeToHeaderName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTransformEnvKey_KnownKeys(t *testing.T) {
	tests := []struct {
		key      string
		wantPath string
	}{
		{"OPENAI_BASE_URL", "upstream.openai_base_url"},
		{"BIG_MODEL", "model.big_model"},
		{"SERVER_PORT", "server.server_port"},
		{"AUTH_STORAGE", "auth.auth_storage"},
	}
	for _, tt := range tests {
		dotPath, value := transformEnvKey(tt.key, "val")
		if dotPath != tt.wantPath {
			t.Errorf("transformEnvKey(%q) path = %q, want %q", tt.key, dotPath, tt.wantPath)
		}
		if value != "val" {
			t.Errorf("transformEnvKey(%q) value = %v, want val", tt.key, value)
		}
	}
}

func TestTransformEnvKey_CustomHeaderPrefix(t *testing.T) {
	dotPath, value := transformEnvKey("CUSTOM_HEADER_X_API_VERSION", "2024-01-01")
	if dotPath != "upstream.custom_headers.X-Api-Version" {
		t.Errorf("dotPath = %q, want upstream.custom_headers.X-Api-Version", dotPath)
	}
	if value != "2024-01-01" {
		t.Errorf("value = %v, want 2024-01-01", value)
	}
}

func TestTransformEnvKey_UnrecognizedKeyIsDropped(t *testing.T) {
	dotPath, value := transformEnvKey("SOME_UNRELATED_VARIABLE", "x")
	if dotPath != "" || value != nil {
		t.Errorf("transformEnvKey(unrecognized) = (%q, %v), want (\"\", nil)", dotPath, value)
	}
}

func TestTransformEnvKey_BareCustomHeaderPrefixIsDropped(t *testing.T) {
	dotPath, value := transformEnvKey("CUSTOM_HEADER_", "x")
	if dotPath != "" || value != nil {
		t.Errorf("transformEnvKey(bare prefix) = (%q, %v), want (\"\", nil)", dotPath, value)
	}
}

func TestSecondsToDurationHook_IgnoresNonDurationTargets(t *testing.T) {
	got, err := secondsToDurationHook(reflect.TypeOf(""), reflect.TypeOf(0), "90")
	if err != nil {
		t.Fatalf("secondsToDurationHook() error = %v", err)
	}
	if got != "90" {
		t.Errorf("got = %v, want the input passed through unchanged", got)
	}
}

func TestSecondsToDurationHook_ConvertsStringSeconds(t *testing.T) {
	durType := reflect.TypeOf(time.Duration(0))
	got, err := secondsToDurationHook(reflect.TypeOf(""), durType, "90")
	if err != nil {
		t.Fatalf("secondsToDurationHook() error = %v", err)
	}
	if got != 90*time.Second {
		t.Errorf("got = %v, want 90s", got)
	}
}

func TestSecondsToDurationHook_ConvertsFloatSeconds(t *testing.T) {
	durType := reflect.TypeOf(time.Duration(0))
	got, err := secondsToDurationHook(reflect.TypeOf(float64(0)), durType, 1.5)
	if err != nil {
		t.Fatalf("secondsToDurationHook() error = %v", err)
	}
	if got != 1500*time.Millisecond {
		t.Errorf("got = %v, want 1.5s", got)
	}
}

func TestSecondsToDurationHook_ConvertsIntSeconds(t *testing.T) {
	durType := reflect.TypeOf(time.Duration(0))
	got, err := secondsToDurationHook(reflect.TypeOf(0), durType, 30)
	if err != nil {
		t.Fatalf("secondsToDurationHook() error = %v", err)
	}
	if got != 30*time.Second {
		t.Errorf("got = %v, want 30s", got)
	}
}

func TestSecondsToDurationHook_NonNumericStringPassesThrough(t *testing.T) {
	durType := reflect.TypeOf(time.Duration(0))
	got, err := secondsToDurationHook(reflect.TypeOf(""), durType, "not-a-number")
	if err != nil {
		t.Fatalf("secondsToDurationHook() error = %v", err)
	}
	if got != "not-a-number" {
		t.Errorf("got = %v, want the unparseable string passed through", got)
	}
}

func TestLoadConfig_AppliesEnvironmentOverrides(t *testing.T) {
	environFunc := func() []string {
		return []string{
			"BIG_MODEL=gpt-4-turbo",
			"SERVER_PORT=9090",
			"REQUEST_TIMEOUT=45",
			"UNRELATED_NOISE=ignored",
		}
	}

	cfg, err := loadConfig("", nil, environFunc)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Model.BigModel != "gpt-4-turbo" {
		t.Errorf("Model.BigModel = %q, want gpt-4-turbo", cfg.Model.BigModel)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Upstream.RequestTimeout != 45*time.Second {
		t.Errorf("Upstream.RequestTimeout = %v, want 45s", cfg.Upstream.RequestTimeout)
	}
}

func TestLoadConfig_DefaultsAppliedWithNoOverrides(t *testing.T) {
	cfg, err := loadConfig("", nil, func() []string { return nil })
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.Port != 8082 {
		t.Errorf("Server.Port = %d, want default 8082", cfg.Server.Port)
	}
}

func TestExtractAndTransformFlags_ServeCommandSurface(t *testing.T) {
	var got map[string]any

	cmd := proxyServeCommand()
	cmd.Action = func(ctx context.Context, cmd *cli.Command) error {
		got = extractAndTransformFlags(cmd)
		return nil
	}

	err := cmd.Run(context.Background(), []string{
		"serve",
		"--host", "127.0.0.1",
		"--port", "9999",
		"--anthropic-api-key", "sk-inbound",
		"--max-tokens-limit", "8192",
		"--request-timeout", "30",
	})
	if err != nil {
		t.Fatalf("cmd.Run() error = %v", err)
	}

	want := map[string]any{
		"server.server_host": "127.0.0.1",
		"server.server_port": 9999,
		"anthropic_api_key":  "sk-inbound",
		"model.max_tokens_limit": 8192,
		"upstream.request_timeout": 30,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("flag dot path %q = %v (%T), want %v (%T)", k, got[k], got[k], v, v)
		}
	}
}

func TestLoadConfig_ServeCommandFlagsOverrideDefaults(t *testing.T) {
	cmd := proxyServeCommand()
	var cfgErr error
	var gotBigModel string
	var gotPort uint16
	cmd.Action = func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig("", cmd, func() []string { return nil })
		cfgErr = err
		if err == nil {
			gotBigModel, gotPort = cfg.Model.BigModel, cfg.Server.Port
		}
		return nil
	}

	if err := cmd.Run(context.Background(), []string{"serve", "--big-model", "gpt-4-turbo", "--port", "7000"}); err != nil {
		t.Fatalf("cmd.Run() error = %v", err)
	}
	if cfgErr != nil {
		t.Fatalf("loadConfig() error = %v", cfgErr)
	}
	if gotBigModel != "gpt-4-turbo" {
		t.Errorf("Model.BigModel = %q, want %q", gotBigModel, "gpt-4-turbo")
	}
	if gotPort != 7000 {
		t.Errorf("Server.Port = %d, want 7000", gotPort)
	}
}
