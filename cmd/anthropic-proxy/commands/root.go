package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/app"
	"github.com/gabrielmaialva33/anthropic-proxy/internal/observability"
)

// Version is the build version reported by the version subcommand.
const Version = "0.1.0"

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "anthropic-proxy",
		Usage: "Anthropic Messages API proxy in front of an OpenAI-compatible upstream",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: app.DefaultConfigLogLevel,
			},
		},
		Commands: []*cli.Command{
			proxyServeCommand(),
			versionCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print the build version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, err := fmt.Println(Version)
			return err
		},
	}
}

func proxyServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the proxy server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "bind address",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "bind port",
				Value: int(app.DefaultConfigServerPort),
			},
			&cli.StringFlag{
				Name:  "openai-base-url",
				Usage: "upstream OpenAI-compatible base URL",
				Value: app.DefaultConfigUpstreamBaseURL,
			},
			&cli.StringFlag{
				Name:  "openai-api-key",
				Usage: "upstream credential (overrides the configured auth env var)",
			},
			&cli.StringFlag{
				Name:  "anthropic-api-key",
				Usage: "shared secret inbound clients must present (optional)",
			},
			&cli.StringFlag{
				Name:  "big-model",
				Usage: "target model for inbound names containing \"sonnet\"",
				Value: app.DefaultConfigBigModel,
			},
			&cli.StringFlag{
				Name:  "small-model",
				Usage: "target model for inbound names containing \"haiku\"",
				Value: app.DefaultConfigSmallModel,
			},
			&cli.StringFlag{
				Name:  "preferred-provider",
				Usage: "prefix used when rewriting model names",
				Value: app.DefaultConfigPreferredProvider,
			},
			&cli.IntFlag{
				Name:  "max-tokens-limit",
				Usage: "upper bound on forwarded max_tokens",
				Value: app.DefaultConfigMaxTokensLimit,
			},
			&cli.IntFlag{
				Name:  "request-timeout",
				Usage: "per-request deadline, in seconds",
				Value: int(app.DefaultConfigRequestTimeout.Seconds()),
			},
		},
		Action: proxyServeAction,
	}
}

func proxyServeAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.IsSet("openai-api-key") {
		if err := os.Setenv(cfg.Auth.EnvKey, cmd.String("openai-api-key")); err != nil {
			return fmt.Errorf("failed to set upstream credential env var: %w", err)
		}
	}

	if err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
