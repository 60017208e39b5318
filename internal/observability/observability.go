// Package observability wires up the process-wide slog logger, optionally
// bridging it to an OpenTelemetry log exporter selected by OTEL_EXPORTER.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Instrument configures slog.Default() for the process: a plain text/json
// handler by default, or an OTel-bridged handler when OTEL_EXPORTER names a
// supported exporter ("stdout", "otlp-grpc", "otlp-http").
func Instrument(logLevel, logFormat string) error {
	level := parseLevel(logLevel)

	exporterKind := strings.TrimSpace(os.Getenv("OTEL_EXPORTER"))
	if exporterKind == "" {
		slog.SetDefault(slog.New(baseHandler(logFormat, level)))
		return nil
	}

	exporter, err := newExporter(exporterKind)
	if err != nil {
		return fmt.Errorf("creating otel log exporter: %w", err)
	}

	severityFiltered := minsev.NewLogProcessor(
		sdklog.NewBatchProcessor(exporter),
		minsevLevel(level),
	)
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(severityFiltered))

	handler := otelslog.NewHandler("anthropic-proxy", otelslog.WithLoggerProvider(provider))
	slog.SetDefault(slog.New(handler))
	return nil
}

func baseHandler(logFormat string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(logFormat, "json") {
		return slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.NewTextHandler(os.Stderr, opts)
}

func newExporter(kind string) (sdklog.Exporter, error) {
	ctx := context.Background()
	switch strings.ToLower(kind) {
	case "stdout":
		return stdoutlog.New()
	case "otlp-grpc":
		return otlploggrpc.New(ctx)
	case "otlp-http":
		return otlploghttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported OTEL_EXPORTER: %q", kind)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func minsevLevel(level slog.Level) otellog.Severity {
	switch {
	case level <= slog.LevelDebug:
		return otellog.SeverityDebug
	case level <= slog.LevelInfo:
		return otellog.SeverityInfo
	case level <= slog.LevelWarn:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityError
	}
}
