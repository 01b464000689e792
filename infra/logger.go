package infra

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/tnqbao/gau-compute-dispatcher/config"
)

type LoggerClient struct {
	logger *slog.Logger
}

func InitLoggerClient(cfg *config.EnvConfig, provider *sdklog.LoggerProvider) *LoggerClient {
	level := slog.LevelInfo
	if cfg.Environment.Mode == "development" {
		level = slog.LevelDebug
	}

	return newLoggerClient(os.Stdout, level, cfg.Grafana.ServiceName, provider)
}

// newLoggerClient writes to w and, when provider is set, also exports every
// record through the OpenTelemetry log bridge.
func newLoggerClient(w io.Writer, level slog.Level, serviceName string, provider *sdklog.LoggerProvider) *LoggerClient {
	handlers := []slog.Handler{
		slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}),
	}
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(
			serviceName,
			otelslog.WithLoggerProvider(provider),
		))
	}

	return &LoggerClient{logger: slog.New(slogmulti.Fanout(handlers...))}
}

// NewLoggerClient returns a console-only logger writing to w.
func NewLoggerClient(w io.Writer) *LoggerClient {
	return &LoggerClient{logger: slog.New(slog.NewTextHandler(w, nil))}
}

func (l *LoggerClient) DebugWithContextf(ctx context.Context, format string, args ...interface{}) {
	l.logger.DebugContext(ctx, fmt.Sprintf(format, args...), traceAttrs(ctx)...)
}

func (l *LoggerClient) InfoWithContextf(ctx context.Context, format string, args ...interface{}) {
	l.logger.InfoContext(ctx, fmt.Sprintf(format, args...), traceAttrs(ctx)...)
}

func (l *LoggerClient) WarningWithContextf(ctx context.Context, format string, args ...interface{}) {
	l.logger.WarnContext(ctx, fmt.Sprintf(format, args...), traceAttrs(ctx)...)
}

// ErrorWithContextf logs at error level and records err on the active span, if any.
func (l *LoggerClient) ErrorWithContextf(ctx context.Context, err error, format string, args ...interface{}) {
	attrs := traceAttrs(ctx)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		trace.SpanFromContext(ctx).RecordError(err)
	}
	l.logger.ErrorContext(ctx, fmt.Sprintf(format, args...), attrs...)
}

func traceAttrs(ctx context.Context) []any {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []any{
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	}
}
