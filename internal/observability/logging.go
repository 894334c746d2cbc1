package observability

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xtremefabrix/formrelay/internal/config"
	"github.com/xtremefabrix/formrelay/model"
)

// Context key for the logger.
type loggerKey struct{}

// NewLogger creates a zap.Logger configured for JSON output to stdout.
//
// Log level usage conventions:
//   - error: Infrastructure failures (audit store down, unhandled panics), 5xx responses
//   - warn:  Rejected or unreachable deliveries, in-flight rejections, 4xx responses
//   - info:  Request end, submission outcomes, form definition loading
//   - debug: Redacted payloads, validation details
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapCfg.Build()
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger stored in the context, or the provided
// fallback if none is found.
func LoggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// RequestLogger returns a logger enriched with RequestContext fields.
// If no logger is in the context, the fallback is used.
func RequestLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger := LoggerFrom(ctx, fallback)

	rctx := model.RequestContextFrom(ctx)
	if rctx == nil {
		return logger
	}

	fields := []zap.Field{
		zap.String("correlation_id", rctx.CorrelationID),
	}
	if rctx.TraceID != "" {
		fields = append(fields, zap.String("trace_id", rctx.TraceID))
	}
	if rctx.OperatorID != "" {
		fields = append(fields, zap.String("operator_id", rctx.OperatorID))
	}

	return logger.With(fields...)
}

// defaultSensitiveFields holds the field names whose values are personal
// data. Form field names are matched case-insensitively by substring, so
// "emailFabrix" and "phoneFabrix" are covered by "email" and "phone".
var defaultSensitiveFields = []string{
	"email",
	"phone",
	"password",
	"secret",
	"token",
	"authorization",
}

// RedactBody returns a copy of body with sensitive fields replaced by
// "[REDACTED]". The sensitiveFields list is merged with the default names.
// This is intended for debug-level logging only.
func RedactBody(body map[string]string, sensitiveFields []string) map[string]string {
	if body == nil {
		return nil
	}

	names := make([]string, 0, len(defaultSensitiveFields)+len(sensitiveFields))
	names = append(names, defaultSensitiveFields...)
	for _, f := range sensitiveFields {
		names = append(names, strings.ToLower(f))
	}

	result := make(map[string]string, len(body))
	for k, v := range body {
		if v != "" && sensitive(k, names) {
			result[k] = "[REDACTED]"
		} else {
			result[k] = v
		}
	}
	return result
}

func sensitive(field string, names []string) bool {
	lower := strings.ToLower(field)
	for _, n := range names {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
