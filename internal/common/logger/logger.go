// internal/common/logger/logger.go

// Package logger carries structured logging through the engine. Components
// log through the Logger interface with plain field maps; only the binary
// entrypoints touch zap directly.
package logger

import (
	"sort"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Logger is the logging contract every component takes.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger
}

// New builds the underlying zap logger from the configured level and format.
// Unknown levels log at info; any format other than "json" gets the
// development console encoder.
func New(level, format string) *zap.Logger {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}

	cfg := zap.NewDevelopmentConfig()
	if format == "json" {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parsed)

	built, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return built
}

// NewZapAdapter exposes an existing *zap.Logger through the Logger interface.
func NewZapAdapter(l *zap.Logger) Logger {
	return &zapLogger{zap: l}
}

// NewTestLogger routes log output through the test runner.
func NewTestLogger(t testing.TB) Logger {
	return &zapLogger{zap: zaptest.NewLogger(t)}
}

// NewNoOpLogger discards everything.
func NewNoOpLogger() Logger {
	return &zapLogger{zap: zap.NewNop()}
}

type zapLogger struct {
	zap *zap.Logger
}

func (l *zapLogger) Debug(msg string, fields map[string]interface{}) {
	l.zap.Debug(msg, toZapFields(fields)...)
}

func (l *zapLogger) Info(msg string, fields map[string]interface{}) {
	l.zap.Info(msg, toZapFields(fields)...)
}

func (l *zapLogger) Warn(msg string, fields map[string]interface{}) {
	l.zap.Warn(msg, toZapFields(fields)...)
}

func (l *zapLogger) Error(msg string, fields map[string]interface{}) {
	l.zap.Error(msg, toZapFields(fields)...)
}

func (l *zapLogger) WithFields(fields map[string]interface{}) Logger {
	return &zapLogger{zap: l.zap.With(toZapFields(fields)...)}
}

func (l *zapLogger) WithError(err error) Logger {
	return &zapLogger{zap: l.zap.With(zap.Error(err))}
}

// toZapFields sorts keys so entries render in a stable order regardless of
// map iteration.
func toZapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
