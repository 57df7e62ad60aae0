package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	CorrelationId = "correlation_id"

	correlationKey contextKey = "Correlation-Id"
)

var (
	logger  *logrus.Logger
	newline = regexp.MustCompile(`(\n)|(\r\n)`)
)

func init() {
	logger = logrus.New()
	logger.SetOutput(os.Stdout)
}

// Configure sets the level and switches to JSON output outside development.
func Configure(level string, json bool) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logger.SetLevel(lvl)
	if json {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

func entry(ctx context.Context) *logrus.Entry {
	return logger.WithField(CorrelationId, CorrelationID(ctx))
}

func WithFields(ctx context.Context, fields logrus.Fields) *logrus.Entry {
	return entry(ctx).WithFields(fields)
}

func Fatalf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Fatalf(format, args...)
}

func Infof(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Infof(format, args...)
}

func Info(ctx context.Context, msg string) {
	entry(ctx).Info(msg)
}

func Debugf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Debug(escapeString(format, args...))
}

func Warnf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Warnf(format, args...)
}

func Errorf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Error(escapeString(format, args...))
}

func escapeString(format string, args ...interface{}) string {
	return newline.ReplaceAllString(fmt.Sprintf(format, args...), "\\n ")
}
