// Package logging provides the structured logger used across the
// coordinator and worker binaries. It wraps logrus the way the teacher
// repo's service engine wraps it for per-component, field-tagged logging.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type ctxKey int

const traceIDKey ctxKey = iota

// Logger wraps a logrus.Logger scoped to a component name.
type Logger struct {
	base      *logrus.Logger
	component string
}

// Config controls logger construction, sourced from LOG_LEVEL / LOG_FORMAT.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// New builds a Logger for the given component.
func New(component string, cfg Config) *Logger {
	l := logrus.New()
	if cfg.Output != nil {
		l.SetOutput(cfg.Output)
	} else {
		l.SetOutput(os.Stdout)
	}

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &Logger{base: l, component: component}
}

// NewDefault builds a Logger at info level with the text formatter.
func NewDefault(component string) *Logger {
	return New(component, Config{Level: "info", Format: "text"})
}

// WithContext attaches the request trace id (if any) found in ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.base.WithField("component", l.component)
	if id := TraceID(ctx); id != "" {
		entry = entry.WithField("trace_id", id)
	}
	return entry
}

// WithFields is a convenience passthrough for callers that don't have a
// context handy (e.g. background workers between requests).
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.base.WithField("component", l.component).WithFields(fields)
}

// WithError is a convenience passthrough.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.base.WithField("component", l.component).WithError(err)
}

func (l *Logger) Info(args ...interface{})  { l.base.WithField("component", l.component).Info(args...) }
func (l *Logger) Warn(args ...interface{})  { l.base.WithField("component", l.component).Warn(args...) }
func (l *Logger) Error(args ...interface{}) { l.base.WithField("component", l.component).Error(args...) }
func (l *Logger) Fatal(args ...interface{}) { l.base.WithField("component", l.component).Fatal(args...) }
func (l *Logger) Debug(args ...interface{}) { l.base.WithField("component", l.component).Debug(args...) }

// WithTraceID returns a derived context carrying the given trace id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// TraceID extracts the trace id from ctx, or "" if absent.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}
