package logger

import (
	"context"
	"io"
	"os"

	"linkvault/internal/shared/contextkeys"

	"github.com/sirupsen/logrus"
)

const (
	logFormatJSON = "json"

	envProduction = "production"
	envProd       = "prod"

	jsonTimestamp = "2006-01-02T15:04:05.000Z07:00"
	textTimestamp = "2006-01-02 15:04:05"
)

// Logger defines the interface for structured logging operations
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	WithFields(fields map[string]interface{}) Logger
	WithContext(ctx context.Context) Logger
	WithComponent(component string) Logger
}

// LogrusLogger implements the Logger interface using logrus
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogger creates a logger configured from LOG_LEVEL, LOG_FORMAT and
// ENVIRONMENT, writing to stdout.
func NewLogger() Logger {
	return NewLoggerWithOutput(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), os.Stdout)
}

// NewLoggerWithConfig creates a stdout logger with explicit level and format.
func NewLoggerWithConfig(level, format string) Logger {
	return NewLoggerWithOutput(level, format, os.Stdout)
}

// NewLoggerWithOutput creates a logger writing to out. Terminal UI binaries
// pass a log file or io.Discard here; anything on stdout would corrupt the
// rendered frame.
func NewLoggerWithOutput(level, format string, out io.Writer) Logger {
	l := logrus.New()
	l.SetLevel(parseLevel(level))
	l.SetFormatter(formatterFor(format, out == os.Stdout))
	l.SetOutput(out)
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

func (l *LogrusLogger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *LogrusLogger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *LogrusLogger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *LogrusLogger) Error(args ...interface{}) { l.entry.Error(args...) }
func (l *LogrusLogger) Fatal(args ...interface{}) { l.entry.Fatal(args...) }

func (l *LogrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *LogrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *LogrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *LogrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *LogrusLogger) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

// WithFields adds structured fields to the logger
func (l *LogrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &LogrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithContext extracts known request values from ctx into log fields
func (l *LogrusLogger) WithContext(ctx context.Context) Logger {
	fields := logrus.Fields{}
	addContextField(ctx, contextkeys.UserIDKey, "user_id", fields)
	addContextField(ctx, contextkeys.RequestIDKey, "request_id", fields)
	return &LogrusLogger{entry: l.entry.WithFields(fields)}
}

func addContextField(ctx context.Context, key interface{}, fieldName string, fields logrus.Fields) {
	if val := ctx.Value(key); val != nil {
		if strVal, ok := val.(string); ok && strVal != "" {
			fields[fieldName] = strVal
		}
	}
}

// WithComponent adds component name to the logger
func (l *LogrusLogger) WithComponent(component string) Logger {
	return &LogrusLogger{entry: l.entry.WithField("component", component)}
}

func parseLevel(level string) logrus.Level {
	if parsed, err := logrus.ParseLevel(level); err == nil {
		return parsed
	}
	return logrus.InfoLevel
}

func formatterFor(format string, tty bool) logrus.Formatter {
	env := os.Getenv("ENVIRONMENT")
	if format == logFormatJSON || env == envProduction || env == envProd {
		return &logrus.JSONFormatter{
			TimestampFormat: jsonTimestamp,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: textTimestamp,
		ForceColors:     tty,
	}
}

// Global logger instance
var defaultLogger Logger

func init() {
	defaultLogger = NewLogger()
}

// Package-level convenience functions

func Debug(args ...interface{}) { defaultLogger.Debug(args...) }
func Info(args ...interface{})  { defaultLogger.Info(args...) }
func Warn(args ...interface{})  { defaultLogger.Warn(args...) }
func Error(args ...interface{}) { defaultLogger.Error(args...) }
func Fatal(args ...interface{}) { defaultLogger.Fatal(args...) }

func Debugf(format string, args ...interface{}) { defaultLogger.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { defaultLogger.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { defaultLogger.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { defaultLogger.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { defaultLogger.Fatalf(format, args...) }

// WithContext creates a logger with context information
func WithContext(ctx context.Context) Logger {
	return defaultLogger.WithContext(ctx)
}

// WithComponent creates a logger with component information
func WithComponent(component string) Logger {
	return defaultLogger.WithComponent(component)
}

// WithFields creates a logger with custom fields
func WithFields(fields map[string]interface{}) Logger {
	return defaultLogger.WithFields(fields)
}
