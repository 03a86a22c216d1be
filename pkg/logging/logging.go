package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger interface for structured logging
type Logger interface {
	WithCorrelationID(id string) Logger
	WithFields(fields map[string]interface{}) Logger
	WithField(key string, value interface{}) Logger
	Info(msg string)
	Error(msg string, err error)
	Warn(msg string)
	Debug(msg string)
}

// StructuredLogger implements Logger interface using logrus
type StructuredLogger struct {
	logger        *logrus.Logger
	entry         *logrus.Entry
	serviceName   string
	correlationID string
}

// Levels accepted by SetLevel and ParseLevel.
var Levels = []string{"debug", "info", "warn", "error"}

// NewLogger creates a structured JSON logger writing to stderr.
// Stdout is left to the probe report.
func NewLogger(serviceName string) *StructuredLogger {
	return NewLoggerWithOutput(serviceName, os.Stderr)
}

// NewLoggerWithOutput creates a structured JSON logger writing to w.
func NewLoggerWithOutput(serviceName string, w io.Writer) *StructuredLogger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	return &StructuredLogger{
		logger:      logger,
		entry:       logger.WithField("service", serviceName),
		serviceName: serviceName,
	}
}

// Discard returns a logger that drops every entry. Handy in tests.
func Discard() *StructuredLogger {
	return NewLoggerWithOutput("discard", io.Discard)
}

// WithCorrelationID returns a new logger tagged with the run's correlation ID
func (l *StructuredLogger) WithCorrelationID(id string) Logger {
	return &StructuredLogger{
		logger:        l.logger,
		entry:         l.entry.WithField("correlation_id", id),
		serviceName:   l.serviceName,
		correlationID: id,
	}
}

// WithFields returns a new logger with additional fields
func (l *StructuredLogger) WithFields(fields map[string]interface{}) Logger {
	return &StructuredLogger{
		logger:        l.logger,
		entry:         l.entry.WithFields(fields),
		serviceName:   l.serviceName,
		correlationID: l.correlationID,
	}
}

// WithField returns a new logger with an additional field
func (l *StructuredLogger) WithField(key string, value interface{}) Logger {
	return &StructuredLogger{
		logger:        l.logger,
		entry:         l.entry.WithField(key, value),
		serviceName:   l.serviceName,
		correlationID: l.correlationID,
	}
}

// Info logs an info message
func (l *StructuredLogger) Info(msg string) {
	l.entry.Info(msg)
}

// Error logs an error message, attaching err under the "error" key when set
func (l *StructuredLogger) Error(msg string, err error) {
	if err != nil {
		l.entry.WithField("error", err.Error()).Error(msg)
	} else {
		l.entry.Error(msg)
	}
}

// Warn logs a warning message
func (l *StructuredLogger) Warn(msg string) {
	l.entry.Warn(msg)
}

// Debug logs a debug message
func (l *StructuredLogger) Debug(msg string) {
	l.entry.Debug(msg)
}

// SetLevel sets the logging level. Unknown names fall back to info.
func (l *StructuredLogger) SetLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		l.logger.SetLevel(logrus.DebugLevel)
	case "info":
		l.logger.SetLevel(logrus.InfoLevel)
	case "warn":
		l.logger.SetLevel(logrus.WarnLevel)
	case "error":
		l.logger.SetLevel(logrus.ErrorLevel)
	default:
		l.logger.SetLevel(logrus.InfoLevel)
	}
}

// ValidLevel reports whether level is one of Levels.
func ValidLevel(level string) bool {
	level = strings.ToLower(level)
	for _, l := range Levels {
		if l == level {
			return true
		}
	}
	return false
}
