// Package logger implements ports.Logger over logrus, adapted from the
// teacher's internal/logger/logrus.go.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sqskit/sqskit-go/ports"
)

// Logger implements ports.Logger using logrus.
type Logger struct {
	entry *logrus.Entry
}

var _ ports.Logger = (*Logger)(nil)

// New creates a Logger at the given level ("trace".."error") and format
// ("text" or "json").
func New(level, format string) *Logger {
	l := logrus.New()

	switch level {
	case "trace":
		l.SetLevel(logrus.TraceLevel)
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	l.SetOutput(os.Stdout)
	l.SetReportCaller(false)

	return &Logger{entry: logrus.NewEntry(l)}
}

// Trace logs at trace level.
func (l *Logger) Trace(msg string, fields ...ports.Field) {
	l.entry.WithFields(toLogrusFields(fields)).Trace(msg)
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields ...ports.Field) {
	l.entry.WithFields(toLogrusFields(fields)).Debug(msg)
}

// Info logs at info level.
func (l *Logger) Info(msg string, fields ...ports.Field) {
	l.entry.WithFields(toLogrusFields(fields)).Info(msg)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields ...ports.Field) {
	l.entry.WithFields(toLogrusFields(fields)).Warn(msg)
}

// Error logs at error level.
func (l *Logger) Error(msg string, fields ...ports.Field) {
	l.entry.WithFields(toLogrusFields(fields)).Error(msg)
}

// WithFields returns a child Logger carrying additional fields.
func (l *Logger) WithFields(fields ...ports.Field) ports.Logger {
	return &Logger{entry: l.entry.WithFields(toLogrusFields(fields))}
}

func toLogrusFields(fields []ports.Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

// String builds a string-valued ports.Field.
func String(key, value string) ports.Field { return ports.Field{Key: key, Value: value} }

// Int builds an int-valued ports.Field.
func Int(key string, value int) ports.Field { return ports.Field{Key: key, Value: value} }

// Err builds an error-valued ports.Field under the conventional "error" key.
func Err(err error) ports.Field { return ports.Field{Key: "error", Value: err} }

// Any builds a field carrying an arbitrary value, such as a time.Duration
// that should render with its natural String() form.
func Any(key string, value interface{}) ports.Field { return ports.Field{Key: key, Value: value} }
