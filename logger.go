package main

import (
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging functionality on top of zap
type Logger struct {
	zl *zap.Logger
}

// NewLogger creates a new structured logger writing JSON lines to output
func NewLogger(level string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(output), parseLogLevel(level))
	return &Logger{zl: zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))}
}

func parseLogLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Zap returns the underlying logger, named for a component
func (l *Logger) Zap(name string) *zap.Logger {
	return l.zl.Named(name)
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

// WithFields returns a new log entry with the specified fields
func (l *Logger) WithFields(fields map[string]interface{}) *LogEntryBuilder {
	return &LogEntryBuilder{
		logger: l,
		fields: fields,
	}
}

// WithField returns a new log entry with a single field
func (l *Logger) WithField(key string, value interface{}) *LogEntryBuilder {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithError returns a new log entry with an error field
func (l *Logger) WithError(err error) *LogEntryBuilder {
	return &LogEntryBuilder{
		logger: l,
		err:    err,
	}
}

func (l *Logger) Debug(message string) { l.WithFields(nil).Debug(message) }
func (l *Logger) Info(message string)  { l.WithFields(nil).Info(message) }
func (l *Logger) Warn(message string)  { l.WithFields(nil).Warn(message) }
func (l *Logger) Error(message string) { l.WithFields(nil).Error(message) }

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string) { l.WithFields(nil).Fatal(message) }

// LogEntryBuilder helps build log entries with fields
type LogEntryBuilder struct {
	logger *Logger
	fields map[string]interface{}
	err    error
}

// WithField adds a field to the log entry
func (b *LogEntryBuilder) WithField(key string, value interface{}) *LogEntryBuilder {
	if b.fields == nil {
		b.fields = make(map[string]interface{})
	}
	b.fields[key] = value
	return b
}

// WithFields adds multiple fields to the log entry
func (b *LogEntryBuilder) WithFields(fields map[string]interface{}) *LogEntryBuilder {
	if b.fields == nil {
		b.fields = make(map[string]interface{})
	}
	for k, v := range fields {
		b.fields[k] = v
	}
	return b
}

// WithError adds an error to the log entry
func (b *LogEntryBuilder) WithError(err error) *LogEntryBuilder {
	b.err = err
	return b
}

func (b *LogEntryBuilder) zapFields() []zap.Field {
	keys := make([]string, 0, len(b.fields))
	for k := range b.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys)+1)
	for _, k := range keys {
		fields = append(fields, zap.Any(k, b.fields[k]))
	}
	if b.err != nil {
		fields = append(fields, zap.Error(b.err))
	}
	return fields
}

// caller skip covers the builder method itself
func (b *LogEntryBuilder) zl() *zap.Logger {
	return b.logger.zl.WithOptions(zap.AddCallerSkip(1))
}

func (b *LogEntryBuilder) Debug(message string) { b.zl().Debug(message, b.zapFields()...) }
func (b *LogEntryBuilder) Info(message string)  { b.zl().Info(message, b.zapFields()...) }
func (b *LogEntryBuilder) Warn(message string)  { b.zl().Warn(message, b.zapFields()...) }
func (b *LogEntryBuilder) Error(message string) { b.zl().Error(message, b.zapFields()...) }

// Fatal logs a fatal message with fields and exits
func (b *LogEntryBuilder) Fatal(message string) { b.zl().Fatal(message, b.zapFields()...) }

// Global logger instance
var AppLogger = NewLogger("INFO", os.Stdout)

// InitializeLogger initializes the global logger
func InitializeLogger(config *Config) {
	var output io.Writer = os.Stdout

	if config.IsProduction() {
		if err := os.MkdirAll("logs", 0755); err == nil {
			if file, err := os.OpenFile("logs/app.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666); err == nil {
				output = file
			}
		}
	}

	AppLogger = NewLogger(config.LogLevel, output)
}
