// Package logging provides the leveled logger used across logweave. The
// Logger interface is backed by zap's SugaredLogger writing console-encoded
// lines to a swappable output.
package logging

import (
	"io"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents a log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithField returns a new logger with the given field added.
	WithField(key string, value interface{}) Logger

	// WithFields returns a new logger with the given fields added.
	WithFields(fields map[string]interface{}) Logger

	// SetLevel sets the minimum log level.
	SetLevel(level Level)

	// SetOutput sets the output writer.
	SetOutput(w io.Writer)
}

// swapWriter lets SetOutput redirect a core that is already built.
type swapWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *swapWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *swapWriter) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.w.(interface{ Sync() error }); ok {
		// Syncing a terminal returns EINVAL on some platforms
		_ = f.Sync()
	}
	return nil
}

func (s *swapWriter) set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

// zapLogger implements Logger on top of zap.
type zapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
	out   *swapWriter
}

// New creates a logger writing to stderr at Info level.
func New() Logger {
	return NewWithOutput(os.Stderr)
}

// NewWithOutput creates a new logger with the specified output.
func NewWithOutput(w io.Writer) Logger {
	out := &swapWriter{w: w}
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.CallerKey = zapcore.OmitKey
	encCfg.StacktraceKey = zapcore.OmitKey

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), out, level)
	return &zapLogger{
		sugar: zap.New(core).Sugar(),
		level: level,
		out:   out,
	}
}

func (l *zapLogger) Debug(msg string, args ...interface{}) {
	l.sugar.Debugf(msg, args...)
}

func (l *zapLogger) Info(msg string, args ...interface{}) {
	l.sugar.Infof(msg, args...)
}

func (l *zapLogger) Warn(msg string, args ...interface{}) {
	l.sugar.Warnf(msg, args...)
}

func (l *zapLogger) Error(msg string, args ...interface{}) {
	l.sugar.Errorf(msg, args...)
}

func (l *zapLogger) WithField(key string, value interface{}) Logger {
	return &zapLogger{
		sugar: l.sugar.With(key, value),
		level: l.level,
		out:   l.out,
	}
}

func (l *zapLogger) WithFields(fields map[string]interface{}) Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}

	return &zapLogger{
		sugar: l.sugar.With(kv...),
		level: l.level,
		out:   l.out,
	}
}

// SetLevel changes the level of this logger and every logger derived from it.
func (l *zapLogger) SetLevel(level Level) {
	l.level.SetLevel(level.zapLevel())
}

func (l *zapLogger) SetOutput(w io.Writer) {
	l.out.set(w)
}

// NopLogger is a logger that discards all output.
// Useful for testing or when logging should be disabled.
type NopLogger struct{}

func (NopLogger) Debug(msg string, args ...interface{})             {}
func (NopLogger) Info(msg string, args ...interface{})              {}
func (NopLogger) Warn(msg string, args ...interface{})              {}
func (NopLogger) Error(msg string, args ...interface{})             {}
func (n NopLogger) WithField(key string, value interface{}) Logger  { return n }
func (n NopLogger) WithFields(fields map[string]interface{}) Logger { return n }
func (NopLogger) SetLevel(level Level)                              {}
func (NopLogger) SetOutput(w io.Writer)                             {}
