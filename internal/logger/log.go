package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Logger is a named component logger backed by zap.
type Logger struct {
	level  atomic.Int32
	mu     sync.Mutex
	prefix string
	sugar  *zap.SugaredLogger
}

func consoleCore(w io.Writer) zapcore.Core {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(w), zap.DebugLevel)
}

// NewLogger creates a new logger instance writing to stderr.
func NewLogger(prefix string, level Level) *Logger {
	l := NewWithCore(prefix, consoleCore(os.Stderr))
	l.SetLevel(level)
	return l
}

// NewWithCore builds a logger on an existing zap core; tests pass an
// observer core here.
func NewWithCore(prefix string, core zapcore.Core) *Logger {
	l := &Logger{prefix: prefix}
	l.sugar = zap.New(core).Named(prefix).Sugar()
	return l
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

// SetOutput sets the output destination
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sugar = zap.New(consoleCore(w)).Named(l.prefix).Sugar()
}

// With returns a child logger that adds the key/value pairs to every
// record.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	child := &Logger{prefix: l.prefix, sugar: l.current().With(keysAndValues...)}
	child.SetLevel(l.Level())
	return child
}

func (l *Logger) Sync() error {
	return l.current().Sync()
}

func (l *Logger) current() *zap.SugaredLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sugar
}

func (l *Logger) enabled(level Level) bool {
	return level >= l.Level()
}

func (l *Logger) Debug(v ...interface{}) {
	if l.enabled(DEBUG) {
		l.current().Debug(v...)
	}
}

func (l *Logger) Info(v ...interface{}) {
	if l.enabled(INFO) {
		l.current().Info(v...)
	}
}

func (l *Logger) Warn(v ...interface{}) {
	if l.enabled(WARN) {
		l.current().Warn(v...)
	}
}

func (l *Logger) Error(v ...interface{}) {
	if l.enabled(ERROR) {
		l.current().Error(v...)
	}
}

func (l *Logger) Fatal(v ...interface{}) {
	l.current().Fatal(v...)
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.enabled(DEBUG) {
		l.current().Debugf(format, v...)
	}
}

func (l *Logger) Infof(format string, v ...interface{}) {
	if l.enabled(INFO) {
		l.current().Infof(format, v...)
	}
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	if l.enabled(WARN) {
		l.current().Warnf(format, v...)
	}
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	if l.enabled(ERROR) {
		l.current().Errorf(format, v...)
	}
}

func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.current().Fatalf(format, v...)
}

// Global logger instance
var defaultLogger = NewLogger("iris", INFO)

// Default returns the package-level logger.
func Default() *Logger { return defaultLogger }

// Package-level convenience functions
func SetLevel(level Level)                   { defaultLogger.SetLevel(level) }
func SetOutput(w io.Writer)                  { defaultLogger.SetOutput(w) }
func Debug(v ...interface{})                 { defaultLogger.Debug(v...) }
func Info(v ...interface{})                  { defaultLogger.Info(v...) }
func Warn(v ...interface{})                  { defaultLogger.Warn(v...) }
func Error(v ...interface{})                 { defaultLogger.Error(v...) }
func Fatal(v ...interface{})                 { defaultLogger.Fatal(v...) }
func Debugf(format string, v ...interface{}) { defaultLogger.Debugf(format, v...) }
func Infof(format string, v ...interface{})  { defaultLogger.Infof(format, v...) }
func Warnf(format string, v ...interface{})  { defaultLogger.Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { defaultLogger.Errorf(format, v...) }
func Fatalf(format string, v ...interface{}) { defaultLogger.Fatalf(format, v...) }
