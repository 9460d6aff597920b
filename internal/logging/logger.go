package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger *zap.SugaredLogger
)

// Init initializes the global structured logger. format is "json" or
// "console"; anything else falls back to console output on stderr.
func Init(level, format string) {
	var lvl zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn", "warning":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if strings.ToLower(format) == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	SetLogger(l)
}

// SetLogger replaces the global logger, e.g. with zaptest.NewLogger in tests.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l.Sugar()
}

// Logger returns the global logger instance.
func Logger() *zap.SugaredLogger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l == nil {
		Init("info", "console")
		mu.RLock()
		l = logger
		mu.RUnlock()
	}
	return l
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Logger().Sync()
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger().Debugw(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	Logger().Infow(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger().Warnw(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger().Errorw(msg, args...)
}
