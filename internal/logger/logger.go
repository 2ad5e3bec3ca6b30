// Package logger provides the process-wide structured logger, built on
// zap with rotating file output, adapted from
// EdgxCloud-EdgeFlow/internal/logger/logger.go for gmgr's plainer needs
// (no WebSocket log bridge — gmgr's WebSocket surface carries edge events,
// not logs).
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger *zap.Logger
	globalSugar  *zap.SugaredLogger
	mu           sync.RWMutex
)

// Config holds logger configuration, sourced from AppConfig.Log.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // "json", "console", or "" to auto-detect from the stdout tty
	LogDir     string // directory for log files; empty disables file logging
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig is the zero-config deployment shape: console logging only,
// no file rotation.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "",
		LogDir:     "",
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 7,
		Compress:   true,
	}
}

// Init builds the global logger. Format "" auto-selects console encoding
// when stdout is a tty and JSON otherwise, so a gmgr run piped into a log
// collector emits structured JSON without extra configuration.
func Init(cfg Config) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	format := cfg.Format
	if format == "" {
		if isatty.IsTerminal(os.Stdout.Fd()) {
			format = "console"
		} else {
			format = "json"
		}
	}

	var stdoutEncoder zapcore.Encoder
	if format == "json" {
		stdoutEncoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		stdoutEncoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(stdoutEncoder, zapcore.AddSync(os.Stdout), level)}

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		fileWriter := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, "gmgr.log"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(fileWriter), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())

	mu.Lock()
	globalLogger = logger
	globalSugar = logger.Sugar()
	mu.Unlock()
	return nil
}

// Get returns the global zap.Logger, falling back to a development logger
// if Init hasn't run (e.g. in tests).
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return globalLogger
}

// Sugar returns the global sugared logger. Its Warnf/Infof/Errorf methods
// satisfy internal/gpio.Logger.
func Sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if globalSugar == nil {
		l, _ := zap.NewDevelopment()
		return l.Sugar()
	}
	return globalSugar
}

func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

func Info(msg string, fields ...zap.Field)  { Get().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Get().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { Get().Debug(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { Get().Fatal(msg, fields...) }

// WithPin returns a logger scoped to a single GPIO pin, tagged with its
// pin_id.
func WithPin(pinID uint32) *zap.Logger {
	return Get().With(zap.Uint32("pin_id", pinID))
}
