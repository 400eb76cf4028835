// Package logging provides the process-wide slog logger: console text output plus
// JSON records in a weekly rotating file, and a chi request-logging middleware.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/giygas/repertory-api/config"
)

type LoggingService struct {
	Logger  *slog.Logger
	rotator *RotatingLogger
}

var DefaultLoggingService *LoggingService

// Options controls InitLoggerWithOptions
type Options struct {
	LogDir         string // empty disables file output
	Env            config.Environment
	Level          string // LOG_LEVEL override, may be empty
	RetentionWeeks int
	MaxFileSize    int64
	Verbose        bool // keep info logs on the console in test runs
}

// InitLogger initializes the global logger with development defaults
func InitLogger(logDir string) {
	InitLoggerWithOptions(Options{
		LogDir:         logDir,
		Env:            config.EnvDevelopment,
		RetentionWeeks: 4,
		MaxFileSize:    100 * 1024 * 1024,
	})
}

// InitLoggerWithOptions replaces the global logger and sets it as slog default
func InitLoggerWithOptions(opts Options) {
	if DefaultLoggingService != nil {
		Close()
	}

	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: GetConsoleLogLevel(opts.Env, opts.Level, opts.Verbose),
	})

	service := &LoggingService{}
	handlers := []slog.Handler{consoleHandler}

	if opts.LogDir != "" {
		rotator, err := newFileRotator(opts)
		if err != nil {
			slog.New(consoleHandler).Error("File logging disabled", "error", err, "log_dir", opts.LogDir)
		} else {
			service.rotator = rotator
			handlers = append(handlers, slog.NewJSONHandler(rotator, &slog.HandlerOptions{
				Level: GetFileLogLevel(),
			}))
		}
	}

	if len(handlers) == 1 {
		service.Logger = slog.New(consoleHandler)
	} else {
		service.Logger = slog.New(&multiHandler{handlers: handlers})
	}

	DefaultLoggingService = service
	slog.SetDefault(service.Logger)
}

func newFileRotator(opts Options) (*RotatingLogger, error) {
	if err := os.MkdirAll(opts.LogDir, 0750); err != nil {
		return nil, err
	}

	retention := opts.RetentionWeeks
	if retention <= 0 {
		retention = 4
	}

	rotator := NewRotatingLoggerWithSizeLimit(opts.LogDir, retention, opts.MaxFileSize)
	rotator.startCleanup()
	return rotator, nil
}

// Close flushes and closes the log file, if any
func Close() {
	if DefaultLoggingService == nil || DefaultLoggingService.rotator == nil {
		return
	}
	_ = DefaultLoggingService.rotator.Close()
	DefaultLoggingService.rotator = nil
}

// ResetForTest initializes the global logger into dir and closes it when the test ends
func ResetForTest(t testing.TB, dir string, env config.Environment, level string, retentionWeeks int, maxFileSize int64) {
	t.Helper()
	InitLoggerWithOptions(Options{
		LogDir:         dir,
		Env:            env,
		Level:          level,
		RetentionWeeks: retentionWeeks,
		MaxFileSize:    maxFileSize,
	})
	t.Cleanup(Close)
}

// parseLogLevel maps LOG_LEVEL strings to slog levels, defaulting to info
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConsoleLogLevel picks the console level. Test runs stay quiet unless
// verbose; elsewhere an explicit LOG_LEVEL wins over the environment default.
func GetConsoleLogLevel(env config.Environment, logLevel string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}

	if logLevel != "" {
		return parseLogLevel(logLevel)
	}

	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel returns the level for the JSON file handler
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

func logger() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return DefaultLoggingService.Logger
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	logger().Info(msg, args...)
}

func Error(msg string, args ...any) {
	logger().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	logger().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	logger().Debug(msg, args...)
}
