package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"mm-swarm/internal/config"
)

var (
	defaultLogger *logrus.Logger
)

// LogLevel orders the configured verbosity
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// GetLogLevelFromString maps a config level name to a LogLevel, INFO when unknown.
func GetLogLevelFromString(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case DEBUG:
		return logrus.DebugLevel
	case WARN:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

/**
 * Initialize the package logger
 * @param {*config.LogConfig} cfg - Level and optional file path
 * @param {bool} debug - Force debug level regardless of cfg.Level
 * @description
 * - Always writes to stderr so bridged application output owns stdout
 * - When cfg.Path names a file the same records are appended there
 */
func InitLogger(cfg *config.LogConfig, debug bool) {
	var output io.Writer = os.Stderr
	if cfg.Path != "" && cfg.Path != "console" {
		if file := setupLogFileOutput(cfg.Path); file != nil {
			output = io.MultiWriter(os.Stderr, file)
		}
	}

	level := GetLogLevelFromString(cfg.Level)
	if debug {
		level = DEBUG
	}

	l := logrus.New()
	l.SetOutput(output)
	l.SetLevel(level.logrusLevel())
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05.000",
	})
	defaultLogger = l
}

// setupLogFileOutput opens the log file, nil when it cannot be opened.
func setupLogFileOutput(logPath string) io.Writer {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create log directory failed: %v\n", err)
		return nil
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file failed: %v\n", err)
		return nil
	}
	return file
}

// With returns an entry tagged with a label field, used by long-lived components.
func With(label string) *logrus.Entry {
	return get().WithField("label", label)
}

func get() *logrus.Logger {
	if defaultLogger == nil {
		return logrus.StandardLogger()
	}
	return defaultLogger
}

// SetOutput redirects the logger, mainly for tests.
func SetOutput(w io.Writer) {
	get().SetOutput(w)
}

func Debug(v ...interface{}) {
	get().Debug(v...)
}

func Debugf(format string, v ...interface{}) {
	get().Debugf(format, v...)
}

func Info(v ...interface{}) {
	get().Info(v...)
}

func Infof(format string, v ...interface{}) {
	get().Infof(format, v...)
}

func Warn(v ...interface{}) {
	get().Warn(v...)
}

func Warnf(format string, v ...interface{}) {
	get().Warnf(format, v...)
}

func Error(v ...interface{}) {
	get().Error(v...)
}

func Errorf(format string, v ...interface{}) {
	get().Errorf(format, v...)
}

// Fatal logs and exits with status 1
func Fatal(v ...interface{}) {
	get().Fatal(v...)
}

func Fatalf(format string, v ...interface{}) {
	get().Fatalf(format, v...)
}
