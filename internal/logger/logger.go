package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerologLevel() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a LOG_LEVEL value to a level, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

type Logger struct {
	mu    sync.Mutex
	level LogLevel
	zl    zerolog.Logger
}

var defaultLogger = New(INFO, os.Stderr)

func New(level LogLevel, w io.Writer) *Logger {
	return &Logger{
		level: level,
		zl:    zerolog.New(w).With().Timestamp().Logger(),
	}
}

func SetLevel(level LogLevel) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.level = level
}

func Level() LogLevel {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	return defaultLogger.level
}

// SetOutput redirects the package-level logger, mainly for tests.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.zl = zerolog.New(w).With().Timestamp().Logger()
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	event := l.zl.WithLevel(level.zerologLevel())
	if sanitized := sanitizeFields(fields); len(sanitized) > 0 {
		event = event.Fields(sanitized)
	}
	event.Msg(message)
}

func (l *Logger) Debug(message string, fields ...map[string]interface{}) {
	l.log(DEBUG, message, mergeFields(fields...))
}

func (l *Logger) Info(message string, fields ...map[string]interface{}) {
	l.log(INFO, message, mergeFields(fields...))
}

func (l *Logger) Warn(message string, fields ...map[string]interface{}) {
	l.log(WARN, message, mergeFields(fields...))
}

func (l *Logger) Error(message string, fields ...map[string]interface{}) {
	l.log(ERROR, message, mergeFields(fields...))
}

// Package-level convenience functions
func Debug(message string, fields ...map[string]interface{}) {
	defaultLogger.Debug(message, fields...)
}

func Info(message string, fields ...map[string]interface{}) {
	defaultLogger.Info(message, fields...)
}

func Warn(message string, fields ...map[string]interface{}) {
	defaultLogger.Warn(message, fields...)
}

func Error(message string, fields ...map[string]interface{}) {
	defaultLogger.Error(message, fields...)
}

func mergeFields(fieldMaps ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, fields := range fieldMaps {
		for k, v := range fields {
			result[k] = v
		}
	}
	return result
}

var sensitiveKeys = []string{
	"license", "key", "token", "secret", "password", "dsn", "authorization", "auth",
}

// sanitizeFields masks values whose key looks like a credential. License
// identifiers count: they are the only thing gating the webhook.
func sanitizeFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	sanitized := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		keyLower := strings.ToLower(k)

		isSensitive := false
		for _, sensitive := range sensitiveKeys {
			if strings.Contains(keyLower, sensitive) {
				isSensitive = true
				break
			}
		}

		if !isSensitive {
			sanitized[k] = v
			continue
		}

		if str, ok := v.(string); ok && len(str) > 8 {
			// Show first 3 and last 3 characters
			sanitized[k] = str[:3] + "..." + str[len(str)-3:]
		} else {
			sanitized[k] = "[REDACTED]"
		}
	}

	return sanitized
}

func init() {
	// During tests, reduce log noise by setting higher log level
	if os.Getenv("GO_ENV") == "test" || strings.Contains(os.Args[0], ".test") {
		SetLevel(WARN)
		return
	}

	SetLevel(ParseLevel(os.Getenv("LOG_LEVEL")))
}
