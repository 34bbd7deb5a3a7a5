package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel represents the severity of a log message
type LogLevel int32

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var currentLevel atomic.Int32

func init() {
	currentLevel.Store(int32(parseLevel(os.Getenv("DEBUG"), os.Getenv("LOG_LEVEL"))))
}

// parseLevel derives the active level from the DEBUG and LOG_LEVEL
// environment values. A truthy DEBUG wins over LOG_LEVEL.
func parseLevel(debug, level string) LogLevel {
	switch strings.ToLower(debug) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}

	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetLevel overrides the current log level. Used by startup after config
// parsing and by tests that need to silence or enable debug output.
func SetLevel(l LogLevel) {
	currentLevel.Store(int32(l))
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	if GetLevel() <= LevelDebug {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	if GetLevel() <= LevelInfo {
		log.Printf("[INFO] "+format, args...)
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if GetLevel() <= LevelWarn {
		log.Printf("[WARN] "+format, args...)
	}
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	if GetLevel() <= LevelError {
		log.Printf("[ERROR] "+format, args...)
	}
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// Printf is a pass-through to log.Printf for messages that should always print
func Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// Println is a pass-through to log.Println for messages that should always print
func Println(args ...interface{}) {
	log.Println(args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
