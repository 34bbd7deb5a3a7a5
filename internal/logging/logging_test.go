package logging

import (
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		debug    string
		level    string
		expected LogLevel
	}{
		{name: "default is info", debug: "", level: "", expected: LevelInfo},
		{name: "debug via LOG_LEVEL", debug: "", level: "debug", expected: LevelDebug},
		{name: "warn via LOG_LEVEL", debug: "", level: "warn", expected: LevelWarn},
		{name: "warning alias", debug: "", level: "warning", expected: LevelWarn},
		{name: "error via LOG_LEVEL", debug: "", level: "error", expected: LevelError},
		{name: "case insensitive", debug: "", level: "ERROR", expected: LevelError},
		{name: "DEBUG=1 wins", debug: "1", level: "error", expected: LevelDebug},
		{name: "DEBUG=true wins", debug: "true", level: "", expected: LevelDebug},
		{name: "DEBUG=on wins", debug: "on", level: "warn", expected: LevelDebug},
		{name: "DEBUG=false falls through", debug: "false", level: "warn", expected: LevelWarn},
		{name: "unknown level falls back to info", debug: "", level: "verbose", expected: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLevel(tt.debug, tt.level)
			if got != tt.expected {
				t.Errorf("parseLevel(%q, %q) = %v, want %v", tt.debug, tt.level, got, tt.expected)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	orig := GetLevel()
	defer SetLevel(orig)

	SetLevel(LevelError)
	if GetLevel() != LevelError {
		t.Errorf("GetLevel() = %v after SetLevel(LevelError)", GetLevel())
	}
	if IsDebugEnabled() {
		t.Error("IsDebugEnabled() should be false at error level")
	}

	SetLevel(LevelDebug)
	if !IsDebugEnabled() {
		t.Error("IsDebugEnabled() should be true at debug level")
	}
}

func TestLogLevelOrdering(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] >= levels[i+1] {
			t.Errorf("log levels should ascend: %v >= %v", levels[i], levels[i+1])
		}
	}
}

// TestLoggingFunctions verifies the leveled helpers never panic regardless
// of the active level.
func TestLoggingFunctions(t *testing.T) {
	orig := GetLevel()
	defer SetLevel(orig)

	for _, level := range []LogLevel{LevelDebug, LevelError} {
		SetLevel(level)
		Debug("test %s %d", "message", 123)
		Info("test message")
		Warn("test message")
		Error("test message")
		Printf("test %s", "message")
		Println("test", "message")
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}
