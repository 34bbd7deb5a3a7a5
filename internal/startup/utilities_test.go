package startup

import (
	"testing"
	"time"
)

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		envValue     string
		defaultValue bool
		want         bool
		setEnv       bool
	}{
		{
			name:         "Returns default when env var not set",
			key:          "TEST_BOOL_UNSET",
			defaultValue: true,
			want:         true,
			setEnv:       false,
		},
		{
			name:         "Returns default false when env var not set",
			key:          "TEST_BOOL_UNSET2",
			defaultValue: false,
			want:         false,
			setEnv:       false,
		},
		{
			name:         "Returns true when env var is 'true'",
			key:          "TEST_BOOL_TRUE",
			envValue:     "true",
			defaultValue: false,
			want:         true,
			setEnv:       true,
		},
		{
			name:         "Returns false when env var is 'false'",
			key:          "TEST_BOOL_FALSE",
			envValue:     "false",
			defaultValue: true,
			want:         false,
			setEnv:       true,
		},
		{
			name:         "Returns true when env var is '1'",
			key:          "TEST_BOOL_ONE",
			envValue:     "1",
			defaultValue: false,
			want:         true,
			setEnv:       true,
		},
		{
			name:         "Returns false when env var is '0'",
			key:          "TEST_BOOL_ZERO",
			envValue:     "0",
			defaultValue: true,
			want:         false,
			setEnv:       true,
		},
		{
			name:         "Returns true when env var is 'T'",
			key:          "TEST_BOOL_T_UPPER",
			envValue:     "T",
			defaultValue: false,
			want:         true,
			setEnv:       true,
		},
		{
			name:         "Returns true when env var is 'TRUE'",
			key:          "TEST_BOOL_TRUE_UPPER",
			envValue:     "TRUE",
			defaultValue: false,
			want:         true,
			setEnv:       true,
		},
		{
			name:         "Returns default when env var is invalid",
			key:          "TEST_BOOL_INVALID",
			envValue:     "not-a-bool",
			defaultValue: true,
			want:         true,
			setEnv:       true,
		},
		{
			name:         "Returns default when env var is empty string",
			key:          "TEST_BOOL_EMPTY",
			envValue:     "",
			defaultValue: false,
			want:         false,
			setEnv:       true,
		},
		{
			name:         "Returns default when env var is 'yes'",
			key:          "TEST_BOOL_YES",
			envValue:     "yes",
			defaultValue: false,
			want:         false,
			setEnv:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v (env: %q)", tt.key, tt.defaultValue, got, tt.want, tt.envValue)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		envValue     string
		defaultValue int
		want         int
		setEnv       bool
	}{
		{
			name:         "Returns default when env var not set",
			key:          "TEST_INT_UNSET",
			defaultValue: 42,
			want:         42,
			setEnv:       false,
		},
		{
			name:         "Returns parsed value",
			key:          "TEST_INT_SET",
			envValue:     "300",
			defaultValue: 42,
			want:         300,
			setEnv:       true,
		},
		{
			name:         "Accepts negative values",
			key:          "TEST_INT_NEG",
			envValue:     "-7",
			defaultValue: 42,
			want:         -7,
			setEnv:       true,
		},
		{
			name:         "Returns default when env var is invalid",
			key:          "TEST_INT_INVALID",
			envValue:     "three hundred",
			defaultValue: 42,
			want:         42,
			setEnv:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvInt(%q, %d) = %d, want %d", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("TEST_INT64_SET", "1073741824")
	if got := getEnvInt64("TEST_INT64_SET", 0); got != 1073741824 {
		t.Errorf("getEnvInt64() = %d, want 1073741824", got)
	}
	if got := getEnvInt64("TEST_INT64_UNSET", 256); got != 256 {
		t.Errorf("getEnvInt64() default = %d, want 256", got)
	}
}

func TestGetEnvMillis(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		envValue  string
		defaultMs int64
		want      time.Duration
		setEnv    bool
	}{
		{
			name:      "Returns default when env var not set",
			key:       "TEST_MS_UNSET",
			defaultMs: 2000,
			want:      2 * time.Second,
			setEnv:    false,
		},
		{
			name:      "Parses milliseconds",
			key:       "TEST_MS_SET",
			envValue:  "500",
			defaultMs: 2000,
			want:      500 * time.Millisecond,
			setEnv:    true,
		},
		{
			name:      "Returns default when env var is invalid",
			key:       "TEST_MS_INVALID",
			envValue:  "half a second",
			defaultMs: 1000,
			want:      time.Second,
			setEnv:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvMillis(tt.key, tt.defaultMs)
			if got != tt.want {
				t.Errorf("getEnvMillis(%q, %d) = %v, want %v", tt.key, tt.defaultMs, got, tt.want)
			}
		})
	}
}

func TestBuildInfoStruct(t *testing.T) {
	info := BuildInfo{
		Version:   "1.0.0",
		Commit:    "abc123",
		BuildTime: "2026-01-01",
		GoVersion: "go1.25.0",
		OS:        "linux",
		Arch:      "amd64",
	}

	if info.Version != "1.0.0" {
		t.Errorf("Expected Version='1.0.0', got %q", info.Version)
	}

	if info.Commit != "abc123" {
		t.Errorf("Expected Commit='abc123', got %q", info.Commit)
	}

	if info.OS != "linux" {
		t.Errorf("Expected OS='linux', got %q", info.OS)
	}
}

func BenchmarkGetEnv(b *testing.B) {
	b.Setenv("BENCH_TEST_VAR", "test-value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = getEnv("BENCH_TEST_VAR", "default")
	}
}

func BenchmarkGetEnvBool(b *testing.B) {
	b.Setenv("BENCH_TEST_BOOL", "true")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = getEnvBool("BENCH_TEST_BOOL", false)
	}
}
