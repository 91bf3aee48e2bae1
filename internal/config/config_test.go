package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	_ = os.Setenv("TEST_KEY", "test_value")
	defer func() { _ = os.Unsetenv("TEST_KEY") }()

	val := getEnv("TEST_KEY", "fallback")
	if val != "test_value" {
		t.Errorf("Expected test_value, got %s", val)
	}

	val = getEnv("NON_EXISTENT", "fallback")
	if val != "fallback" {
		t.Errorf("Expected fallback, got %s", val)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		key      string
		val      string
		fallback bool
		expected bool
	}{
		{"TEST_BOOL_TRUE", "true", false, true},
		{"TEST_BOOL_1", "1", false, true},
		{"TEST_BOOL_FALSE", "false", true, false},
		{"TEST_BOOL_0", "0", true, false},
		{"NON_EXISTENT", "", true, true},
		{"NON_EXISTENT", "", false, false},
	}

	for _, tt := range tests {
		if tt.val != "" {
			_ = os.Setenv(tt.key, tt.val)
		}
		res := getEnvBool(tt.key, tt.fallback)
		if res != tt.expected {
			t.Errorf("For %s=%s (fallback %v), expected %v, got %v", tt.key, tt.val, tt.fallback, tt.expected, res)
		}
		_ = os.Unsetenv(tt.key)
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		val      string
		expected time.Duration
	}{
		{"3s", 3 * time.Second},
		{"1500", 1500 * time.Millisecond},
		{"garbage", time.Minute},
	}

	for _, tt := range tests {
		_ = os.Setenv("TEST_DURATION", tt.val)
		if got := getEnvDuration("TEST_DURATION", time.Minute); got != tt.expected {
			t.Errorf("For %q expected %v, got %v", tt.val, tt.expected, got)
		}
	}
	_ = os.Unsetenv("TEST_DURATION")
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Port != "5000" {
		t.Errorf("Expected default port 5000, got %s", cfg.Port)
	}
	if cfg.ProxyTimeout != 8*time.Second {
		t.Errorf("Expected default proxy timeout 8s, got %v", cfg.ProxyTimeout)
	}
	if cfg.HistoryLimit != 10 {
		t.Errorf("Expected default history limit 10, got %d", cfg.HistoryLimit)
	}
	if cfg.HistoryTTL != 7*24*time.Hour {
		t.Errorf("Expected default history TTL 7d, got %v", cfg.HistoryTTL)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	_ = os.Setenv("PORT", "not-a-port")
	defer func() { _ = os.Unsetenv("PORT") }()

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected validation error for non-numeric PORT")
	}

	_ = os.Unsetenv("PORT")
	_ = os.Setenv("WORKER_URL", "not a url")
	defer func() { _ = os.Unsetenv("WORKER_URL") }()

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected validation error for malformed WORKER_URL")
	}
}
