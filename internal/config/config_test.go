package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresAnalyticsURL(t *testing.T) {
	t.Setenv("ANALYTICS_API_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when ANALYTICS_API_URL is unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ANALYTICS_API_URL", "https://api.example.com")
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "")
	t.Setenv("RATE_LIMIT_RPM", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %q, want %q", cfg.Port, DefaultPort)
	}
	if cfg.Env != DefaultEnv || !cfg.IsDevelopment() {
		t.Errorf("Env = %q", cfg.Env)
	}
	if cfg.HTTPTimeout != DefaultHTTPTimeout {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.RateLimitRPM != DefaultRateLimitRPM {
		t.Errorf("RateLimitRPM = %d", cfg.RateLimitRPM)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ANALYTICS_API_URL", "http://localhost:9000")
	t.Setenv("PORT", "3000")
	t.Setenv("ENV", "production")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "5")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Error("expected production mode")
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestValidate_RejectsRelativeURL(t *testing.T) {
	cfg := &Config{AnalyticsAPIURL: "api.example.com", HTTPTimeout: time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for URL without scheme")
	}
}
