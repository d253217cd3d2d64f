package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "hello")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR}", "hello"},
		{"${TEST_VAR:default}", "hello"},
		{"${UNSET_VAR:fallback}", "fallback"},
		{"${UNSET_VAR}", ""},
		{"no vars here", "no vars here"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
	}

	for _, tt := range tests {
		got := expandEnvVars(tt.input)
		if got != tt.expected {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_WithEnvVars(t *testing.T) {
	t.Setenv("TEST_PORT", "7777")
	path := writeFile(t, t.TempDir(), "gateway.yaml", `
server:
  host: "${TEST_HOST:127.0.0.1}"
  port: ${TEST_PORT}
gateway:
  cache_ttl: 90s
  rate_limit_max_requests: 5
`)

	cfg := DefaultConfig()
	if err := LoadFile(path, cfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Gateway.CacheTTL != 90*time.Second {
		t.Errorf("expected cache ttl 90s, got %v", cfg.Gateway.CacheTTL)
	}
	if cfg.Gateway.RateLimitMaxRequests != 5 {
		t.Errorf("expected max requests 5, got %d", cfg.Gateway.RateLimitMaxRequests)
	}
	// untouched keys keep their defaults
	if !cfg.Gateway.Failover || cfg.Gateway.RateLimitWindow != time.Minute {
		t.Errorf("defaults lost: %+v", cfg.Gateway)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), &Config{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaultGatewayConfig(t *testing.T) {
	g := DefaultGatewayConfig()
	if !g.LoadBalancing || !g.Failover || !g.Caching || !g.RateLimiting {
		t.Errorf("all toggles should default on: %+v", g)
	}
	if g.CacheTTL != 5*time.Minute || g.RateLimitWindow != time.Minute || g.RateLimitMaxRequests != 100 {
		t.Errorf("unexpected defaults: %+v", g)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestGatewayConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GatewayConfig)
	}{
		{"zero ttl", func(g *GatewayConfig) { g.CacheTTL = 0 }},
		{"zero window", func(g *GatewayConfig) { g.RateLimitWindow = 0 }},
		{"zero max", func(g *GatewayConfig) { g.RateLimitMaxRequests = 0 }},
		{"negative backoff", func(g *GatewayConfig) { g.RetryBackoffBase = -time.Second }},
		{"bad backend", func(g *GatewayConfig) { g.CacheBackend = "memcached" }},
		{"breaker threshold", func(g *GatewayConfig) {
			g.CircuitBreaker.Enabled = true
			g.CircuitBreaker.FailureThreshold = 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := DefaultGatewayConfig()
			tt.mutate(&g)
			if err := g.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestTelemetryLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (TelemetryConfig{LogLevel: in}).Level(); got != want {
			t.Errorf("Level(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "gw", User: "u", Password: "p@ss"}
	want := "postgres://u:p%40ss@db:5432/gw?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestLoader_Load(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	dir := t.TempDir()
	writeFile(t, dir, "gateway.yaml", `
gateway:
  failover: false
`)
	writeFile(t, dir, "services.yaml", `
services:
  - id: google-gemini
    provider: google
    capability: chat
    endpoint: http://gemini.local
    credential: g-key
    model: gemini-pro
    enabled: true
    priority: 1
  - id: local-llm
    provider: self-hosted
    capability: completion
    endpoint: http://llm.local
    model: llama
    enabled: true
    timeout: 5s
`)

	l := NewLoader(dir, slog.New(slog.DiscardHandler))
	if err := l.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Config().Gateway.Failover {
		t.Error("failover should be off")
	}

	services := l.Services()
	if len(services) != 6 {
		t.Fatalf("expected 6 services, got %d", len(services))
	}
	byID := map[string]int{}
	for i, s := range services {
		byID[s.ID] = i
	}
	if g := services[byID["google-gemini"]]; g.Endpoint != "http://gemini.local" || g.Priority != 1 {
		t.Errorf("override not applied: %+v", g)
	}
	if s := services[byID["local-llm"]]; s.Timeout != 5*time.Second {
		t.Errorf("appended service timeout = %v", s.Timeout)
	}
	if !services[byID["anthropic-claude3"]].Enabled {
		t.Error("anthropic should be enabled with a key")
	}
	if services[byID["openai-gpt4"]].Enabled {
		t.Error("openai should be disabled without a key")
	}
}

func TestLoader_MissingServicesFile(t *testing.T) {
	clearProviderEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "gateway.yaml", "server:\n  port: 8081\n")

	l := NewLoader(dir, slog.New(slog.DiscardHandler))
	if err := l.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(l.Services()); got != 5 {
		t.Errorf("expected the 5 default services, got %d", got)
	}
}

func TestLoader_InvalidGateway(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "gateway.yaml", "gateway:\n  cache_ttl: 0s\n")

	l := NewLoader(dir, slog.New(slog.DiscardHandler))
	if err := l.Load(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "DOTENV_TEST_KEY=from-file\n")
	t.Setenv("DOTENV_TEST_KEY", "")
	os.Unsetenv("DOTENV_TEST_KEY")

	got, err := LoadDotEnv(filepath.Join(dir, "missing.env"), path)
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got != path {
		t.Errorf("loaded %q, want %q", got, path)
	}
	if v := os.Getenv("DOTENV_TEST_KEY"); v != "from-file" {
		t.Errorf("DOTENV_TEST_KEY = %q", v)
	}

	none, err := LoadDotEnv(filepath.Join(dir, "missing.env"))
	if err != nil || none != "" {
		t.Errorf("missing files should be ignored, got %q, %v", none, err)
	}
}
