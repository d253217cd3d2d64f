package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Gateway   GatewayConfig   `yaml:"gateway"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	GRPCPort         int           `yaml:"grpc_port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

func (s ServerConfig) GRPCAddr() string {
	return s.Host + ":" + strconv.Itoa(s.GRPCPort)
}

// DatabaseConfig enables catalog persistence when Enabled is set.
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// RedisConfig enables the shared cache, limiter windows and event
// publishing when Enabled is set.
type RedisConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Addresses     []string `yaml:"addresses"`
	Password      string   `yaml:"password"`
	DB            int      `yaml:"db"`
	PoolSize      int      `yaml:"pool_size"`
	EventsChannel string   `yaml:"events_channel"`
}

type TelemetryConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Level parses LogLevel; unknown values fall back to info.
func (t TelemetryConfig) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(t.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// GatewayConfig holds the gateway toggles. LoadBalancing, Failover,
// Caching, RateLimiting, RateLimitBlocking, CacheTTL, RateLimitWindow and
// RateLimitMaxRequests can change at runtime; the rest apply at startup.
type GatewayConfig struct {
	LoadBalancing        bool                 `yaml:"load_balancing"`
	Failover             bool                 `yaml:"failover"`
	Caching              bool                 `yaml:"caching"`
	RateLimiting         bool                 `yaml:"rate_limiting"`
	RateLimitBlocking    bool                 `yaml:"rate_limit_blocking"`
	CacheTTL             time.Duration        `yaml:"cache_ttl"`
	CacheSweepInterval   time.Duration        `yaml:"cache_sweep_interval"`
	RateLimitWindow      time.Duration        `yaml:"rate_limit_window"`
	RateLimitMaxRequests int64                `yaml:"rate_limit_max_requests"`
	RetryBackoffBase     time.Duration        `yaml:"retry_backoff_base"`
	CacheBackend         string               `yaml:"cache_backend"`
	RateLimitBackend     string               `yaml:"rate_limit_backend"`
	CircuitBreaker       CircuitBreakerConfig `yaml:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled               bool          `yaml:"enabled"`
	FailureThreshold      int           `yaml:"failure_threshold"`
	RecoveryProbeInterval time.Duration `yaml:"recovery_probe_interval"`
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

func (g GatewayConfig) Validate() error {
	var problems []string
	if g.CacheTTL <= 0 {
		problems = append(problems, "cache_ttl must be positive")
	}
	if g.RateLimitWindow <= 0 {
		problems = append(problems, "rate_limit_window must be positive")
	}
	if g.RateLimitMaxRequests <= 0 {
		problems = append(problems, "rate_limit_max_requests must be positive")
	}
	if g.RetryBackoffBase < 0 {
		problems = append(problems, "retry_backoff_base must not be negative")
	}
	for name, backend := range map[string]string{"cache_backend": g.CacheBackend, "rate_limit_backend": g.RateLimitBackend} {
		if backend != BackendMemory && backend != BackendRedis {
			problems = append(problems, fmt.Sprintf("%s must be memory or redis, got %q", name, backend))
		}
	}
	if g.CircuitBreaker.Enabled && g.CircuitBreaker.FailureThreshold < 1 {
		problems = append(problems, "circuit_breaker.failure_threshold must be at least 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid gateway config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		LoadBalancing:        true,
		Failover:             true,
		Caching:              true,
		RateLimiting:         true,
		RateLimitBlocking:    true,
		CacheTTL:             5 * time.Minute,
		CacheSweepInterval:   time.Minute,
		RateLimitWindow:      time.Minute,
		RateLimitMaxRequests: 100,
		RetryBackoffBase:     time.Second,
		CacheBackend:         BackendMemory,
		RateLimitBackend:     BackendMemory,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:               false,
			FailureThreshold:      5,
			RecoveryProbeInterval: 15 * time.Second,
		},
	}
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			GRPCPort:         9090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     300 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "ai_gateway",
			User:            "ai_gateway",
			MaxOpenConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addresses:     []string{"localhost:6379"},
			PoolSize:      50,
			EventsChannel: "ai-gateway:events",
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
		Gateway: DefaultGatewayConfig(),
	}
}
