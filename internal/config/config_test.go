package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  auth_token: secret
  allowed_origins:
    - "https://shop.example.com"
  max_connections: 25
dashboard:
  publish_interval: 3s
  publish_on_open: true
aggregates:
  backend: redis
  redis_addr: "redis:6379"
logging:
  debug: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.AuthToken != "secret" {
		t.Errorf("Server.AuthToken = %q, want secret", cfg.Server.AuthToken)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://shop.example.com" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.MaxConnections != 25 {
		t.Errorf("Server.MaxConnections = %d, want 25", cfg.Server.MaxConnections)
	}
	if cfg.Dashboard.PublishInterval != 3*time.Second {
		t.Errorf("Dashboard.PublishInterval = %v, want 3s", cfg.Dashboard.PublishInterval)
	}
	if !cfg.Dashboard.PublishOnOpen {
		t.Error("Dashboard.PublishOnOpen = false, want true")
	}
	if cfg.Aggregates.Backend != BackendRedis || cfg.Aggregates.RedisAddr != "redis:6379" {
		t.Errorf("Aggregates = %+v", cfg.Aggregates)
	}
	if !cfg.Logging.Debug {
		t.Error("Logging.Debug = false, want true")
	}

	// Defaults should still be applied for unspecified fields.
	if cfg.Dashboard.CloseTimeout != 2*time.Second {
		t.Errorf("Dashboard.CloseTimeout = %v, want default 2s", cfg.Dashboard.CloseTimeout)
	}
	if cfg.Dashboard.WriteTimeout != 10*time.Second {
		t.Errorf("Dashboard.WriteTimeout = %v, want default 10s", cfg.Dashboard.WriteTimeout)
	}
	if cfg.Aggregates.RedisPrefix != "nixkart:dashboard:" {
		t.Errorf("Aggregates.RedisPrefix = %q, want default", cfg.Aggregates.RedisPrefix)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() on missing file should return error")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want default %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Dashboard.PublishInterval != 5*time.Second {
		t.Errorf("Dashboard.PublishInterval = %v, want default 5s", cfg.Dashboard.PublishInterval)
	}
	if cfg.Dashboard.PublishOnOpen {
		t.Error("Dashboard.PublishOnOpen = true, want default false")
	}
	if cfg.Aggregates.Backend != BackendMemory {
		t.Errorf("Aggregates.Backend = %q, want %q", cfg.Aggregates.Backend, BackendMemory)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, ":::not valid yaml")

	if _, err := Load(path); err == nil {
		t.Fatal("Load() with invalid YAML should return error")
	}
	if _, err := LoadOrDefault(path); err == nil {
		t.Fatal("LoadOrDefault() with invalid YAML should return error")
	}
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("NIXKART_AUTH_TOKEN", "from-env")
	t.Setenv("NIXKART_PORT", "7070")
	t.Setenv("NIXKART_AGGREGATE_BACKEND", "mock")
	t.Setenv("NIXKART_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	path := writeConfig(t, "server:\n  port: 9090\n  auth_token: from-file\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.AuthToken != "from-env" {
		t.Errorf("AuthToken = %q, want from-env", cfg.Server.AuthToken)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Aggregates.Backend != BackendMock {
		t.Errorf("Backend = %q, want mock", cfg.Aggregates.Backend)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestEnvOverlayBadPort(t *testing.T) {
	t.Setenv("NIXKART_PORT", "eighty")
	if _, err := LoadOrDefault("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for non-numeric NIXKART_PORT")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("NIXKART_REDIS_ADDR=cache:6380\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NIXKART_REDIS_ADDR", "")
	os.Unsetenv("NIXKART_REDIS_ADDR")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envPath); err != nil {
		t.Fatalf("LoadDotEnv() error: %v", err)
	}

	cfg, err := LoadOrDefault("/nonexistent/config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Aggregates.RedisAddr != "cache:6380" {
		t.Errorf("RedisAddr = %q, want cache:6380", cfg.Aggregates.RedisAddr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero interval", func(c *Config) { c.Dashboard.PublishInterval = 0 }, "publish_interval"},
		{"negative interval", func(c *Config) { c.Dashboard.PublishInterval = -time.Second }, "publish_interval"},
		{"zero close timeout", func(c *Config) { c.Dashboard.CloseTimeout = 0 }, "close_timeout"},
		{"zero degraded threshold", func(c *Config) { c.Dashboard.DegradedAfter = 0 }, "degraded_after"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"negative max connections", func(c *Config) { c.Server.MaxConnections = -1 }, "max_connections"},
		{"unknown backend", func(c *Config) { c.Aggregates.Backend = "postgres" }, "unknown aggregates.backend"},
		{"redis without addr", func(c *Config) {
			c.Aggregates.Backend = BackendRedis
			c.Aggregates.RedisAddr = ""
		}, "redis_addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q", got)
	}
}
