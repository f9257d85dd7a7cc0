package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Aggregate backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMock   = "mock"
)

type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Dashboard  DashboardConfig `yaml:"dashboard"`
	Aggregates AggregateConfig `yaml:"aggregates"`
	Logging    LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections"`
}

type DashboardConfig struct {
	PublishInterval time.Duration `yaml:"publish_interval"`
	PublishOnOpen   bool          `yaml:"publish_on_open"`
	CloseTimeout    time.Duration `yaml:"close_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	SeriesTimeout   time.Duration `yaml:"series_timeout"`
	// DegradedAfter is how many consecutive failures mark a series degraded
	// in /api/health.
	DegradedAfter int `yaml:"degraded_after"`
}

type AggregateConfig struct {
	Backend     string `yaml:"backend"`
	DataDir     string `yaml:"data_dir"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
	// Seed fills an empty memory dataset (or Redis) with sample data.
	Seed bool `yaml:"seed"`
}

type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Dashboard: DashboardConfig{
			PublishInterval: 5 * time.Second,
			CloseTimeout:    2 * time.Second,
			WriteTimeout:    10 * time.Second,
			SeriesTimeout:   2 * time.Second,
			DegradedAfter:   3,
		},
		Aggregates: AggregateConfig{
			Backend:     BackendMemory,
			RedisAddr:   "127.0.0.1:6379",
			RedisPrefix: "nixkart:dashboard:",
			Seed:        true,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment overlay and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to defaults when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg = defaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// applyEnv overrides selected settings from NIXKART_* variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("NIXKART_AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv("NIXKART_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("NIXKART_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NIXKART_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("NIXKART_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("NIXKART_AGGREGATE_BACKEND"); v != "" {
		c.Aggregates.Backend = v
	}
	if v := os.Getenv("NIXKART_REDIS_ADDR"); v != "" {
		c.Aggregates.RedisAddr = v
	}
	if v := os.Getenv("NIXKART_DATA_DIR"); v != "" {
		c.Aggregates.DataDir = v
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, errors.New("server.max_connections must not be negative"))
	}
	if c.Dashboard.PublishInterval <= 0 {
		errs = append(errs, errors.New("dashboard.publish_interval must be positive"))
	}
	if c.Dashboard.CloseTimeout <= 0 {
		errs = append(errs, errors.New("dashboard.close_timeout must be positive"))
	}
	if c.Dashboard.WriteTimeout <= 0 {
		errs = append(errs, errors.New("dashboard.write_timeout must be positive"))
	}
	if c.Dashboard.SeriesTimeout < 0 {
		errs = append(errs, errors.New("dashboard.series_timeout must not be negative"))
	}
	if c.Dashboard.DegradedAfter < 1 {
		errs = append(errs, errors.New("dashboard.degraded_after must be at least 1"))
	}
	switch c.Aggregates.Backend {
	case BackendMemory, BackendMock:
	case BackendRedis:
		if c.Aggregates.RedisAddr == "" {
			errs = append(errs, errors.New("aggregates.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown aggregates.backend %q", c.Aggregates.Backend))
	}
	return errors.Join(errs...)
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
