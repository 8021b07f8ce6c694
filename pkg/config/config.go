// Package config provides configuration structures and loading logic for the
// pipeline service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the global configuration of the service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Engine    EngineConfig    `yaml:"engine"`
	Store     StoreConfig     `yaml:"store"`
	Pipelines PipelinesConfig `yaml:"pipelines"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Address         string          `yaml:"address"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64           `yaml:"max_body_bytes"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	TLS             TLSConfig       `yaml:"tls"`
}

// TLSConfig serves HTTPS when a certificate is set; a client CA bundle adds
// mutual TLS.
type TLSConfig struct {
	CertFile     string `yaml:"cert_file"`
	KeyFile      string `yaml:"key_file"`
	ClientCAFile string `yaml:"client_ca_file"`
}

// RateLimitConfig configures the per-client token bucket. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	// MaxClients caps the number of tracked client addresses.
	MaxClients int `yaml:"max_clients"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	Insecure     bool    `yaml:"insecure"`
	ServiceName  string  `yaml:"service_name"`
	Environment  string  `yaml:"environment"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// EngineConfig holds the node defaults and scheduling of the executor.
type EngineConfig struct {
	DefaultTimeoutMS int `yaml:"default_timeout_ms"`
	DefaultRetries   int `yaml:"default_retries"`
	RetryDelayMS     int `yaml:"retry_delay_ms"`
	Parallelism      int `yaml:"parallelism"`
}

// StoreConfig selects where definitions and run records are kept.
type StoreConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// PipelinesConfig points at a directory of named definition files.
type PipelinesConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "polis-dag",
			SampleRatio: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Engine: EngineConfig{
			DefaultTimeoutMS: 20000,
			DefaultRetries:   1,
			RetryDelayMS:     300,
			Parallelism:      1,
		},
		Store: StoreConfig{
			Driver: DriverMemory,
		},
	}
}

// Load reads configuration from a file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Config file path is controlled by admin/operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("POLIS_DAG_ADDR"); val != "" {
		cfg.Server.Address = val
	}
	if val := os.Getenv("POLIS_DAG_RATE_LIMIT_RPS"); val != "" {
		if rps, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Server.RateLimit.RequestsPerSecond = rps
		}
	}

	if val := os.Getenv("POLIS_DAG_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("POLIS_DAG_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}

	if val := os.Getenv("POLIS_DAG_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("POLIS_DAG_LOG_PRETTY"); val == "true" {
		cfg.Logging.Pretty = true
	}

	if val := os.Getenv("POLIS_DAG_PARALLELISM"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Engine.Parallelism = n
		}
	}

	if val := os.Getenv("POLIS_DAG_STORE_DRIVER"); val != "" {
		cfg.Store.Driver = val
	}
	if val := os.Getenv("POLIS_DAG_STORE_DSN"); val != "" {
		cfg.Store.DSN = val
	}

	if val := os.Getenv("POLIS_DAG_PIPELINES_DIR"); val != "" {
		cfg.Pipelines.Dir = val
	}
}

// Validate performs validation of the entire configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration: %w", err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry configuration: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}

	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine configuration: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store configuration: %w", err)
	}

	return nil
}

// Validate performs validation of server configuration.
func (c *ServerConfig) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		c.Address = ":8080"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must not be negative")
	}
	if c.RateLimit.MaxClients < 0 {
		return fmt.Errorf("rate_limit.max_clients must not be negative")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must not be negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = int(c.RateLimit.RequestsPerSecond)
		if c.RateLimit.Burst < 1 {
			c.RateLimit.Burst = 1
		}
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("tls.cert_file and tls.key_file must be set together")
	}
	return nil
}

// Validate performs validation of telemetry configuration.
func (c *TelemetryConfig) Validate() error {
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample_ratio must be within [0, 1], got %v", c.SampleRatio)
	}
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = "polis-dag"
	}
	return nil
}

// Validate performs validation of logging configuration.
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
		return nil
	default:
		return fmt.Errorf("invalid log level %q, supported levels: debug, info, warn, error", c.Level)
	}
}

// Validate performs validation of engine configuration.
func (c *EngineConfig) Validate() error {
	if c.DefaultTimeoutMS < 0 {
		return fmt.Errorf("default_timeout_ms must not be negative")
	}
	if c.DefaultRetries < 0 {
		return fmt.Errorf("default_retries must not be negative")
	}
	if c.RetryDelayMS < 0 {
		return fmt.Errorf("retry_delay_ms must not be negative")
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative")
	}
	if c.Parallelism == 0 {
		c.Parallelism = 1
	}
	return nil
}

// Timeout is the default per-attempt timeout.
func (c EngineConfig) Timeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMS) * time.Millisecond
}

// RetryDelay is the default pause between attempts.
func (c EngineConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// Validate performs validation of store configuration.
func (c *StoreConfig) Validate() error {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if driver == "" {
		driver = DriverMemory
	}
	c.Driver = driver

	switch driver {
	case DriverMemory:
		return nil
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.DSN) == "" {
			return fmt.Errorf("dsn is required for driver %q", driver)
		}
		return nil
	default:
		return fmt.Errorf("unsupported driver %q, supported drivers: memory, sqlite, postgres", c.Driver)
	}
}
