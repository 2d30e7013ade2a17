package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the homepilot API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Registry RegistryConfig `yaml:"registry"`
	Invoker  InvokerConfig  `yaml:"invoker"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Rerank   RerankConfig   `yaml:"rerank"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RegistryConfig holds capability registry client settings.
type RegistryConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"`
}

// InvokerConfig holds resilience settings for downstream calls.
type InvokerConfig struct {
	MaxAttempts         int `yaml:"max_attempts"`
	BaseBackoffMs       int `yaml:"base_backoff_ms"`
	CallTimeoutSec      int `yaml:"call_timeout_sec"`
	BreakerThreshold    int `yaml:"breaker_threshold"`
	BreakerCooldownSec  int `yaml:"breaker_cooldown_sec"`
	MaxConnsPerEndpoint int `yaml:"max_conns_per_endpoint"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	DefaultLimit      int    `yaml:"default_limit"`
	MaxClarifications int    `yaml:"max_clarifications"`
	LexiconPath       string `yaml:"lexicon_path"` // empty: embedded default tables
	ConvlogTTLDays    int    `yaml:"convlog_ttl_days"`
}

// RerankConfig holds re-ranking engine settings.
type RerankConfig struct {
	Weights     WeightsConfig `yaml:"weights"`
	Concurrency int           `yaml:"concurrency"`
}

// WeightsConfig holds the five feature weights. They must sum to 1.0.
type WeightsConfig struct {
	Completeness     float64 `yaml:"completeness"`
	SellerReputation float64 `yaml:"seller_reputation"`
	Freshness        float64 `yaml:"freshness"`
	Engagement       float64 `yaml:"engagement"`
	Personalization  float64 `yaml:"personalization"`
}

func (w WeightsConfig) sum() float64 {
	return w.Completeness + w.SellerReputation + w.Freshness + w.Engagement + w.Personalization
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 35
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Registry.TimeoutSec <= 0 {
		c.Registry.TimeoutSec = 2
	}
	if c.Registry.CacheTTLSec <= 0 {
		c.Registry.CacheTTLSec = 5
	}
	if c.Invoker.MaxAttempts <= 0 {
		c.Invoker.MaxAttempts = 3
	}
	if c.Invoker.BaseBackoffMs <= 0 {
		c.Invoker.BaseBackoffMs = 1000
	}
	if c.Invoker.CallTimeoutSec <= 0 {
		c.Invoker.CallTimeoutSec = 10
	}
	if c.Invoker.BreakerThreshold <= 0 {
		c.Invoker.BreakerThreshold = 5
	}
	if c.Invoker.BreakerCooldownSec <= 0 {
		c.Invoker.BreakerCooldownSec = 30
	}
	if c.Invoker.MaxConnsPerEndpoint <= 0 {
		c.Invoker.MaxConnsPerEndpoint = 8
	}
	if c.Pipeline.RequestTimeoutSec <= 0 {
		c.Pipeline.RequestTimeoutSec = 30
	}
	if c.Pipeline.DefaultLimit <= 0 {
		c.Pipeline.DefaultLimit = 10
	}
	if c.Pipeline.MaxClarifications <= 0 {
		c.Pipeline.MaxClarifications = 2
	}
	if c.Pipeline.ConvlogTTLDays <= 0 {
		c.Pipeline.ConvlogTTLDays = 30
	}
	if c.Rerank.Concurrency <= 0 {
		c.Rerank.Concurrency = 8
	}
	if c.Rerank.Weights.sum() == 0 {
		c.Rerank.Weights = WeightsConfig{
			Completeness:     0.40,
			SellerReputation: 0.20,
			Freshness:        0.15,
			Engagement:       0.15,
			Personalization:  0.10,
		}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Registry.BaseURL == "" {
		return fmt.Errorf("registry.base_url is required")
	}
	if sum := c.Rerank.Weights.sum(); math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("rerank.weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
