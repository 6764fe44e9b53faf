package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lostlink/matcher/internal/domain/boost"
	"github.com/lostlink/matcher/internal/domain/match"
)

// Config holds the matcher configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Matching  MatchingConfig  `yaml:"matching"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Database drivers.
const (
	DriverRedis  = "redis"
	DriverValkey = "valkey"
	DriverMemory = "memory"
)

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	UpdateRetries    int      `yaml:"update_retries"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string      `yaml:"provider"`
	APIKey     string      `yaml:"api_key"`
	BaseURL    string      `yaml:"base_url"`
	Model      string      `yaml:"model"`
	Dimensions int         `yaml:"dimensions"` // 0 = model default, no length check
	TimeoutSec int         `yaml:"timeout_sec"`
	Cache      CacheConfig `yaml:"cache"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"`
}

// MatchingConfig holds scoring rules and run limits.
// Pointer fields distinguish "unset" from an explicit zero.
type MatchingConfig struct {
	Threshold        *float64 `yaml:"threshold"`
	LocationBonus    *float64 `yaml:"location_bonus"`
	CategoryBonus    *float64 `yaml:"category_bonus"`
	DateBonus        *float64 `yaml:"date_bonus"`
	DescriptionBonus *float64 `yaml:"description_bonus"`
	DateWindowDays   int      `yaml:"date_window_days"`
	MinTokenLen      int      `yaml:"min_token_len"`
	MinSharedTokens  int      `yaml:"min_shared_tokens"`
	IncludeTitle     *bool    `yaml:"include_title"`
	Workers          int      `yaml:"workers"`
	RunTimeoutSec    int      `yaml:"run_timeout_sec"`
	LinkRetries      int      `yaml:"link_retries"`
}

// Boost returns the rule engine configuration.
func (m MatchingConfig) Boost() boost.Config {
	return boost.Config{
		LocationBonus:    *m.LocationBonus,
		CategoryBonus:    *m.CategoryBonus,
		DateBonus:        *m.DateBonus,
		DateWindowDays:   m.DateWindowDays,
		DescriptionBonus: *m.DescriptionBonus,
		MinTokenLen:      m.MinTokenLen,
		MinSharedTokens:  m.MinSharedTokens,
		IncludeTitle:     *m.IncludeTitle,
	}
}

// RunTimeout bounds a single matching run.
func (m MatchingConfig) RunTimeout() time.Duration {
	return time.Duration(m.RunTimeoutSec) * time.Second
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded into the environment first;
// variables already set win.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

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
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 15
	}
	if c.Embedding.Cache.TTLSec <= 0 {
		c.Embedding.Cache.TTLSec = int((7 * 24 * time.Hour).Seconds())
	}
	c.Matching.applyDefaults()
}

func (m *MatchingConfig) applyDefaults() {
	def := boost.DefaultConfig()
	setFloat := func(p **float64, v float64) {
		if *p == nil {
			*p = &v
		}
	}
	setFloat(&m.Threshold, match.DefaultThreshold)
	setFloat(&m.LocationBonus, def.LocationBonus)
	setFloat(&m.CategoryBonus, def.CategoryBonus)
	setFloat(&m.DateBonus, def.DateBonus)
	setFloat(&m.DescriptionBonus, def.DescriptionBonus)
	if m.IncludeTitle == nil {
		v := def.IncludeTitle
		m.IncludeTitle = &v
	}
	if m.DateWindowDays <= 0 {
		m.DateWindowDays = def.DateWindowDays
	}
	if m.MinTokenLen <= 0 {
		m.MinTokenLen = def.MinTokenLen
	}
	if m.MinSharedTokens <= 0 {
		m.MinSharedTokens = def.MinSharedTokens
	}
	if m.Workers <= 0 {
		m.Workers = 4
	}
	if m.RunTimeoutSec <= 0 {
		m.RunTimeoutSec = 60
	}
	if m.LinkRetries <= 0 {
		m.LinkRetries = 3
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be redis, valkey or memory, got %q", c.Database.Driver)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	if t := c.Matching.Threshold; t != nil && (*t <= 0 || *t > 2) {
		return fmt.Errorf("matching.threshold must be in (0, 2], got %v", *t)
	}
	for name, v := range map[string]*float64{
		"location_bonus":    c.Matching.LocationBonus,
		"category_bonus":    c.Matching.CategoryBonus,
		"date_bonus":        c.Matching.DateBonus,
		"description_bonus": c.Matching.DescriptionBonus,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("matching.%s must not be negative, got %v", name, *v)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(m []byte) []byte {
		expr := string(m[2 : len(m)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
