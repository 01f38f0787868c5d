package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Cache     CacheConfig      `mapstructure:"cache"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Fault     FaultConfig      `mapstructure:"fault"`
	Stream    StreamConfig     `mapstructure:"stream"`
	Health    HealthConfig     `mapstructure:"health"`
	Catalog   CatalogConfig    `mapstructure:"catalog"`
	Providers []ProviderConfig `mapstructure:"providers"`
}

type ServerConfig struct {
	Port    string   `mapstructure:"port"`
	Env     string   `mapstructure:"env"`
	APIKeys []string `mapstructure:"api_keys"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	// DefaultRPM is the requests-per-minute bucket applied to providers
	// without an explicit override.
	DefaultRPM int            `mapstructure:"default_rpm"`
	Overrides  map[string]int `mapstructure:"overrides"`
}

type FaultConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	MaxRetries       int           `mapstructure:"max_retries"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
}

type StreamConfig struct {
	BufferSize int           `mapstructure:"buffer_size"`
	Window     time.Duration `mapstructure:"window"`
	MaxPending int           `mapstructure:"max_pending"`
}

type HealthConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

type CatalogConfig struct {
	// DSN points at the external sqlite catalog. Empty means the YAML
	// provider snapshot below is used directly.
	DSN string `mapstructure:"dsn"`
}

type ProviderConfig struct {
	ID       string        `mapstructure:"id"`
	Name     string        `mapstructure:"name"`
	Type     string        `mapstructure:"type"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Priority int           `mapstructure:"priority"`
	Enabled  bool          `mapstructure:"enabled"`
	Models   []ModelConfig `mapstructure:"models"`
}

type ModelConfig struct {
	Name            string   `mapstructure:"name"`
	DisplayName     string   `mapstructure:"display_name"`
	MaxTokens       int      `mapstructure:"max_tokens"`
	Capabilities    []string `mapstructure:"capabilities"`
	InputCostPer1K  float64  `mapstructure:"input_cost_per_1k"`
	OutputCostPer1K float64  `mapstructure:"output_cost_per_1k"`
	Enabled         bool     `mapstructure:"enabled"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	}

	// Default Values
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("rate_limit.default_rpm", 60)
	v.SetDefault("fault.failure_threshold", 5)
	v.SetDefault("fault.cooldown", 30*time.Second)
	v.SetDefault("fault.max_retries", 3)
	v.SetDefault("fault.call_timeout", 60*time.Second)
	v.SetDefault("stream.buffer_size", 8)
	v.SetDefault("stream.window", 100*time.Millisecond)
	v.SetDefault("stream.max_pending", 256)
	v.SetDefault("health.ttl", 5*time.Minute)
	v.SetDefault("health.probe_timeout", 30*time.Second)

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Resolve API Keys
	for i, p := range cfg.Providers {
		if strings.HasPrefix(p.APIKey, "ENV:") {
			envVar := strings.TrimPrefix(p.APIKey, "ENV:")
			// Check process environment first (explicit override)
			val := os.Getenv(envVar)
			if val == "" {
				// Then check viper (which might have it from other sources)
				val = v.GetString(envVar)
			}
			cfg.Providers[i].APIKey = val
		}
	}

	return &cfg, nil
}
