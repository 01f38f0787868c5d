package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// An empty explicit config file keeps a stray ./config.yaml from
	// leaking into the assertions.
	f, err := os.CreateTemp("", "config_*.yaml")
	assert.NoError(t, err)
	defer os.Remove(f.Name())
	f.Close()
	t.Setenv("CONFIG_FILE", f.Name())

	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 60, cfg.RateLimit.DefaultRPM)
	assert.Equal(t, uint32(5), cfg.Fault.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Fault.Cooldown)
	assert.Equal(t, 3, cfg.Fault.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.Fault.CallTimeout)
	assert.Equal(t, 8, cfg.Stream.BufferSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Stream.Window)
	assert.Equal(t, 256, cfg.Stream.MaxPending)
	assert.Equal(t, 5*time.Minute, cfg.Health.TTL)
	assert.Equal(t, 30*time.Second, cfg.Health.ProbeTimeout)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	f, err := os.CreateTemp("", "config_*.yaml")
	assert.NoError(t, err)
	defer os.Remove(f.Name())
	f.Close()

	t.Setenv("CONFIG_FILE", f.Name())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_ENV", "test")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "test", cfg.Server.Env)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadConfig_FromFile(t *testing.T) {
	configContent := `
server:
  port: "7070"
rate_limit:
  default_rpm: 120
  overrides:
    openai: 240
stream:
  window: 250ms
providers:
  - id: echo-dev
    name: Echo
    type: echo
    priority: 1
    enabled: true
    models:
      - name: echo-1
        max_tokens: 4096
        capabilities: [streaming]
        enabled: true
`
	f, err := os.CreateTemp("", "config_*.yaml")
	assert.NoError(t, err)
	defer os.Remove(f.Name())
	_, err = f.WriteString(configContent)
	assert.NoError(t, err)
	f.Close()

	t.Setenv("CONFIG_FILE", f.Name())

	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 120, cfg.RateLimit.DefaultRPM)
	assert.Equal(t, 240, cfg.RateLimit.Overrides["openai"])
	assert.Equal(t, 250*time.Millisecond, cfg.Stream.Window)

	assert.Len(t, cfg.Providers, 1)
	p := cfg.Providers[0]
	assert.Equal(t, "echo-dev", p.ID)
	assert.True(t, p.Enabled)
	assert.Len(t, p.Models, 1)
	assert.Equal(t, "echo-1", p.Models[0].Name)
	assert.Equal(t, []string{"streaming"}, p.Models[0].Capabilities)
}

func TestLoadConfig_APIKeyResolution(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-12345")

	configContent := `
providers:
  - id: test-provider
    name: Test
    type: test
    api_key: "ENV:TEST_API_KEY"
    enabled: true
`
	f, err := os.CreateTemp("", "config_*.yaml")
	assert.NoError(t, err)
	defer os.Remove(f.Name())
	_, err = f.WriteString(configContent)
	assert.NoError(t, err)
	f.Close()

	t.Setenv("CONFIG_FILE", f.Name())

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.Len(t, cfg.Providers, 1)
	assert.Equal(t, "sk-test-12345", cfg.Providers[0].APIKey)
}
