package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentrun/agent/persistence"
	"github.com/BaSui01/agentrun/llm"
	"github.com/BaSui01/agentrun/testutil/mocks"
)

// --- defaults ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Server.EnableMetrics)

	assert.Equal(t, 10, cfg.Runner.MaxTurns)
	assert.Equal(t, "gpt-4o", cfg.Runner.DefaultModel)

	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Auth.Enabled)

	assert.NoError(t, cfg.Validate())
}

// --- loader ---

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "agentrun.yaml")
	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s

runner:
  default_model: "claude-3"
  max_turns: 20
  parallel_tool_calls: true

store:
  type: redis
  ttl: 24h

redis:
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout, "unset keys keep defaults")

	assert.Equal(t, "claude-3", cfg.Runner.DefaultModel)
	assert.Equal(t, 20, cfg.Runner.MaxTurns)
	assert.True(t, cfg.Runner.ParallelToolCalls)

	assert.Equal(t, "redis", cfg.Store.Type)
	assert.Equal(t, 24*time.Hour, cfg.Store.TTL)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
	assert.Panics(t, func() { MustLoad(configPath) })
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("AGENTRUN_SERVER_HTTP_PORT", "7777")
	t.Setenv("AGENTRUN_RUNNER_MAX_TURNS", "15")
	t.Setenv("AGENTRUN_RUNNER_TRACING_DISABLED", "true")
	t.Setenv("AGENTRUN_LLM_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("AGENTRUN_STORE_TTL", "90m")
	t.Setenv("AGENTRUN_LOG_OUTPUT_PATHS", "stdout, /var/log/agentrun.log")
	t.Setenv("AGENTRUN_RATE_LIMIT_RPS", "9")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, 15, cfg.Runner.MaxTurns)
	assert.True(t, cfg.Runner.TracingDisabled)
	assert.Equal(t, 2.5, cfg.LLM.RequestsPerSecond)
	assert.Equal(t, 90*time.Minute, cfg.Store.TTL)
	assert.Equal(t, []string{"stdout", "/var/log/agentrun.log"}, cfg.Log.OutputPaths)
	assert.Equal(t, 9.0, cfg.RateLimit.RPS)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "agentrun.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("runner:\n  default_model: yaml-model\n  max_turns: 3\n"), 0644))
	t.Setenv("AGENTRUN_RUNNER_MAX_TURNS", "30")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Runner.MaxTurns)
	assert.Equal(t, "yaml-model", cfg.Runner.DefaultModel)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("AGENTRUN_SERVER_HTTP_PORT", "not-a-number")

	_, err := NewLoader().Load()
	assert.ErrorContains(t, err, "AGENTRUN_SERVER_HTTP_PORT")
}

func TestLoader_Validators(t *testing.T) {
	cfg, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	t.Setenv("AGENTRUN_STORE_TYPE", "tape")
	_, err = NewLoader().WithValidator((*Config).Validate).Load()
	assert.ErrorContains(t, err, "unsupported store type")
}

// --- validation ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.HTTPPort = 70000 }, "invalid HTTP port"},
		{"max turns", func(c *Config) { c.Runner.MaxTurns = 0 }, "max_turns"},
		{"retries", func(c *Config) { c.LLM.MaxRetries = -1 }, "max_retries"},
		{"file store dir", func(c *Config) {
			c.Store.Type = "file"
			c.Store.BaseDir = ""
		}, "base_dir"},
		{"driver", func(c *Config) {
			c.Store.Type = "database"
			c.Database.Driver = "oracle"
		}, "oracle"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "sample_rate"},
		{"auth secret", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.Secret = "short"
		}, "auth.secret"},
		{"rate limit", func(c *Config) { c.RateLimit.Burst = 0 }, "rate_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DefaultDatabaseConfig()
	assert.Equal(t, "host=localhost port=5432 user=agentrun password= dbname=agentrun sslmode=disable", d.DSN())

	d.Driver = "mysql"
	assert.Equal(t, "agentrun:@tcp(localhost:5432)/agentrun?parseTime=true", d.DSN())

	d.Driver = "sqlite"
	d.Name = "runs.db"
	assert.Equal(t, "runs.db", d.DSN())

	d.Driver = "oracle"
	assert.Empty(t, d.DSN())
}

// --- conversions ---

func TestRunnerConfig_Apply(t *testing.T) {
	r := RunnerConfig{DefaultModel: "m", MaxTurns: 4, TracingDisabled: true}
	resolver := llm.Static(mocks.NewProvider())

	ac := r.Apply(resolver, nil)
	assert.Equal(t, "m", ac.DefaultModel)
	assert.Equal(t, 4, ac.DefaultMaxTurns)
	assert.True(t, ac.TracingDisabled)
	assert.NotNil(t, ac.Resolver)

	assert.Nil(t, r.RunConfig())
	r.ParallelToolCalls = true
	rc := r.RunConfig()
	require.NotNil(t, rc)
	assert.True(t, rc.ParallelToolCalls)
}

func TestLLMConfig_RetryPolicy(t *testing.T) {
	c := LLMConfig{MaxRetries: 5, InitialDelay: 10 * time.Millisecond}
	p := c.RetryPolicy()
	assert.Equal(t, 5, p.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, p.InitialDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)

	wrapped := c.WrapProvider(mocks.NewProvider().WithName("scripted"), nil)
	assert.Equal(t, "scripted", wrapped.Name())
}

func TestConfig_Persistence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Type = "redis"
	cfg.Store.TTL = time.Hour
	cfg.Redis.DB = 3

	sc := cfg.Persistence()
	assert.Equal(t, persistence.StoreTypeRedis, sc.Type)
	assert.Equal(t, time.Hour, sc.TTL)
	assert.Equal(t, 3, sc.Redis.DB)
	assert.Equal(t, "agentrun:", sc.Redis.KeyPrefix)
}

func TestServerConfig_ShutdownDeadline(t *testing.T) {
	assert.Equal(t, time.Second, ServerConfig{}.ShutdownDeadline())
	assert.Equal(t, 15*time.Second, DefaultServerConfig().ShutdownDeadline())
}
