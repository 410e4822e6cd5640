package config

import (
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentrun/agent"
	"github.com/BaSui01/agentrun/agent/persistence"
	"github.com/BaSui01/agentrun/llm"
	"github.com/BaSui01/agentrun/llm/retry"
)

// Apply builds a runner configuration.
func (r RunnerConfig) Apply(resolver llm.Resolver, logger *zap.Logger) agent.Config {
	return agent.Config{
		Resolver:        resolver,
		DefaultModel:    r.DefaultModel,
		DefaultMaxTurns: r.MaxTurns,
		Logger:          logger,
		TracingDisabled: r.TracingDisabled,
	}
}

// RunConfig returns the run-level defaults, or nil when there are none.
func (r RunnerConfig) RunConfig() *agent.RunConfig {
	if !r.ParallelToolCalls && !r.UsePreviousResponseID && r.WorkflowName == "" {
		return nil
	}
	return &agent.RunConfig{
		ParallelToolCalls:     r.ParallelToolCalls,
		UsePreviousResponseID: r.UsePreviousResponseID,
		WorkflowName:          r.WorkflowName,
	}
}

// RetryPolicy returns the provider retry policy.
func (c LLMConfig) RetryPolicy() *retry.RetryPolicy {
	p := retry.DefaultRetryPolicy()
	p.MaxRetries = c.MaxRetries
	if c.InitialDelay > 0 {
		p.InitialDelay = c.InitialDelay
	}
	if c.MaxDelay > 0 {
		p.MaxDelay = c.MaxDelay
	}
	return p
}

// WrapProvider decorates p with the configured retries and rate limit.
func (c LLMConfig) WrapProvider(p llm.Provider, logger *zap.Logger) llm.Provider {
	return retry.Wrap(p,
		retry.WithPolicy(c.RetryPolicy()),
		retry.WithRateLimit(c.RequestsPerSecond, c.Burst),
		retry.WithLogger(logger),
	)
}

// Persistence builds the run state store configuration.
func (c *Config) Persistence() persistence.StoreConfig {
	return persistence.StoreConfig{
		Type:    persistence.StoreType(c.Store.Type),
		BaseDir: c.Store.BaseDir,
		TTL:     c.Store.TTL,
		Redis: persistence.RedisStoreConfig{
			Addr:      c.Redis.Addr,
			Password:  c.Redis.Password,
			DB:        c.Redis.DB,
			PoolSize:  c.Redis.PoolSize,
			KeyPrefix: c.Redis.KeyPrefix,
		},
	}
}

// ShutdownDeadline returns the graceful shutdown timeout, at least one second.
func (s ServerConfig) ShutdownDeadline() time.Duration {
	if s.ShutdownTimeout < time.Second {
		return time.Second
	}
	return s.ShutdownTimeout
}
