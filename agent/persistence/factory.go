package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// StoreConfig selects and configures a backend.
type StoreConfig struct {
	Type StoreType `json:"type" yaml:"type"`
	// BaseDir is the directory for the file backend.
	BaseDir string           `json:"base_dir" yaml:"base_dir"`
	Redis   RedisStoreConfig `json:"redis" yaml:"redis"`
	// TTL expires redis records; zero keeps them forever.
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:    StoreTypeMemory,
		BaseDir: "./data/runs",
		Redis: RedisStoreConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "agentrun:",
		},
	}
}

// NewStore creates the backend named by cfg. db is required for the
// database backend and ignored otherwise.
func NewStore(ctx context.Context, cfg StoreConfig, db *gorm.DB) (Store, error) {
	switch cfg.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case StoreTypeFile:
		return NewFileStore(cfg.BaseDir)
	case StoreTypeRedis:
		return DialRedisStore(ctx, cfg.Redis, cfg.TTL)
	case StoreTypeDatabase:
		if db == nil {
			return nil, fmt.Errorf("database store needs a database connection")
		}
		return NewSQLStore(ctx, db)
	default:
		return nil, fmt.Errorf("unsupported run state store type: %s", cfg.Type)
	}
}
