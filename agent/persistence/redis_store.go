package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStoreConfig contains Redis-specific configuration
type RedisStoreConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	PoolSize int    `json:"pool_size" yaml:"pool_size"`
	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// RedisStore keeps each record under its own key and indexes run ids in a
// sorted set scored by update time. Records expire after the TTL when one
// is set; expired ids are pruned from the index on List.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "agentrun:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, ttl: ttl, now: time.Now}
}

// DialRedisStore connects with cfg and checks the connection.
func DialRedisStore(ctx context.Context, cfg RedisStoreConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStore(client, cfg.KeyPrefix, ttl), nil
}

func (s *RedisStore) runKey(runID string) string { return s.keyPrefix + "run:" + runID }
func (s *RedisStore) indexKey() string           { return s.keyPrefix + "runs" }

// getter is satisfied by both the client and a watched transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c getter, runID string) (*Record, error) {
	data, err := c.Get(ctx, s.runKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", runID, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode run state %s: %w", runID, err)
	}
	return &rec, nil
}

// saveRetries bounds how often Save retries when another writer touches the
// key between its read and its write.
const saveRetries = 3

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, state []byte) (*Record, error) {
	rec, err := newRecord(state, s.now())
	if err != nil {
		return nil, err
	}
	for range saveRetries {
		var saved *Record
		saved, err = s.write(ctx, rec, nil)
		if !errors.Is(err, redis.TxFailedErr) {
			return saved, err
		}
	}
	return nil, fmt.Errorf("redis save %s: %w", rec.RunID, err)
}

// Update implements Store with WATCH on the run key.
func (s *RedisStore) Update(ctx context.Context, state []byte, version int64) (*Record, error) {
	rec, err := newRecord(state, s.now())
	if err != nil {
		return nil, err
	}
	saved, err := s.write(ctx, rec, func(old *Record) error {
		if old == nil {
			return ErrNotFound
		}
		return checkVersion(old, version)
	})
	if errors.Is(err, redis.TxFailedErr) {
		return nil, fmt.Errorf("%w: run %s", ErrConflict, rec.RunID)
	}
	return saved, err
}

// write stores rec inside a watched transaction. check, when set, sees the
// current record (nil if absent) and may veto the write.
func (s *RedisStore) write(ctx context.Context, rec *Record, check func(old *Record) error) (*Record, error) {
	key := s.runKey(rec.RunID)
	var out Record
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		old, err := s.get(ctx, tx, rec.RunID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if check != nil {
			if err := check(old); err != nil {
				return err
			}
		}
		out = *rec
		if old != nil {
			out.replaces(old)
		}
		data, err := json.Marshal(&out)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(out.UpdatedAt.UnixNano()), Member: out.RunID})
			return nil
		})
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, runID string) (*Record, error) {
	return s.get(ctx, s.client, runID)
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	var out, stale []*Record
	for _, id := range ids {
		rec, err := s.get(ctx, s.client, id)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, &Record{RunID: id})
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if len(stale) > 0 {
		members := make([]any, len(stale))
		for i, r := range stale {
			members[i] = r.RunID
		}
		s.client.ZRem(ctx, s.indexKey(), members...)
	}
	sortNewestFirst(out)
	return filterRecords(out, filter), nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, runID string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.runKey(runID))
	pipe.ZRem(ctx, s.indexKey(), runID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete %s: %w", runID, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
