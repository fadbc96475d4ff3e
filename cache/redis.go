package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const namespace = "truthlens"

// Cache is a JSON cache over Redis. A nil *Cache is valid and always misses,
// so callers work unchanged when REDIS_URL is not set.
type Cache struct {
	rdb *redis.Client
	log *zap.Logger
}

// New connects to url, which may be a redis:// URL or a bare host:port.
// It returns (nil, nil) when url is empty.
func New(ctx context.Context, url string, log *zap.Logger) (*Cache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("cache")
	if url == "" {
		log.Warn("REDIS_URL not set, running without cache")
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("connected to redis", zap.String("addr", opts.Addr))
	return &Cache{rdb: rdb, log: log}, nil
}

// Key builds a namespaced key such as "truthlens:factcheck:en:<hash>".
func Key(parts ...string) string {
	return namespace + ":" + strings.Join(parts, ":")
}

// GetJSON decodes the cached value into dest. The bool reports a hit.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil {
		return false, nil
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode: %w", err)
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("cache not configured")
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
