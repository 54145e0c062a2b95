package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeNotFound, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "serialization failed")
)

const nullMarker = "__null__"

// Loader produces the value for a missing key.  A nil value is cached as a
// short-lived null so repeated misses do not hammer the source.
type Loader func(ctx context.Context) (interface{}, error)

// Cache is the key-value contract shared by the Redis and in-memory caches.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader Loader) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
}

type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

type jsonSerializer struct{}

func (s *jsonSerializer) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (s *jsonSerializer) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

type cacheOptions struct {
	prefix       string
	defaultTTL   time.Duration
	serializer   Serializer
	nullCacheTTL time.Duration
	jitter       float64
}

func defaultCacheOptions() cacheOptions {
	return cacheOptions{
		prefix:       config.DefaultRedisKeyPrefix,
		defaultTTL:   config.DefaultRedisTTL,
		serializer:   &jsonSerializer{},
		nullCacheTTL: 30 * time.Second,
		jitter:       0.1,
	}
}

type CacheOption func(*cacheOptions)

func WithPrefix(prefix string) CacheOption {
	return func(o *cacheOptions) { o.prefix = prefix }
}

func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(o *cacheOptions) {
		if ttl > 0 {
			o.defaultTTL = ttl
		}
	}
}

func WithSerializer(s Serializer) CacheOption {
	return func(o *cacheOptions) {
		if s != nil {
			o.serializer = s
		}
	}
}

func WithNullCacheTTL(ttl time.Duration) CacheOption {
	return func(o *cacheOptions) { o.nullCacheTTL = ttl }
}

// WithJitter spreads expirations by +/- fraction of the TTL.  Zero disables it.
func WithJitter(fraction float64) CacheOption {
	return func(o *cacheOptions) {
		if fraction >= 0 && fraction < 1 {
			o.jitter = fraction
		}
	}
}

func (o cacheOptions) jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || o.jitter == 0 {
		return ttl
	}
	j := float64(ttl) * o.jitter * (rand.Float64()*2 - 1)
	return ttl + time.Duration(j)
}

func (o cacheOptions) ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return o.defaultTTL
	}
	return ttl
}

// ─────────────────────────────────────────────────────────────────────────────
// Redis cache
// ─────────────────────────────────────────────────────────────────────────────

type redisCache struct {
	client       *Client
	logger       logging.Logger
	opts         cacheOptions
	singleflight singleflight.Group
}

// NewRedisCache stores JSON values under prefixed keys.
func NewRedisCache(client *Client, log logging.Logger, opts ...CacheOption) Cache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	o := defaultCacheOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &redisCache{client: client, logger: log.Named("cache"), opts: o}
}

func (c *redisCache) fullKey(key string) string {
	return c.opts.prefix + key
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to get from cache")
	}
	if string(data) == nullMarker {
		return ErrCacheMiss
	}
	if err := c.opts.serializer.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode cached value")
	}
	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := c.opts.serializer.Marshal(value)
	if err != nil {
		return ErrSerializationFailed
	}
	ttl = c.opts.jitterTTL(c.opts.ttlOrDefault(ttl))
	if err := c.client.Set(ctx, c.fullKey(key), data, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to write cache")
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = c.fullKey(k)
	}
	return c.client.Del(ctx, fullKeys...).Err()
}

func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	val, err := c.client.Exists(ctx, c.fullKey(key)).Result()
	return val > 0, err
}

func (c *redisCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader Loader) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if err != ErrCacheMiss {
		return err
	}

	val, err, _ := c.singleflight.Do(key, func() (interface{}, error) {
		v, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		if v == nil {
			if setErr := c.client.Set(ctx, c.fullKey(key), nullMarker, c.opts.nullCacheTTL).Err(); setErr != nil {
				c.logger.Warn("Failed to cache null in GetOrSet", logging.String("key", key), logging.Err(setErr))
			}
			return nil, nil
		}
		if setErr := c.Set(ctx, key, v, ttl); setErr != nil {
			c.logger.Warn("Failed to set cache in GetOrSet", logging.String("key", key), logging.Err(setErr))
		}
		return v, nil
	})
	if err != nil {
		return err
	}
	return copyInto(c.opts.serializer, val, dest)
}

func (c *redisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, c.fullKey(key), ttl).Err()
}

func (c *redisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.client.TTL(ctx, c.fullKey(key)).Result()
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

// copyInto moves a loaded value into dest through the serializer so callers
// see the same shape a cache hit would produce.
func copyInto(s Serializer, val, dest interface{}) error {
	if val == nil {
		return ErrCacheMiss
	}
	data, err := s.Marshal(val)
	if err != nil {
		return ErrSerializationFailed
	}
	if err := s.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode loaded value")
	}
	return nil
}

//Personal.AI order the ending
