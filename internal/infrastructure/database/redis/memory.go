package redis

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

type memEntry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

// memoryCache is the in-process Cache used when Redis is disabled.  Values
// go through the serializer so hits behave like Redis hits.
type memoryCache struct {
	clock        common.Clock
	opts         cacheOptions
	singleflight singleflight.Group

	mu      sync.Mutex
	entries map[string]memEntry
}

// NewMemoryCache returns an in-process cache.  A nil clock uses wall time.
func NewMemoryCache(clock common.Clock, opts ...CacheOption) Cache {
	if clock == nil {
		clock = common.SystemClock()
	}
	o := defaultCacheOptions()
	o.jitter = 0
	for _, opt := range opts {
		opt(&o)
	}
	return &memoryCache{clock: clock, opts: o, entries: make(map[string]memEntry)}
}

// lookup returns the live entry for key, evicting it when expired.
// Callers hold c.mu.
func (c *memoryCache) lookup(key string) (memEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expiresAt.IsZero() && !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		return memEntry{}, false
	}
	return e, true
}

func (c *memoryCache) put(key string, data []byte, ttl time.Duration) {
	e := memEntry{data: data}
	if ttl > 0 {
		e.expiresAt = c.clock.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	e, ok := c.lookup(key)
	c.mu.Unlock()
	if !ok || string(e.data) == nullMarker {
		return ErrCacheMiss
	}
	return c.opts.serializer.Unmarshal(e.data, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := c.opts.serializer.Marshal(value)
	if err != nil {
		return ErrSerializationFailed
	}
	c.put(key, data, c.opts.jitterTTL(c.opts.ttlOrDefault(ttl)))
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookup(key)
	return ok, nil
}

func (c *memoryCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader Loader) error {
	err := c.Get(ctx, key, dest)
	if err != ErrCacheMiss {
		return err
	}
	val, err, _ := c.singleflight.Do(key, func() (interface{}, error) {
		v, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		if v == nil {
			c.put(key, []byte(nullMarker), c.opts.nullCacheTTL)
			return nil, nil
		}
		if setErr := c.Set(ctx, key, v, ttl); setErr != nil {
			return nil, setErr
		}
		return v, nil
	})
	if err != nil {
		return err
	}
	return copyInto(c.opts.serializer, val, dest)
}

func (c *memoryCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup(key)
	if !ok {
		return ErrCacheMiss
	}
	e.expiresAt = c.clock.Now().Add(ttl)
	c.entries[key] = e
	return nil
}

// TTL mirrors Redis: -2s for a missing key, -1s for a key without expiry.
func (c *memoryCache) TTL(_ context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup(key)
	if !ok {
		return -2 * time.Second, nil
	}
	if e.expiresAt.IsZero() {
		return -1 * time.Second, nil
	}
	return e.expiresAt.Sub(c.clock.Now()), nil
}

func (c *memoryCache) Ping(context.Context) error { return nil }

// Len reports live entries with the given key prefix.
func (c *memoryCache) Len(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if _, ok := c.lookup(k); ok && strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

//Personal.AI order the ending
