package engine

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides 2-tier caching: L1 in-memory + L2 Redis.
// L1 is fast but lost on restart. L2 survives restarts.
type Cache struct {
	l1              sync.Map      // key → *cacheEntry
	rdb             *redis.Client // nil if Redis unavailable
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	now             func() time.Time

	hits   atomic.Int64
	misses atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// CacheOptions configures NewCache.
type CacheOptions struct {
	RedisURL        string // empty disables L2
	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
	Now             func() time.Time // test clock; default time.Now
}

// NewCache sets up the 2-tier cache and starts the L1 cleanup goroutine.
// Call Close to stop it.
func NewCache(opts CacheOptions) *Cache {
	c := &Cache{
		ttl:             opts.TTL,
		maxEntries:      opts.MaxEntries,
		cleanupInterval: opts.CleanupInterval,
		now:             opts.Now,
		stop:            make(chan struct{}),
	}
	if c.ttl <= 0 {
		c.ttl = 15 * time.Minute
	}
	if c.now == nil {
		c.now = time.Now
	}

	if opts.RedisURL != "" {
		ropts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(ropts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
				_ = rdb.Close()
			} else {
				c.rdb = rdb
				slog.Info("cache: L2 redis connected", slog.String("addr", ropts.Addr))
			}
		}
	}

	slog.Info("cache: initialized", slog.Duration("ttl", c.ttl), slog.Bool("redis", c.rdb != nil), slog.Int("max_entries", c.maxEntries))

	go c.cleanupLoop()
	return c
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("jl:%x", hash[:12]) // 24-char hex prefix
}

// Get tries L1, then L2. On L2 hit, populates L1.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	if val, ok := c.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if c.now().Before(entry.expiresAt) {
			slog.Debug("cache: L1 hit", slog.String("key", key))
			c.hits.Add(1)
			return entry.data, true
		}
		c.l1.Delete(key) // expired
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			slog.Debug("cache: L2 hit", slog.String("key", key))
			c.hits.Add(1)
			c.l1.Store(key, &cacheEntry{data: data, expiresAt: c.now().Add(c.ttl)})
			return data, true
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Set stores data in both L1 and L2.
func (c *Cache) Set(ctx context.Context, key string, data []byte) {
	if c == nil {
		return
	}

	c.evictIfNeeded()

	c.l1.Store(key, &cacheEntry{data: data, expiresAt: c.now().Add(c.ttl)})

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Debug("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// Delete removes key from both tiers.
func (c *Cache) Delete(ctx context.Context, key string) {
	if c == nil {
		return
	}
	c.l1.Delete(key)
	if c.rdb != nil {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			slog.Debug("cache: L2 delete failed", slog.Any("error", err))
		}
	}
}

// Purge drops every L1 entry. L2 entries age out on their own TTL.
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.l1.Range(func(key, _ any) bool {
		c.l1.Delete(key)
		return true
	})
}

// Len returns the number of L1 entries, expired ones included.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	n := 0
	c.l1.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stats returns current cache hit/miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}

// Close stops the cleanup goroutine and the redis client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	c.stopOnce.Do(func() { close(c.stop) })
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// LoadJSON loads a cached value of type T.
// Returns the decoded value and true on hit; zero value and false on miss or decode error.
func LoadJSON[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var out T
	data, ok := c.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

// StoreJSON marshals v and stores it.
func StoreJSON[T any](ctx context.Context, c *Cache, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(ctx, key, data)
}

// evictIfNeeded removes entries when L1 exceeds maxEntries.
// Removes expired entries first, then oldest entries if still over limit.
func (c *Cache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}

	count := c.Len()
	if count < c.maxEntries {
		return
	}

	now := c.now()
	c.l1.Range(func(key, val any) bool {
		if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})

	// Earlier expiry = older entry (expiry = createdAt + ttl).
	for count >= c.maxEntries {
		var oldestKey any
		var oldestAt time.Time
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok {
				if oldestKey == nil || entry.expiresAt.Before(oldestAt) {
					oldestKey = key
					oldestAt = entry.expiresAt
				}
			}
			return true
		})
		if oldestKey == nil {
			break
		}
		c.l1.Delete(oldestKey)
		count--
	}
}

// cleanupLoop periodically removes expired L1 entries.
func (c *Cache) cleanupLoop() {
	interval := c.cleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := c.now()
			c.l1.Range(func(key, val any) bool {
				if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
					c.l1.Delete(key)
				}
				return true
			})
		}
	}
}
