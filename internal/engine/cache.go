package engine

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// pageCache is nil when caching is disabled.
var pageCache *tieredCache

var (
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
)

// tieredCache keeps recently used pages in an LRU (L1) in front of an
// optional redis (L2) that survives restarts.
type tieredCache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	lru        *list.List // front = most recently used
	maxEntries int
	ttl        time.Duration
	rdb        *redis.Client
	stop       chan struct{}
}

type cacheEntry struct {
	key       string
	data      []byte
	expiresAt time.Time
}

// InitCache sets up the page cache. A non-positive ttl disables caching;
// an empty or unreachable redisURL leaves only the in-memory tier.
// Calling it again replaces the previous cache.
func InitCache(redisURL string, ttl time.Duration, maxEntries int, cleanupInterval time.Duration) {
	if pageCache != nil {
		close(pageCache.stop)
	}
	if ttl <= 0 {
		pageCache = nil
		slog.Debug("cache: disabled")
		return
	}

	c := &tieredCache{
		items:      make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		rdb:        connectRedis(redisURL),
		stop:       make(chan struct{}),
	}
	pageCache = c
	slog.Info("cache: initialized",
		slog.Duration("ttl", ttl),
		slog.Int("max_entries", maxEntries),
		slog.Bool("redis", c.rdb != nil),
	)

	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	go c.sweepLoop(cleanupInterval)
}

func connectRedis(redisURL string) *redis.Client {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		return nil
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
		rdb.Close()
		return nil
	}
	slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
	return rdb
}

// CacheEnabled reports whether InitCache configured a cache.
func CacheEnabled() bool { return pageCache != nil }

// CacheKey hashes parts into a short "gt:"-prefixed key.
func CacheKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "gt:" + hex.EncodeToString(sum[:12])
}

// CacheGet reads L1, then L2. An L2 hit is promoted to L1.
func CacheGet(ctx context.Context, key string) ([]byte, bool) {
	c := pageCache
	if c == nil {
		cacheMisses.Add(1)
		return nil, false
	}
	if data, ok := c.getLocal(key, time.Now()); ok {
		cacheHits.Add(1)
		return data, true
	}
	if c.rdb != nil {
		if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
			slog.Debug("cache: L2 hit", slog.String("key", key))
			c.putLocal(key, data, time.Now())
			cacheHits.Add(1)
			return data, true
		}
	}
	cacheMisses.Add(1)
	return nil, false
}

// CacheSet writes through to both tiers.
func CacheSet(ctx context.Context, key string, data []byte) {
	c := pageCache
	if c == nil {
		return
	}
	c.putLocal(key, data, time.Now())
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Debug("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// CacheLoadJSON decodes a cached value; a decode failure counts as a miss.
func CacheLoadJSON[T any](ctx context.Context, key string) (T, bool) {
	var out T
	data, ok := CacheGet(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

// CacheStoreJSON encodes v and stores it.
func CacheStoreJSON[T any](ctx context.Context, key string, v T) {
	if pageCache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	CacheSet(ctx, key, data)
}

// CacheStats returns hit/miss counters since start.
func CacheStats() (hits, misses int64) {
	return cacheHits.Load(), cacheMisses.Load()
}

func (c *tieredCache) getLocal(key string, now time.Time) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*cacheEntry)
	if !now.Before(e.expiresAt) {
		c.removeLocked(el)
		return nil, false
	}
	c.lru.MoveToFront(el)
	return e.data, true
}

func (c *tieredCache) putLocal(key string, data []byte, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*cacheEntry)
		e.data, e.expiresAt = data, now.Add(c.ttl)
		c.lru.MoveToFront(el)
		return
	}
	c.items[key] = c.lru.PushFront(&cacheEntry{key: key, data: data, expiresAt: now.Add(c.ttl)})
	for c.maxEntries > 0 && c.lru.Len() > c.maxEntries {
		c.removeLocked(c.lru.Back())
	}
}

func (c *tieredCache) removeLocked(el *list.Element) {
	c.lru.Remove(el)
	delete(c.items, el.Value.(*cacheEntry).key)
}

func (c *tieredCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// sweep drops expired L1 entries and returns how many were removed.
func (c *tieredCache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for el := c.lru.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*cacheEntry).expiresAt) {
			c.removeLocked(el)
			n++
		}
		el = prev
	}
	return n
}

func (c *tieredCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			if n := c.sweep(now); n > 0 {
				slog.Debug("cache: swept expired entries", slog.Int("removed", n))
			}
		}
	}
}
