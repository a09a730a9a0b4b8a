package tools

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCacheMaxSize = 256
	defaultCacheTTL     = 5 * time.Minute
)

// CacheConfig configures the tool result cache behaviour.
type CacheConfig struct {
	// MaxSize is the maximum number of entries in the LRU cache.
	MaxSize int
	// TTL is how long a cached result remains valid.
	TTL time.Duration
	// ExcludeTools lists tool names that should never be cached.
	ExcludeTools []string
}

// DefaultCacheConfig returns sensible defaults for tool result caching.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize: defaultCacheMaxSize,
		TTL:     defaultCacheTTL,
	}
}

// cacheEntry holds a cached tool result along with the timestamp it was stored.
type cacheEntry struct {
	content  string
	storedAt time.Time
}

// CachedInvoker wraps an invoker with an LRU result cache keyed by
// (tool name + normalised arguments). End-turn tools must never pass
// through here; their invocation mutates task state.
type CachedInvoker struct {
	delegate     Invoker
	cache        *lru.Cache[string, cacheEntry]
	ttl          time.Duration
	excludeTools map[string]bool
}

// NewCachedInvoker wraps delegate with an LRU result cache. Zero config
// values fall back to DefaultCacheConfig.
func NewCachedInvoker(delegate Invoker, config CacheConfig) Invoker {
	if delegate == nil {
		return nil
	}
	if config.MaxSize <= 0 {
		config.MaxSize = defaultCacheMaxSize
	}
	if config.TTL <= 0 {
		config.TTL = defaultCacheTTL
	}
	cache, err := lru.New[string, cacheEntry](config.MaxSize)
	if err != nil {
		// lru.New only errors on non-positive size which we guard above.
		return delegate
	}
	exclude := make(map[string]bool, len(config.ExcludeTools))
	for _, name := range config.ExcludeTools {
		exclude[strings.TrimSpace(name)] = true
	}
	return &CachedInvoker{
		delegate:     delegate,
		cache:        cache,
		ttl:          config.TTL,
		excludeTools: exclude,
	}
}

// Definition implements Handle.
func (c *CachedInvoker) Definition() Definition {
	return c.delegate.Definition()
}

// Invoke implements Invoker, serving repeat calls from the cache.
func (c *CachedInvoker) Invoke(ctx context.Context, args map[string]any) (string, error) {
	name := c.delegate.Definition().Name
	if c.excludeTools[name] {
		return c.delegate.Invoke(ctx, args)
	}

	key := cacheKey(name, args)
	if entry, ok := c.cache.Get(key); ok {
		if time.Since(entry.storedAt) < c.ttl {
			return entry.content, nil
		}
		c.cache.Remove(key)
	}

	content, err := c.delegate.Invoke(ctx, args)
	if err != nil {
		// Do not cache error results.
		return content, err
	}
	c.cache.Add(key, cacheEntry{content: content, storedAt: time.Now()})
	return content, nil
}

// cacheKey produces a deterministic string key from tool name + arguments.
func cacheKey(name string, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		if encoded, err := json.Marshal(args[k]); err == nil {
			b.Write(encoded)
		}
	}
	return b.String()
}
