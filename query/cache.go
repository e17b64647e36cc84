package query

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"storefront-service/logger"
)

// Tier is an optional shared cache behind the in-process one. Key resolves
// a query key against the current versions of its tags; a value written
// under a resolved key is never served once one of those tags is
// invalidated.
type Tier interface {
	Key(ctx context.Context, key string, tags []string) (string, bool)
	Get(ctx context.Context, resolved string) ([]byte, bool)
	Set(ctx context.Context, resolved string, value []byte)
	Invalidate(ctx context.Context, tags ...string)
}

type flight struct {
	tags []string
}

type entry struct {
	value   any
	tags    []string
	expires time.Time
}

// Cache holds tagged query results. Identical keys share one in-flight
// fetch, and invalidating a tag both drops matching entries and stops
// fetches that started before the invalidation from storing their result.
type Cache struct {
	ttl  time.Duration
	tier Tier
	now  func() time.Time

	mu       sync.Mutex
	entries  map[string]entry
	versions map[string]uint64
	inflight map[string]*flight

	group singleflight.Group
}

// NewCache creates a cache whose entries live for ttl. tier may be nil.
func NewCache(ttl time.Duration, tier Tier) *Cache {
	return &Cache{
		ttl:      ttl,
		tier:     tier,
		now:      time.Now,
		entries:  make(map[string]entry),
		versions: make(map[string]uint64),
		inflight: make(map[string]*flight),
	}
}

// Invalidate drops every entry carrying one of tags.
func (c *Cache) Invalidate(ctx context.Context, tags ...string) {
	if len(tags) == 0 {
		return
	}

	c.mu.Lock()
	for _, t := range tags {
		c.versions[t]++
	}
	for key, e := range c.entries {
		if overlaps(e.tags, tags) {
			delete(c.entries, key)
		}
	}
	for key, f := range c.inflight {
		if overlaps(f.tags, tags) {
			c.group.Forget(key)
			delete(c.inflight, key)
		}
	}
	c.mu.Unlock()

	if c.tier != nil {
		c.tier.Invalidate(ctx, tags...)
	}
	logger.Debug(ctx, "query cache invalidated", zap.Strings("tags", tags))
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for _, e := range c.entries {
		if now.Before(e.expires) {
			n++
		}
	}
	return n
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) snapshotVersions(tags []string) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint64, len(tags))
	for i, t := range tags {
		out[i] = c.versions[t]
	}
	return out
}

// store keeps value unless one of its tags was invalidated since vers was
// taken. It reports whether the value was stored.
func (c *Cache) store(key string, tags []string, vers []uint64, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range tags {
		if c.versions[t] != vers[i] {
			return false
		}
	}
	c.entries[key] = entry{value: value, tags: tags, expires: c.now().Add(c.ttl)}
	return true
}

func (c *Cache) begin(key string, tags []string) *flight {
	f := &flight{tags: tags}
	c.mu.Lock()
	c.inflight[key] = f
	c.mu.Unlock()
	return f
}

func (c *Cache) end(key string, f *flight) {
	c.mu.Lock()
	if c.inflight[key] == f {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
}

// load returns the cached value for key or runs fetch once for all
// concurrent callers. hit reports whether the value came from a cache.
func load[T any](ctx context.Context, c *Cache, key string, tags []string, fetch func(context.Context) (T, error)) (value T, hit bool, err error) {
	if v, ok := c.lookup(key); ok {
		return v.(T), true, nil
	}

	if c.tier != nil {
		if resolved, ok := c.tier.Key(ctx, key, tags); ok {
			if raw, ok := c.tier.Get(ctx, resolved); ok {
				var v T
				if err := json.Unmarshal(raw, &v); err == nil {
					c.store(key, tags, c.snapshotVersions(tags), v)
					return v, true, nil
				}
				logger.Warn(ctx, "discarding undecodable cached query", zap.String("key", key))
			}
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		vers := c.snapshotVersions(tags)
		// Resolved before the fetch so an invalidation from another
		// instance during it orphans the write.
		var resolved string
		shared := false
		if c.tier != nil {
			resolved, shared = c.tier.Key(fetchCtx, key, tags)
		}
		f := c.begin(key, tags)
		defer c.end(key, f)

		v, err := fetch(fetchCtx)
		if err != nil {
			return v, err
		}
		if c.store(key, tags, vers, v) && shared {
			if raw, err := json.Marshal(v); err == nil {
				c.tier.Set(fetchCtx, resolved, raw)
			}
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return value, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return value, false, res.Err
		}
		return res.Val.(T), false, nil
	}
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
