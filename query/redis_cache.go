package query

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront-service/logger"
)

const (
	redisKeyPrefix     = "storefront:query:"
	redisVersionPrefix = "storefront:tagver:"
)

// RedisTier shares query results across instances. Each tag has a version
// counter; entry keys embed the versions of their tags, so bumping a
// version orphans every entry carrying that tag. Redis failures degrade to
// misses.
type RedisTier struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisTier(client *redis.Client, ttl time.Duration) *RedisTier {
	return &RedisTier{redis: client, ttl: ttl}
}

// Key embeds the current tag versions into key. It reports false when the
// versions cannot be read.
func (t *RedisTier) Key(ctx context.Context, key string, tags []string) (string, bool) {
	full, err := t.versionedKey(ctx, key, tags)
	return full, err == nil
}

func (t *RedisTier) Get(ctx context.Context, resolved string) ([]byte, bool) {
	raw, err := t.redis.Get(ctx, resolved).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn(ctx, "redis query cache read failed", zap.String("key", resolved), zap.Error(err))
		}
		return nil, false
	}
	return raw, true
}

func (t *RedisTier) Set(ctx context.Context, resolved string, value []byte) {
	if err := t.redis.Set(ctx, resolved, value, t.ttl).Err(); err != nil {
		logger.Warn(ctx, "redis query cache write failed", zap.String("key", resolved), zap.Error(err))
	}
}

func (t *RedisTier) Invalidate(ctx context.Context, tags ...string) {
	pipe := t.redis.Pipeline()
	for _, tag := range tags {
		pipe.Incr(ctx, redisVersionPrefix+tag)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error(ctx, "redis query cache invalidation failed", err, zap.Strings("tags", tags))
	}
}

func (t *RedisTier) versionedKey(ctx context.Context, key string, tags []string) (string, error) {
	var b strings.Builder
	b.WriteString(redisKeyPrefix)
	b.WriteString(key)
	if len(tags) == 0 {
		return b.String(), nil
	}

	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = redisVersionPrefix + tag
	}
	vals, err := t.redis.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warn(ctx, "redis tag versions unavailable", zap.Error(err))
		return "", err
	}
	for _, v := range vals {
		b.WriteString(":v")
		if s, ok := v.(string); ok {
			b.WriteString(s)
		} else {
			b.WriteString(strconv.Itoa(0))
		}
	}
	return b.String(), nil
}
