package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// pendingMarker holds a key while its submission is in flight.
const pendingMarker = "pending"

// pendingTTL bounds how long a crashed submission keeps its key locked.
const pendingTTL = 2 * time.Minute

// Claim is the outcome of reserving an Idempotency-Key.
type Claim struct {
	// OrderID is set when the key already produced an order.
	OrderID string
	// Pending is set when another submission holds the key.
	Pending bool
}

// Acquired reports whether the caller now owns the key.
func (c Claim) Acquired() bool {
	return c.OrderID == "" && !c.Pending
}

// IdempotencyStore remembers which order an Idempotency-Key created. Reserve
// must be atomic: of two concurrent callers with the same key only one
// acquires it.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (Claim, error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

type RedisIdempotency struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotency(client *redis.Client, ttl time.Duration) *RedisIdempotency {
	return &RedisIdempotency{client: client, ttl: ttl}
}

func idemKey(key string) string {
	return "idem:checkout:" + key
}

// releaseScript deletes the key only while it still holds the pending marker.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *RedisIdempotency) Reserve(ctx context.Context, key string) (Claim, error) {
	ok, err := r.client.SetNX(ctx, idemKey(key), pendingMarker, pendingTTL).Result()
	if err != nil {
		return Claim{}, err
	}
	if ok {
		return Claim{}, nil
	}

	val, err := r.client.Get(ctx, idemKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		// released or expired between the two calls
		return Claim{Pending: true}, nil
	}
	if err != nil {
		return Claim{}, err
	}
	if val == pendingMarker {
		return Claim{Pending: true}, nil
	}
	return Claim{OrderID: val}, nil
}

func (r *RedisIdempotency) Complete(ctx context.Context, key, orderID string) error {
	return r.client.Set(ctx, idemKey(key), orderID, r.ttl).Err()
}

func (r *RedisIdempotency) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, r.client, []string{idemKey(key)}, pendingMarker).Err()
}
