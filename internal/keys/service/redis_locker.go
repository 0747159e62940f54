package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLineageLocker serializes lineages across replicas with SET NX PX. The TTL
// bounds how long a crashed holder can block a lineage.
type RedisLineageLocker struct {
	client        *redis.Client
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
}

const defaultLockTTL = 30 * time.Second

// NewRedisLineageLocker creates a RedisLineageLocker. A non-positive ttl falls
// back to 30s: a lock without expiry would outlive a crashed holder.
func NewRedisLineageLocker(client *redis.Client, ttl time.Duration) *RedisLineageLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLineageLocker{
		client:        client,
		prefix:        "tenantkeys:lineage:",
		ttl:           ttl,
		retryInterval: 25 * time.Millisecond,
	}
}

func (r *RedisLineageLocker) Lock(ctx context.Context, lineage keysDomain.Lineage) (func(), error) {
	key := r.prefix + lineage.String()
	token := uuid.NewString()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", keysDomain.ErrLockTimeout, ctx.Err())
		case <-timer.C:
		}

		acquired, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", keysDomain.ErrLockTimeout, err)
		}
		if acquired {
			break
		}
		timer.Reset(r.retryInterval)
	}

	return sync.OnceFunc(func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err()
	}), nil
}
