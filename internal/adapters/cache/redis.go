package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/readiness/pkg/logger"
	"github.com/okian/readiness/pkg/metrics"
)

// Redis stores entries under <prefix>:{<player>}:<key> and tracks each
// player's keys in the set <prefix>:{<player>}:index. The hash tag keeps a
// player's keys in one cluster slot so invalidation can run as one script.
type Redis struct {
	client redis.UniversalClient
	owned  bool
	prefix string
	ttl    time.Duration
	log    logger.Logger
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(opts ...Option) (*Redis, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Redis{client: o.client, prefix: o.prefix, ttl: o.ttl, log: logger.Named("cache.redis")}
	if r.client == nil {
		r.client = redis.NewClient(&redis.Options{
			Addr:     o.redisAddr,
			Password: o.redisPass,
			DB:       o.redisDB,
		})
		r.owned = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		if r.owned {
			_ = r.client.Close()
		}
		return nil, fmt.Errorf("%w: connect %s: %v", ErrRedis, o.redisAddr, err)
	}
	return r, nil
}

// invalidateScript deletes every indexed entry and the index itself in one
// step, so a concurrent Set either lands before it and is deleted or after
// it and is indexed afresh. Deletes are chunked to stay under unpack limits.
var invalidateScript = redis.NewScript(`
local keys = redis.call('SMEMBERS', KEYS[1])
local n = 0
for i = 1, #keys, 500 do
	n = n + redis.call('DEL', unpack(keys, i, math.min(i + 499, #keys)))
end
redis.call('DEL', KEYS[1])
return n
`)

func (r *Redis) entryKey(k Key) string {
	return fmt.Sprintf("%s:{%s}:%s", r.prefix, k.PlayerID, k.String())
}

func (r *Redis) indexKey(playerID string) string {
	return fmt.Sprintf("%s:{%s}:index", r.prefix, playerID)
}

func (r *Redis) Get(ctx context.Context, k Key) ([]byte, bool) {
	data, err := r.client.Get(ctx, r.entryKey(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.log.Warn(ctx, "cache get failed", logger.String("player_id", k.PlayerID), logger.Error(err))
		return nil, false
	}
	return data, true
}

func (r *Redis) Set(ctx context.Context, k Key, value []byte) {
	key := r.entryKey(k)
	idx := r.indexKey(k.PlayerID)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, value, r.ttl)
		p.SAdd(ctx, idx, key)
		if r.ttl > 0 {
			p.Expire(ctx, idx, r.ttl)
		}
		return nil
	})
	if err != nil {
		r.log.Warn(ctx, "cache set failed", logger.String("player_id", k.PlayerID), logger.Error(err))
	}
}

func (r *Redis) InvalidatePlayer(ctx context.Context, playerID string) error {
	n, err := invalidateScript.Run(ctx, r.client, []string{r.indexKey(playerID)}).Int()
	if err != nil {
		return fmt.Errorf("%w: invalidate %s: %v", ErrRedis, playerID, err)
	}
	r.log.Debug(ctx, "cache invalidated", logger.String("player_id", playerID), logger.Int("entries", n))
	metrics.RecordCacheInvalidation()
	return nil
}

// Len counts entry keys under the prefix. Index sets are not counted.
func (r *Redis) Len(ctx context.Context) int {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if !strings.HasSuffix(iter.Val(), ":index") {
			n++
		}
	}
	if err := iter.Err(); err != nil {
		r.log.Warn(ctx, "cache scan failed", logger.Error(err))
	}
	return n
}

func (r *Redis) Close() error {
	if r.owned {
		return r.client.Close()
	}
	return nil
}
