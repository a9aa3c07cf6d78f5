package track

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares access counts across replicas so promotion decisions agree
// process-wide. Counters are fixed-window: the first access of a window
// INCRs the key into existence with an expiry of one window length.
type Redis struct {
	rdb       redis.UniversalClient
	ns        string
	window    time.Duration
	threshold int
}

var _ Tracker = (*Redis)(nil)

// NewRedis creates a Redis-backed tracker. window 0 => 5m, threshold 0 => 10.
func NewRedis(client redis.UniversalClient, namespace string, window time.Duration, threshold int) *Redis {
	if window == 0 {
		window = 5 * time.Minute
	}
	if threshold == 0 {
		threshold = 10
	}
	return &Redis{rdb: client, ns: namespace, window: window, threshold: threshold}
}

func (t *Redis) key(k string) string { return "acc:" + t.ns + ":" + k }

// RecordAccess INCRs the window counter, pipelined with ExpireNX so only
// the access that creates the counter starts the window. Errors are
// swallowed: a lost count misses at most a promotion.
func (t *Redis) RecordAccess(ctx context.Context, key string) {
	k := t.key(key)
	_, _ = t.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, k)
		p.ExpireNX(ctx, k, t.window)
		return nil
	})
}

func (t *Redis) ShouldPromote(ctx context.Context, key string) bool {
	res, err := t.rdb.Get(ctx, t.key(key)).Result()
	if err != nil {
		return false // miss or outage; promotion is best-effort
	}
	n, err := strconv.Atoi(res)
	if err != nil {
		return false
	}
	return n >= t.threshold
}

func (t *Redis) Close(_ context.Context) error { return t.rdb.Close() }
