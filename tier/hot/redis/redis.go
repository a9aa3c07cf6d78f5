// Package redis implements the hot tier on Redis: the production choice
// for shared low-latency session state.
package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/holidaypeak/agentmem/tier"
)

var ErrNilClient = errors.New("redis hot tier: nil client")

type Hot struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ tier.Tier = (*Hot)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this tier exclusively owns the client
}

func New(cfg Config) (*Hot, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Hot{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (h *Hot) Name() string { return "hot" }

func (h *Hot) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := h.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, classify(err)
	}
	return b, true, nil
}

func (h *Hot) Set(ctx context.Context, key string, value []byte, ttl time.Duration, _ string) error {
	if ttl <= 0 {
		return tier.ErrInvalidTTL // the hot tier is TTL-bound by contract
	}
	if err := h.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return classify(err)
	}
	return nil
}

func (h *Hot) Delete(ctx context.Context, key string) error {
	if err := h.rdb.Del(ctx, key).Err(); err != nil {
		return classify(err)
	}
	return nil
}

// Close releases the underlying redis client only when this tier owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (h *Hot) Close(context.Context) error {
	if h.closeClient {
		if err := h.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

// classify maps redis server errors to the tier taxonomy. Explicit overload
// replies (LOADING while a replica syncs, BUSY during a long script,
// OOM at maxmemory) are throttling; everything else is unavailability.
func classify(err error) error {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "LOADING"),
		strings.HasPrefix(msg, "BUSY"),
		strings.HasPrefix(msg, "OOM"):
		return tier.Throttled(err)
	default:
		return tier.Classify(err)
	}
}
