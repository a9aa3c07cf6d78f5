// Package ristretto implements the hot tier in-process on a cost-bounded
// ristretto cache: volatile, LRU-evicted under memory pressure, per-entry
// TTL. Suited to single-process deployments and tests.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/holidaypeak/agentmem/tier"
)

type Hot struct {
	c *rc.Cache
}

var _ tier.Tier = (*Hot)(nil)

type Config struct {
	NumCounters  int64
	MaxCostBytes int64
	BufferItems  int64
	Metrics      bool
}

func New(cfg Config) (*Hot, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCostBytes <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto hot tier: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCostBytes,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Hot{c: c}, nil
}

func (h *Hot) Name() string { return "hot" }

func (h *Hot) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := h.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		h.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (h *Hot) Set(_ context.Context, key string, value []byte, ttl time.Duration, _ string) error {
	if ttl <= 0 {
		return tier.ErrInvalidTTL
	}
	// A rejected admission is backpressure, not an error: the entry simply
	// is not cached and the next read falls through to a lower tier.
	h.c.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

func (h *Hot) Delete(_ context.Context, key string) error {
	h.c.Del(key)
	return nil
}

func (h *Hot) Close(_ context.Context) error {
	h.c.Wait()
	h.c.Close()
	return nil
}

// Metrics exposes the underlying cache metrics when enabled in Config.
func (h *Hot) Metrics() *rc.Metrics { return h.c.Metrics }
