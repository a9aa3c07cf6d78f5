// Package bigcache implements the hot tier in-process on bigcache. Expiry
// is governed by the cache-wide LifeWindow rather than per-entry TTLs;
// use the ristretto backend when per-entry TTL fidelity matters.
package bigcache

import (
	"context"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/holidaypeak/agentmem/tier"
)

type Hot struct {
	c *bc.BigCache
}

var _ tier.Tier = (*Hot)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Hot, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Hot{c: c}, nil
}

func (h *Hot) Name() string { return "hot" }

func (h *Hot) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := h.c.Get(key)
	if err == bc.ErrEntryNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, tier.Unavailable(err)
	}
	return b, true, nil
}

func (h *Hot) Set(_ context.Context, key string, value []byte, ttl time.Duration, _ string) error {
	if ttl <= 0 {
		return tier.ErrInvalidTTL
	}
	// Per-entry TTL is unsupported; the global LifeWindow applies.
	if err := h.c.Set(key, value); err != nil {
		return tier.Unavailable(err)
	}
	return nil
}

func (h *Hot) Delete(_ context.Context, key string) error {
	err := h.c.Delete(key)
	if err == bc.ErrEntryNotFound {
		return nil // absent is success
	}
	if err != nil {
		return tier.Unavailable(err)
	}
	return nil
}

func (h *Hot) Close(_ context.Context) error {
	return h.c.Close()
}
