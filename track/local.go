package track

import (
	"context"
	"errors"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"
)

type counter struct {
	mu          sync.Mutex
	windowStart time.Time
	n           int
}

// Local is an in-process tracker. Counters live in a cost-bounded ristretto
// cache: under pressure the cache evicts (or refuses to admit) counters,
// which silently resets a key's count. That loses at most a promotion,
// which is the contract.
type Local struct {
	cache     *rc.Cache
	window    time.Duration
	threshold int
	now       func() time.Time
}

var _ Tracker = (*Local)(nil)

type LocalConfig struct {
	Window    time.Duration // 0 => 5m
	Threshold int           // 0 => 10
	MaxKeys   int64         // tracked-key bound; 0 => 100k
	Clock     func() time.Time
}

func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.Window == 0 {
		cfg.Window = 5 * time.Minute
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 10
	}
	if cfg.MaxKeys == 0 {
		cfg.MaxKeys = 100_000
	}
	if cfg.MaxKeys < 0 {
		return nil, errors.New("track: invalid MaxKeys")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	cache, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.MaxKeys * 10,
		MaxCost:     cfg.MaxKeys,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Local{
		cache:     cache,
		window:    cfg.Window,
		threshold: cfg.Threshold,
		now:       cfg.Clock,
	}, nil
}

func (t *Local) RecordAccess(_ context.Context, key string) {
	now := t.now()
	if v, ok := t.cache.Get(key); ok {
		if c, ok := v.(*counter); ok {
			c.mu.Lock()
			if now.Sub(c.windowStart) > t.window {
				c.windowStart = now
				c.n = 0
			}
			c.n++
			c.mu.Unlock()
			return
		}
		t.cache.Del(key) // unexpected entry shape
	}
	c := &counter{windowStart: now, n: 1}
	t.cache.SetWithTTL(key, c, 1, t.window)
	// Flush the admission buffer so an immediately repeated access lands
	// on this counter instead of inserting a fresh one.
	t.cache.Wait()
}

func (t *Local) ShouldPromote(_ context.Context, key string) bool {
	v, ok := t.cache.Get(key)
	if !ok {
		return false
	}
	c, ok := v.(*counter)
	if !ok {
		return false
	}
	now := t.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.windowStart) <= t.window && c.n >= t.threshold
}

func (t *Local) Close(_ context.Context) error {
	t.cache.Close()
	return nil
}
