package agentmem

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/holidaypeak/agentmem/tier"
	coldbolt "github.com/holidaypeak/agentmem/tier/cold/bbolt"
	hotredis "github.com/holidaypeak/agentmem/tier/hot/redis"
	warmsqlite "github.com/holidaypeak/agentmem/tier/warm/sqlite"
	"github.com/holidaypeak/agentmem/track"
)

// Open assembles the standard backend stack from cfg endpoints: a redis
// hot tier (HotEndpoint is a redis URL), a sqlite warm tier (WarmEndpoint
// is a file path), a bolt cold tier (ColdEndpoint is a file path) and an
// in-process access tracker. Tiers with an empty endpoint are left
// unconfigured; at least one endpoint is required.
//
// For custom stacks (shared redis clients, a redis-backed tracker,
// alternative hot backends) wire Options through New directly.
func Open(ctx context.Context, cfg Config, logger Logger, hooks Hooks) (Memory, error) {
	cfg = cfg.withDefaults()

	var tiers []tier.Tier
	closeAll := func() {
		for _, t := range tiers {
			_ = t.Close(ctx)
		}
	}

	var hot tier.Tier
	if cfg.HotEndpoint != "" {
		ropts, err := goredis.ParseURL(cfg.HotEndpoint)
		if err != nil {
			return nil, fmt.Errorf("agentmem: hot endpoint: %w", err)
		}
		h, err := hotredis.New(hotredis.Config{
			Client:      goredis.NewClient(ropts),
			CloseClient: true,
		})
		if err != nil {
			return nil, fmt.Errorf("agentmem: hot tier: %w", err)
		}
		hot = h
		tiers = append(tiers, h)
	}

	var warm tier.Tier
	if cfg.WarmEndpoint != "" {
		w, err := warmsqlite.Open(cfg.WarmEndpoint, warmsqlite.Options{})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("agentmem: warm tier: %w", err)
		}
		warm = w
		tiers = append(tiers, w)
	}

	var cold tier.Tier
	if cfg.ColdEndpoint != "" {
		c, err := coldbolt.Open(cfg.ColdEndpoint, coldbolt.Options{
			ArchiveAfter: cfg.DemotionAge,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("agentmem: cold tier: %w", err)
		}
		cold = c
		tiers = append(tiers, c)
	}

	if len(tiers) == 0 {
		return nil, fmt.Errorf("agentmem: at least one tier endpoint is required")
	}

	tracker, err := track.NewLocal(track.LocalConfig{
		Window:    cfg.PromotionWindow,
		Threshold: cfg.PromotionThreshold,
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("agentmem: tracker: %w", err)
	}

	mem, err := New(Options{
		Config:  cfg,
		Hot:     hot,
		Warm:    warm,
		Cold:    cold,
		Tracker: tracker,
		Logger:  logger,
		Hooks:   hooks,
	})
	if err != nil {
		_ = tracker.Close(ctx)
		closeAll()
		return nil, err
	}
	return mem, nil
}
