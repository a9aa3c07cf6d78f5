package agentmem

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the immutable tuning surface for a Memory instance. It is
// validated once at construction; there are no setters and no fluent
// builder, so a Memory can never observe a half-built configuration.
type Config struct {
	// Namespace prefixes every storage key so tiers can be shared with
	// other workloads. Empty => "agentmem".
	Namespace string

	// Backend connection strings, consumed by Open. Hot is a redis URL,
	// warm a sqlite path, cold a bolt file path.
	HotEndpoint  string
	WarmEndpoint string
	ColdEndpoint string

	HotDefaultTTL  time.Duration // 0 => 15m
	WarmDefaultTTL time.Duration // 0 => 30d
	ColdDefaultTTL time.Duration // 0 => no expiry

	PromotionThreshold int           // accesses within window; 0 => 10
	PromotionWindow    time.Duration // 0 => 5m
	PromotionMode      PromotionMode // default PromoteAlways
	// SynchronousPromotion performs promotion writes before the read
	// returns instead of dispatching them in the background.
	SynchronousPromotion bool
	PromotionTimeout     time.Duration // budget per detached promotion write; 0 => 5s

	BreakerFailureThreshold int           // 0 => 5
	BreakerCooldown         time.Duration // 0 => 30s
	BreakerMaxCooldown      time.Duration // 0 => 10x cooldown

	DemotionAge      time.Duration // warm entries older than this move to cold; 0 => 30d
	DemotionInterval time.Duration // 0 => 1h; negative disables the background scan
	DemotionBatch    int           // entries per run; 0 => 256

	// LargeValueBytes is the placement cutoff above which non-PII values
	// default to cold-only. 0 => 1 MiB.
	LargeValueBytes int

	// DeleteAttempts is how often each tier retries a failing delete
	// before the delete is reported partial. 0 => 2.
	DeleteAttempts int
}

const day = 24 * time.Hour

func (c Config) withDefaults() Config {
	c.Namespace = coalesce(c.Namespace, "agentmem")
	c.HotDefaultTTL = coalesce(c.HotDefaultTTL, 15*time.Minute)
	c.WarmDefaultTTL = coalesce(c.WarmDefaultTTL, 30*day)
	c.PromotionThreshold = coalesce(c.PromotionThreshold, 10)
	c.PromotionWindow = coalesce(c.PromotionWindow, 5*time.Minute)
	c.PromotionTimeout = coalesce(c.PromotionTimeout, 5*time.Second)
	c.BreakerFailureThreshold = coalesce(c.BreakerFailureThreshold, 5)
	c.BreakerCooldown = coalesce(c.BreakerCooldown, 30*time.Second)
	c.BreakerMaxCooldown = coalesce(c.BreakerMaxCooldown, 10*c.BreakerCooldown)
	c.DemotionAge = coalesce(c.DemotionAge, 30*day)
	c.DemotionInterval = coalesce(c.DemotionInterval, time.Hour)
	c.DemotionBatch = coalesce(c.DemotionBatch, 256)
	c.LargeValueBytes = coalesce(c.LargeValueBytes, 1<<20)
	c.DeleteAttempts = coalesce(c.DeleteAttempts, 2)
	return c
}

// ConfigFromEnv reads the AGENTMEM_* environment surface. Unset keys keep
// their zero value and pick up defaults at construction time.
//
//	AGENTMEM_NAMESPACE
//	AGENTMEM_HOT_ENDPOINT / AGENTMEM_WARM_ENDPOINT / AGENTMEM_COLD_ENDPOINT
//	AGENTMEM_HOT_DEFAULT_TTL_SECONDS (default 900)
//	AGENTMEM_WARM_DEFAULT_TTL_SECONDS (default 2592000)
//	AGENTMEM_COLD_DEFAULT_TTL_SECONDS (default 0 = none)
//	AGENTMEM_PROMOTION_THRESHOLD (default 10)
//	AGENTMEM_BREAKER_FAILURE_THRESHOLD (default 5)
//	AGENTMEM_BREAKER_COOLDOWN_SECONDS (default 30)
//	AGENTMEM_DEMOTION_AGE_DAYS (default 30)
func ConfigFromEnv() (Config, error) {
	var c Config
	c.Namespace = os.Getenv("AGENTMEM_NAMESPACE")
	c.HotEndpoint = os.Getenv("AGENTMEM_HOT_ENDPOINT")
	c.WarmEndpoint = os.Getenv("AGENTMEM_WARM_ENDPOINT")
	c.ColdEndpoint = os.Getenv("AGENTMEM_COLD_ENDPOINT")

	var err error
	if c.HotDefaultTTL, err = envSeconds("AGENTMEM_HOT_DEFAULT_TTL_SECONDS"); err != nil {
		return Config{}, err
	}
	if c.WarmDefaultTTL, err = envSeconds("AGENTMEM_WARM_DEFAULT_TTL_SECONDS"); err != nil {
		return Config{}, err
	}
	if c.ColdDefaultTTL, err = envSeconds("AGENTMEM_COLD_DEFAULT_TTL_SECONDS"); err != nil {
		return Config{}, err
	}
	if c.BreakerCooldown, err = envSeconds("AGENTMEM_BREAKER_COOLDOWN_SECONDS"); err != nil {
		return Config{}, err
	}
	if c.PromotionThreshold, err = envInt("AGENTMEM_PROMOTION_THRESHOLD"); err != nil {
		return Config{}, err
	}
	if c.BreakerFailureThreshold, err = envInt("AGENTMEM_BREAKER_FAILURE_THRESHOLD"); err != nil {
		return Config{}, err
	}
	ageDays, err := envInt("AGENTMEM_DEMOTION_AGE_DAYS")
	if err != nil {
		return Config{}, err
	}
	c.DemotionAge = time.Duration(ageDays) * day
	return c, nil
}

func envInt(key string) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("agentmem: %s: %w", key, err)
	}
	return n, nil
}

func envSeconds(key string) (time.Duration, error) {
	n, err := envInt(key)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}
