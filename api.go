package agentmem

import (
	"context"
	"fmt"
	"time"

	"github.com/holidaypeak/agentmem/tier"
	"github.com/holidaypeak/agentmem/track"
)

// Memory is the tiered memory orchestrator: the only surface application
// code calls. Reads cascade hot→warm→cold with upward promotion; writes fan
// out per policy; deletes must be confirmed by every tier.
type Memory interface {
	// Get returns the entry payload if any tier holds it. A miss is
	// (nil, false, nil). If every configured tier's breaker was open the
	// error is ErrAllTiersUnavailable, distinct from a genuine miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value per opts.Policy. partial=true means the primary
	// tier accepted the write but at least one secondary tier did not;
	// callers must not treat that as fatal.
	Set(ctx context.Context, key string, value []byte, opts SetOptions) (partial bool, err error)

	// Delete removes key from all tiers. It succeeds only when every tier
	// confirms deletion or confirms the key was already absent; otherwise
	// it returns a *PartialDeleteError naming the failing tiers. This is
	// the compliance-erasure path: there is no best-effort fallback.
	Delete(ctx context.Context, key string) error

	// Close stops background work, waits for in-flight promotions, and
	// closes the tracker and tiers.
	Close(ctx context.Context) error
}

// DemotionRunner is implemented by Memory instances wired with a warm tier
// that can scan by age and a cold tier to demote into. RunDemotionOnce is
// what the background scan executes on each tick.
type DemotionRunner interface {
	RunDemotionOnce(ctx context.Context) (moved int, err error)
}

// SetOptions carry the per-write parameters.
type SetOptions struct {
	// TTL for the written copies; 0 inherits each tier's default
	// (the cold default may be "no expiry").
	TTL time.Duration

	// PartitionKey is required for writes that reach the warm tier.
	// Immutable for the life of the key.
	PartitionKey string

	// PII marks the payload as personal data: it is excluded from the
	// cold tier and from demotion, and never lives only in the hot tier
	// under the default placement.
	PII bool

	Policy WritePolicy
}

// Options wires a Memory. At least one tier is required; everything else
// has defaults. Use Open to assemble the standard backend stack from
// Config endpoints instead.
type Options struct {
	Config Config

	Hot  tier.Tier
	Warm tier.Tier
	Cold tier.Tier

	// Tracker counts accesses for promotion decisions. Nil disables
	// threshold-gated promotion (threshold checks report false).
	Tracker track.Tracker

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	Clock func() time.Time // nil => time.Now; injected by tests
}

// New validates opts and builds the orchestrator.
func New(opts Options) (Memory, error) {
	if opts.Hot == nil && opts.Warm == nil && opts.Cold == nil {
		return nil, fmt.Errorf("agentmem: at least one tier is required")
	}
	return newMemory(opts)
}
