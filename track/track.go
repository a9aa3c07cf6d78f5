// Package track counts entry accesses in a sliding window to decide
// promotion eligibility.
//
// Trackers are best-effort by contract: memory for counting is bounded, a
// counter may be silently reset under pressure, and a lost count only costs
// a missed promotion, never an error on the read path.
package track

import "context"

// Tracker maintains per-key access counts over a sliding window.
// Use Local (default) for in-process counting, or Redis to share counts
// across replicas.
type Tracker interface {
	// RecordAccess notes one access. Failures are swallowed.
	RecordAccess(ctx context.Context, key string)

	// ShouldPromote reports whether the key's access count within the
	// current window has reached the promotion threshold.
	ShouldPromote(ctx context.Context, key string) bool

	// Close releases resources (no-op ok).
	Close(ctx context.Context) error
}
