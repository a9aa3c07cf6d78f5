// Package tier defines the storage contract shared by the hot, warm and
// cold memory tiers.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no prepended
// metadata, no re-encoding, no mutation). The orchestrator owns the record
// framing; a tier only moves opaque bytes.
//
// Implementations must be safe for concurrent use and must honor the
// caller's context deadline on every operation.
package tier

import (
	"context"
	"time"
)

// Tier is a single storage tier.
type Tier interface {
	// Name identifies the tier in errors, logs and hook events
	// (e.g. "hot", "warm", "cold").
	Name() string

	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// A miss is never an error. IO/remote failures return (nil, false, err)
	// with err wrapping ErrUnavailable or ErrThrottled.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. Hot and warm tiers require ttl > 0 and
	// return ErrInvalidTTL otherwise; the cold tier treats ttl <= 0 as
	// "no expiry". partitionKey is required by the warm tier and ignored
	// by tiers that have no notion of partitions.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, partitionKey string) error

	// Delete removes a key. Deleting an absent key is a success: the
	// orchestrator's cross-tier delete treats "confirmed absent" and
	// "deleted" identically.
	Delete(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// AgedScanner is implemented by tiers that can enumerate entries by age.
// The warm tier implements it to feed the demotion scan.
type AgedScanner interface {
	// ScanOlderThan invokes fn for each live entry created before cutoff,
	// up to limit entries (limit <= 0 means no limit). Returning an error
	// from fn stops the scan and is returned as-is.
	ScanOlderThan(ctx context.Context, cutoff time.Time, limit int, fn func(key, partitionKey string, value []byte) error) error
}

// PartitionQuerier is implemented by tiers that index entries by partition.
type PartitionQuerier interface {
	// QueryPartition returns all live values stored under partitionKey,
	// keyed by entry key.
	QueryPartition(ctx context.Context, partitionKey string) (map[string][]byte, error)
}

// Archiver is implemented by tiers with internal lifecycle management.
// The cold tier implements it to move aged entries to archive storage.
type Archiver interface {
	// ArchiveOlderThan relocates live entries stored before cutoff to the
	// archive area and returns how many moved.
	ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
