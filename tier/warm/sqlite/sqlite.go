// Package sqlite implements the warm tier on modernc.org/sqlite: a
// structured, partition-keyed store with per-entry expiry, query-by-
// partition, and an age scan that feeds warm→cold demotion.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/holidaypeak/agentmem/tier"
)

// ErrPartitionRequired is returned for writes without a partition key:
// every warm entry belongs to a partition.
var ErrPartitionRequired = errors.New("sqlite warm tier: partition key required")

type Warm struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ tier.Tier             = (*Warm)(nil)
	_ tier.AgedScanner      = (*Warm)(nil)
	_ tier.PartitionQuerier = (*Warm)(nil)
)

type Options struct {
	Clock func() time.Time // nil => time.Now; injected by tests
}

const schema = `
CREATE TABLE IF NOT EXISTS warm_entries (
    key            TEXT PRIMARY KEY,
    partition_key  TEXT NOT NULL,
    value          BLOB NOT NULL,
    created_at     INTEGER NOT NULL,
    expires_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_warm_partition ON warm_entries(partition_key);
CREATE INDEX IF NOT EXISTS idx_warm_created   ON warm_entries(created_at);
CREATE INDEX IF NOT EXISTS idx_warm_expires   ON warm_entries(expires_at);
`

// Open opens (or creates) the warm store at path, configures pragmas and
// creates the schema.
func Open(path string, opts Options) (*Warm, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create warm dir: %w", err)
	}
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return setup(sqlDB, opts)
}

// OpenMemory opens an in-memory warm store for testing.
func OpenMemory(opts Options) (*Warm, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Each pooled connection would otherwise get its own empty database.
	sqlDB.SetMaxOpenConns(1)
	return setup(sqlDB, opts)
}

func setup(sqlDB *sql.DB, opts Options) (*Warm, error) {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	w := &Warm{db: sqlDB, now: opts.Clock}
	if w.now == nil {
		w.now = time.Now
	}
	return w, nil
}

func (w *Warm) Name() string { return "warm" }

func (w *Warm) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value     []byte
		expiresAt int64
	)
	err := w.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM warm_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify(err)
	}
	if expiresAt <= w.now().Unix() {
		// Lazy expiry: reap and report a miss.
		_, _ = w.db.ExecContext(ctx, `DELETE FROM warm_entries WHERE key = ? AND expires_at <= ?`,
			key, w.now().Unix())
		return nil, false, nil
	}
	return value, true, nil
}

// Set upserts the entry. The partition key is immutable for the life of
// the key: an upsert that would change it affects no rows and fails with
// tier.ErrPartitionImmutable. created_at is preserved on overwrite so
// demotion age means age of the key, not time since last rewrite.
func (w *Warm) Set(ctx context.Context, key string, value []byte, ttl time.Duration, partitionKey string) error {
	if ttl <= 0 {
		return tier.ErrInvalidTTL
	}
	if partitionKey == "" {
		return ErrPartitionRequired
	}
	now := w.now()

	// An expired row no longer pins its partition key.
	if _, err := w.db.ExecContext(ctx,
		`DELETE FROM warm_entries WHERE key = ? AND expires_at <= ?`, key, now.Unix()); err != nil {
		return classify(err)
	}

	res, err := w.db.ExecContext(ctx, `
INSERT INTO warm_entries (key, partition_key, value, created_at, expires_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
    value      = excluded.value,
    expires_at = excluded.expires_at
WHERE warm_entries.partition_key = excluded.partition_key`,
		key, partitionKey, value, now.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return tier.ErrPartitionImmutable
	}
	return nil
}

func (w *Warm) Delete(ctx context.Context, key string) error {
	if _, err := w.db.ExecContext(ctx, `DELETE FROM warm_entries WHERE key = ?`, key); err != nil {
		return classify(err)
	}
	return nil
}

func (w *Warm) Close(context.Context) error { return w.db.Close() }

// ScanOlderThan feeds the demotion scan: live entries created before
// cutoff, oldest first.
func (w *Warm) ScanOlderThan(ctx context.Context, cutoff time.Time, limit int, fn func(key, partitionKey string, value []byte) error) error {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := w.db.QueryContext(ctx, `
SELECT key, partition_key, value FROM warm_entries
WHERE created_at < ? AND expires_at > ?
ORDER BY created_at
LIMIT ?`, cutoff.Unix(), w.now().Unix(), limit)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key, pk string
			value   []byte
		)
		if err := rows.Scan(&key, &pk, &value); err != nil {
			return classify(err)
		}
		if err := fn(key, pk, value); err != nil {
			return err
		}
	}
	return classify(rows.Err())
}

// QueryPartition returns all live values in a partition, keyed by entry key.
func (w *Warm) QueryPartition(ctx context.Context, partitionKey string) (map[string][]byte, error) {
	rows, err := w.db.QueryContext(ctx,
		`SELECT key, value FROM warm_entries WHERE partition_key = ? AND expires_at > ?`,
		partitionKey, w.now().Unix())
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, classify(err)
		}
		out[key] = value
	}
	return out, classify(rows.Err())
}

// classify maps driver errors to the tier taxonomy. A busy/locked database
// is explicit backpressure; everything else transient is unavailability.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return tier.Throttled(err)
	}
	return tier.Classify(err)
}
