// Package bbolt implements the cold tier on bbolt: a high-latency,
// large-object store with no practical size limit and lifecycle-based
// tiering: entries move from the live bucket to the archive bucket once
// they pass an age threshold.
package bbolt

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/holidaypeak/agentmem/tier"
)

var (
	bucketLive    = []byte("live")
	bucketArchive = []byte("archive")
)

type Cold struct {
	db  *bolt.DB
	now func() time.Time

	archiveAfter time.Duration
	ticker       *time.Ticker
	stopCh       chan struct{}
	wg           sync.WaitGroup
	closeOnce    sync.Once
}

var (
	_ tier.Tier     = (*Cold)(nil)
	_ tier.Archiver = (*Cold)(nil)
)

type Options struct {
	// ArchiveAfter moves live entries to the archive bucket once they are
	// this old; 0 disables lifecycle archival.
	ArchiveAfter time.Duration
	// ArchiveInterval is how often the lifecycle scan runs when
	// ArchiveAfter is set; 0 => 12h.
	ArchiveInterval time.Duration
	Clock           func() time.Time
}

// Open initializes or opens a cold store at path.
func Open(path string, opts Options) (*Cold, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketLive); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketArchive)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	c := &Cold{db: db, now: opts.Clock, archiveAfter: opts.ArchiveAfter}
	if c.now == nil {
		c.now = time.Now
	}
	if opts.ArchiveAfter > 0 {
		interval := opts.ArchiveInterval
		if interval <= 0 {
			interval = 12 * time.Hour
		}
		c.ticker = time.NewTicker(interval)
		c.stopCh = make(chan struct{})
		c.wg.Add(1)
		go c.lifecycleLoop()
	}
	return c, nil
}

func (c *Cold) Name() string { return "cold" }

// Layout: storedAt(8 be unix) | expiresAt(8 be unix, 0 = no expiry) | value
func frame(storedAt, expiresAt int64, value []byte) []byte {
	buf := make([]byte, 16+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(storedAt))
	binary.BigEndian.PutUint64(buf[8:16], uint64(expiresAt))
	copy(buf[16:], value)
	return buf
}

func (c *Cold) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		out     []byte
		found   bool
		expired bool
	)
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketLive).Get([]byte(key))
		if v == nil {
			v = tx.Bucket(bucketArchive).Get([]byte(key))
		}
		if v == nil || len(v) < 16 {
			return nil
		}
		expiresAt := int64(binary.BigEndian.Uint64(v[8:16]))
		if expiresAt > 0 && c.now().Unix() > expiresAt {
			expired = true
			return nil
		}
		out = append([]byte(nil), v[16:]...)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, tier.Classify(err)
	}
	if expired {
		// Lazy reap; the next write or delete clears the slot anyway.
		_ = c.Delete(ctx, key)
		return nil, false, nil
	}
	return out, found, nil
}

func (c *Cold) Set(_ context.Context, key string, value []byte, ttl time.Duration, _ string) error {
	now := c.now()
	expiresAt := int64(0)
	if ttl > 0 {
		expiresAt = now.Add(ttl).Unix()
	}
	buf := frame(now.Unix(), expiresAt, value)
	err := c.db.Update(func(tx *bolt.Tx) error {
		// A rewritten key restarts its lifecycle in the live bucket.
		if err := tx.Bucket(bucketArchive).Delete([]byte(key)); err != nil {
			return err
		}
		return tx.Bucket(bucketLive).Put([]byte(key), buf)
	})
	return tier.Classify(err)
}

func (c *Cold) Delete(_ context.Context, key string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketLive).Delete([]byte(key)); err != nil {
			return err
		}
		return tx.Bucket(bucketArchive).Delete([]byte(key))
	})
	return tier.Classify(err)
}

func (c *Cold) Close(context.Context) error {
	c.closeOnce.Do(func() {
		if c.stopCh != nil {
			close(c.stopCh)
			c.ticker.Stop()
			c.wg.Wait()
		}
	})
	return c.db.Close()
}

// ArchiveOlderThan moves live entries stored before cutoff into the
// archive bucket. Reads keep working either way; archival only reflects
// storage-class intent.
func (c *Cold) ArchiveOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	moved := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		live := tx.Bucket(bucketLive)
		archive := tx.Bucket(bucketArchive)

		type kv struct{ k, v []byte }
		var aged []kv
		cur := live.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if len(v) < 16 {
				continue
			}
			storedAt := int64(binary.BigEndian.Uint64(v[:8]))
			if time.Unix(storedAt, 0).Before(cutoff) {
				aged = append(aged, kv{
					k: append([]byte(nil), k...),
					v: append([]byte(nil), v...),
				})
			}
		}
		for _, e := range aged {
			if err := archive.Put(e.k, e.v); err != nil {
				return err
			}
			if err := live.Delete(e.k); err != nil {
				return err
			}
			moved++
		}
		return nil
	})
	if err != nil {
		return moved, tier.Classify(err)
	}
	return moved, nil
}

func (c *Cold) lifecycleLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ticker.C:
			cutoff := c.now().Add(-c.archiveAfter)
			_, _ = c.ArchiveOlderThan(context.Background(), cutoff)
		case <-c.stopCh:
			return
		}
	}
}
