package agentmem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/holidaypeak/agentmem/internal/record"
	"github.com/holidaypeak/agentmem/tier"
)

// demoter runs the periodic warm→cold archival scan, independent of the
// request path. A failed run is retried on the next tick and never blocks
// foreground traffic.
type demoter struct {
	m      *memory
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newDemoter(m *memory) *demoter {
	return &demoter{m: m}
}

func (d *demoter) start() {
	d.ticker = time.NewTicker(d.m.cfg.DemotionInterval)
	d.stopCh = make(chan struct{})
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-d.ticker.C:
				if _, err := d.m.RunDemotionOnce(context.Background()); err != nil {
					d.m.log.Warn("demotion run failed", Fields{"err": err})
				}
			case <-d.stopCh:
				return
			}
		}
	}()
}

func (d *demoter) stop() {
	close(d.stopCh)
	d.ticker.Stop()
	d.wg.Wait()
}

// RunDemotionOnce scans the warm tier for entries past the age threshold
// and moves each to cold: write cold, then delete warm, in that order, so
// a crash mid-move leaves the entry recoverable from warm (at worst
// duplicated in both tiers, never lost). The scan is idempotent; per-entry
// failures are reported via hooks and retried on the next run. PII entries
// are skipped: unencrypted PII stays out of cold storage.
func (m *memory) RunDemotionOnce(ctx context.Context) (int, error) {
	scanner, ok := m.warm.t.(tier.AgedScanner)
	if !ok || m.cold.t == nil {
		return 0, fmt.Errorf("agentmem: demotion requires an age-scannable warm tier and a cold tier")
	}

	runID := uuid.NewString()
	cutoff := m.now().Add(-m.cfg.DemotionAge)
	var moved, failed, skipped int

	err := scanner.ScanOlderThan(ctx, cutoff, m.cfg.DemotionBatch, func(key, partitionKey string, raw []byte) error {
		rec, derr := record.Decode(raw)
		if derr != nil {
			_ = m.warm.t.Delete(ctx, key)
			m.hooks.SelfHeal(m.warm.name, key, "corrupt")
			return nil
		}
		if rec.PII {
			skipped++
			return nil
		}
		if werr := m.setOn(ctx, m.cold, key, raw, m.cfg.ColdDefaultTTL, partitionKey); werr != nil {
			failed++
			m.hooks.DemotionFailed(key, werr)
			return nil
		}
		if derr := tier.Classify(m.warm.t.Delete(ctx, key)); derr != nil {
			// Cold copy exists; the duplicate is cleaned up next run.
			failed++
			m.hooks.DemotionFailed(key, derr)
			return nil
		}
		moved++
		m.hooks.DemotionMoved(key)
		return nil
	})

	m.log.Info("demotion run", Fields{
		"run":     runID,
		"cutoff":  cutoff,
		"moved":   moved,
		"failed":  failed,
		"skipped": skipped,
	})
	return moved, err
}
