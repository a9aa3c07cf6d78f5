package agentmem

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holidaypeak/agentmem/internal/record"
	"github.com/holidaypeak/agentmem/tier"
	"github.com/holidaypeak/agentmem/track"
)

// tierSlot pairs a tier with its breaker. A nil Tier means the slot is not
// configured; the name stays valid for errors and hook events.
type tierSlot struct {
	name string
	t    tier.Tier
	br   *CircuitBreaker
}

type memory struct {
	cfg  Config
	hot  tierSlot
	warm tierSlot
	cold tierSlot

	tracker track.Tracker
	log     Logger
	hooks   Hooks
	now     func() time.Time

	promoWG   sync.WaitGroup
	demoter   *demoter
	closeOnce sync.Once
	closeErr  error
}

func newMemory(opts Options) (*memory, error) {
	cfg := opts.Config.withDefaults()

	m := &memory{cfg: cfg, tracker: opts.Tracker}
	if m.log = opts.Logger; m.log == nil {
		m.log = NopLogger{}
	}
	if m.hooks = opts.Hooks; m.hooks == nil {
		m.hooks = NopHooks{}
	}
	if m.now = opts.Clock; m.now == nil {
		m.now = time.Now
	}

	slot := func(name string, t tier.Tier) tierSlot {
		if t == nil {
			return tierSlot{name: name}
		}
		return tierSlot{
			name: name,
			t:    t,
			br: NewCircuitBreaker(BreakerConfig{
				FailureThreshold: cfg.BreakerFailureThreshold,
				Cooldown:         cfg.BreakerCooldown,
				MaxCooldown:      cfg.BreakerMaxCooldown,
				Clock:            m.now,
				OnStateChange: func(from, to BreakerState) {
					m.hooks.BreakerStateChanged(name, from, to)
				},
			}),
		}
	}
	m.hot = slot("hot", opts.Hot)
	m.warm = slot("warm", opts.Warm)
	m.cold = slot("cold", opts.Cold)

	if _, ok := opts.Warm.(tier.AgedScanner); ok && opts.Cold != nil && cfg.DemotionInterval > 0 {
		m.demoter = newDemoter(m)
		m.demoter.start()
	}
	return m, nil
}

func (m *memory) storageKey(key string) string { return m.cfg.Namespace + ":" + key }

// Get cascades hot → warm → cold. A hit in a lower tier is promoted upward
// per the promotion policy; promotion failures never affect the read.
func (m *memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k := m.storageKey(key)
	configured, open := 0, 0

	if m.hot.t != nil {
		configured++
		rec, ok, err := m.getFrom(ctx, m.hot, k)
		if errors.Is(err, ErrCircuitOpen) {
			open++
		}
		if ok {
			m.recordAccess(ctx, k)
			return rec.Payload, true, nil
		}
	}

	if m.warm.t != nil {
		configured++
		rec, ok, err := m.getFrom(ctx, m.warm, k)
		if errors.Is(err, ErrCircuitOpen) {
			open++
		}
		if ok {
			m.recordAccess(ctx, k)
			if m.hotPromotionEligible(ctx, k) {
				m.promote(m.hot, k, rec, m.cfg.HotDefaultTTL)
			}
			return rec.Payload, true, nil
		}
	}

	if m.cold.t != nil {
		configured++
		rec, ok, err := m.getFrom(ctx, m.cold, k)
		if errors.Is(err, ErrCircuitOpen) {
			open++
		}
		if ok {
			m.recordAccess(ctx, k)
			// Cold→Warm promotion is always threshold-gated.
			if m.warm.t != nil && m.tracker != nil && m.tracker.ShouldPromote(ctx, k) {
				m.promote(m.warm, k, rec, m.cfg.WarmDefaultTTL)
			}
			if m.hotPromotionEligible(ctx, k) {
				m.promote(m.hot, k, rec, m.cfg.HotDefaultTTL)
			}
			return rec.Payload, true, nil
		}
	}

	if configured > 0 && open == configured {
		return nil, false, ErrAllTiersUnavailable
	}
	return nil, false, nil
}

// Set writes value under the resolved policy. The first selected tier
// (hot, for write-through) is the primary; its failure fails the write.
// Secondary failures flip the partial flag and are reported to monitoring
// via hooks, never as an error.
func (m *memory) Set(ctx context.Context, key string, value []byte, opts SetOptions) (bool, error) {
	policy := opts.Policy
	if policy == PolicyDefault {
		policy = m.place(value, opts)
	}
	if opts.PII && policy == PolicyColdOnly {
		return false, ErrPIIRestricted
	}

	legs, coldSkipped, err := m.legsFor(policy, opts.PII)
	if err != nil {
		return false, err
	}

	rec := record.Record{
		PII:          opts.PII,
		CreatedAt:    m.now().UTC(),
		PartitionKey: opts.PartitionKey,
		Payload:      value,
	}
	raw := record.Encode(rec)
	k := m.storageKey(key)

	partial := coldSkipped
	if coldSkipped {
		m.hooks.PartialWrite(k, m.cold.name, ErrPIIRestricted)
	}

	for i, leg := range legs {
		ttl := opts.TTL
		if ttl == 0 {
			ttl = m.defaultTTLFor(leg.name)
		}
		werr := m.setOn(ctx, leg, k, raw, ttl, opts.PartitionKey)
		if werr == nil {
			continue
		}
		if i == 0 {
			return false, fmt.Errorf("agentmem: write to %s tier: %w", leg.name, werr)
		}
		partial = true
		m.hooks.PartialWrite(k, leg.name, werr)
		m.log.Warn("secondary write failed", Fields{"tier": leg.name, "key": k, "err": werr})
	}
	return partial, nil
}

// Delete fans out to every configured tier concurrently and succeeds only
// when all confirm. Open breakers are bypassed: erasure must reach the
// backend rather than fail fast on a load-shedding heuristic.
func (m *memory) Delete(ctx context.Context, key string) error {
	k := m.storageKey(key)

	var (
		mu     sync.Mutex
		failed = make(map[string]error)
		wg     sync.WaitGroup
	)
	for _, s := range m.slots() {
		wg.Add(1)
		go func(s tierSlot) {
			defer wg.Done()
			if err := m.deleteOn(ctx, s, k); err != nil {
				mu.Lock()
				failed[s.name] = err
				mu.Unlock()
				m.hooks.DeleteFailed(k, s.name, err)
				m.log.Error("delete failed", Fields{"tier": s.name, "key": k, "err": err})
			}
		}(s)
	}
	wg.Wait()

	if len(failed) > 0 {
		return &PartialDeleteError{Key: key, Failed: failed}
	}
	return nil
}

func (m *memory) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		if m.demoter != nil {
			m.demoter.stop()
		}
		m.promoWG.Wait()

		var errs []error
		if m.tracker != nil {
			if err := m.tracker.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracker: %w", err))
			}
		}
		for _, s := range m.slots() {
			if err := s.t.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			}
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}

// slots returns the configured tiers in hot→warm→cold order.
func (m *memory) slots() []tierSlot {
	out := make([]tierSlot, 0, 3)
	for _, s := range []tierSlot{m.hot, m.warm, m.cold} {
		if s.t != nil {
			out = append(out, s)
		}
	}
	return out
}

// place applies the default placement rules when the caller passed
// PolicyDefault.
func (m *memory) place(value []byte, opts SetOptions) WritePolicy {
	switch {
	case opts.PII:
		// PII may not live only in hot long-term and never lands in cold.
		return PolicyWriteThroughHotWarm
	case len(value) > m.cfg.LargeValueBytes:
		return PolicyColdOnly
	case opts.TTL > 0 && opts.TTL <= m.cfg.HotDefaultTTL:
		// Session/ephemeral data.
		return PolicyHotOnly
	default:
		// Structured profile-like data.
		return PolicyWriteThroughHotWarm
	}
}

// legsFor maps a policy to ordered write legs. Write-through runs
// hot→warm→cold with hot as the primary: a hot failure fails the write,
// while a lower-tier failure only degrades it to partial. PII prunes the
// cold leg from write-through-all; the caller reports that as partial.
func (m *memory) legsFor(p WritePolicy, pii bool) (legs []tierSlot, coldSkipped bool, err error) {
	switch p {
	case PolicyHotOnly:
		return []tierSlot{m.hot}, false, nil
	case PolicyWarmOnly:
		return []tierSlot{m.warm}, false, nil
	case PolicyColdOnly:
		return []tierSlot{m.cold}, false, nil
	case PolicyWriteThroughHotWarm:
		return []tierSlot{m.hot, m.warm}, false, nil
	case PolicyWriteThroughAll:
		if pii {
			return []tierSlot{m.hot, m.warm}, true, nil
		}
		return []tierSlot{m.hot, m.warm, m.cold}, false, nil
	case PolicyDefault:
		// Resolved by the caller; reaching here is a bug.
		return nil, false, fmt.Errorf("agentmem: unresolved default policy")
	default:
		return nil, false, fmt.Errorf("agentmem: unknown write policy %v", p)
	}
}

func (m *memory) defaultTTLFor(name string) time.Duration {
	switch name {
	case "hot":
		return m.cfg.HotDefaultTTL
	case "warm":
		return m.cfg.WarmDefaultTTL
	default:
		return m.cfg.ColdDefaultTTL
	}
}

// getFrom performs a breaker-guarded tier read and decodes the stored
// record, self-healing corrupt frames.
func (m *memory) getFrom(ctx context.Context, s tierSlot, k string) (record.Record, bool, error) {
	if !s.br.Allow() {
		return record.Record{}, false, ErrCircuitOpen
	}
	raw, ok, err := s.t.Get(ctx, k)
	err = tier.Classify(err)
	s.br.Record(err)
	if err != nil {
		m.log.Warn("tier get failed", Fields{"tier": s.name, "key": k, "err": err})
		return record.Record{}, false, err
	}
	if !ok {
		return record.Record{}, false, nil
	}
	rec, derr := record.Decode(raw)
	if derr != nil {
		_ = s.t.Delete(ctx, k) // self-heal corrupt
		m.hooks.SelfHeal(s.name, k, "corrupt")
		return record.Record{}, false, nil
	}
	return rec, true, nil
}

// setOn performs a breaker-guarded tier write.
func (m *memory) setOn(ctx context.Context, s tierSlot, k string, raw []byte, ttl time.Duration, partitionKey string) error {
	if s.t == nil {
		return fmt.Errorf("agentmem: %s tier not configured", s.name)
	}
	if !s.br.Allow() {
		return ErrCircuitOpen
	}
	err := tier.Classify(s.t.Set(ctx, k, raw, ttl, partitionKey))
	s.br.Record(err)
	return err
}

// deleteOn retries a tier delete before reporting it failed. A delete
// result still feeds the breaker even though Allow is not consulted.
func (m *memory) deleteOn(ctx context.Context, s tierSlot, k string) error {
	var last error
	for attempt := 0; attempt < m.cfg.DeleteAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return tier.Unavailable(ctx.Err())
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		}
		err := tier.Classify(s.t.Delete(ctx, k))
		s.br.Record(err)
		if err == nil {
			return nil
		}
		last = err
	}
	return last
}

// promote copies rec into slot with a fresh TTL (invariant: the promoted
// copy's TTL is independent of the source tier's and resets every
// promotion). Dispatched without blocking the read unless
// SynchronousPromotion is set; failures are swallowed and only visible via
// logs and hooks.
func (m *memory) promote(s tierSlot, k string, rec record.Record, ttl time.Duration) {
	if s.t == nil {
		return
	}
	do := func() {
		// Detached from the caller's context: cancellation of the read
		// must not corrupt an in-flight promotion write.
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.PromotionTimeout)
		defer cancel()
		if !s.br.Allow() {
			return
		}
		err := tier.Classify(s.t.Set(ctx, k, record.Encode(rec), ttl, rec.PartitionKey))
		s.br.Record(err)
		if err != nil {
			m.hooks.PromotionFailed(k, s.name, err)
			m.log.Warn("promotion failed", Fields{"tier": s.name, "key": k, "err": err})
		}
	}
	if m.cfg.SynchronousPromotion {
		do()
		return
	}
	m.promoWG.Add(1)
	go func() {
		defer m.promoWG.Done()
		do()
	}()
}

func (m *memory) hotPromotionEligible(ctx context.Context, k string) bool {
	if m.hot.t == nil {
		return false
	}
	switch m.cfg.PromotionMode {
	case PromoteByThreshold:
		return m.tracker != nil && m.tracker.ShouldPromote(ctx, k)
	default:
		return true
	}
}

func (m *memory) recordAccess(ctx context.Context, k string) {
	if m.tracker != nil {
		m.tracker.RecordAccess(ctx, k)
	}
}
