package agentmem

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/holidaypeak/agentmem/internal/record"
	"github.com/holidaypeak/agentmem/tier"
	"github.com/holidaypeak/agentmem/track"
)

// fakeTier is a map-backed tier with a fail switch and call counters.
type fakeEntry struct {
	v   []byte
	pk  string
	exp time.Time // zero => no TTL
}

type fakeTier struct {
	mu   sync.Mutex
	name string
	m    map[string]fakeEntry

	failGet    error
	failSet    error
	failDelete error
	// failDeleteN makes the first N deletes fail, then succeed.
	failDeleteN int

	gets, sets, deletes int
}

var _ tier.Tier = (*fakeTier)(nil)

func newFakeTier(name string) *fakeTier {
	return &fakeTier{name: name, m: make(map[string]fakeEntry)}
}

func (f *fakeTier) Name() string { return f.name }

func (f *fakeTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failGet != nil {
		return nil, false, f.failGet
	}
	e, ok := f.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(f.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (f *fakeTier) Set(_ context.Context, key string, value []byte, ttl time.Duration, pk string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.failSet != nil {
		return f.failSet
	}
	if ttl < 0 {
		return tier.ErrInvalidTTL
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	f.m[key] = fakeEntry{v: value, pk: pk, exp: exp}
	return nil
}

func (f *fakeTier) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.failDeleteN > 0 {
		f.failDeleteN--
		return tier.Unavailable(errors.New("flaky delete"))
	}
	if f.failDelete != nil {
		return f.failDelete
	}
	delete(f.m, key)
	return nil
}

func (f *fakeTier) Close(context.Context) error { return nil }

func (f *fakeTier) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.m[key]
	return ok
}

func (f *fakeTier) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

// fakeScanTier adds ScanOlderThan over stored record frames for demotion
// tests. createdAt comes from the decoded record, like the sqlite tier.
type fakeScanTier struct {
	fakeTier
}

var (
	_ tier.Tier        = (*fakeScanTier)(nil)
	_ tier.AgedScanner = (*fakeScanTier)(nil)
)

func newFakeScanTier(name string) *fakeScanTier {
	return &fakeScanTier{fakeTier: fakeTier{name: name, m: make(map[string]fakeEntry)}}
}

func (f *fakeScanTier) ScanOlderThan(_ context.Context, cutoff time.Time, limit int, fn func(key, partitionKey string, value []byte) error) error {
	f.mu.Lock()
	type row struct {
		k, pk string
		v     []byte
	}
	var aged []row
	for k, e := range f.m {
		rec, err := record.Decode(e.v)
		if err != nil || !rec.CreatedAt.Before(cutoff) {
			continue
		}
		aged = append(aged, row{k: k, pk: e.pk, v: e.v})
		if limit > 0 && len(aged) >= limit {
			break
		}
	}
	f.mu.Unlock()

	for _, r := range aged {
		if err := fn(r.k, r.pk, r.v); err != nil {
			return err
		}
	}
	return nil
}

// fakeTracker promotes when a key reaches the threshold.
type fakeTracker struct {
	mu        sync.Mutex
	counts    map[string]int
	threshold int
}

var _ track.Tracker = (*fakeTracker)(nil)

func newFakeTracker(threshold int) *fakeTracker {
	return &fakeTracker{counts: make(map[string]int), threshold: threshold}
}

func (f *fakeTracker) RecordAccess(_ context.Context, key string) {
	f.mu.Lock()
	f.counts[key]++
	f.mu.Unlock()
}

func (f *fakeTracker) ShouldPromote(_ context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key] >= f.threshold
}

func (f *fakeTracker) Close(context.Context) error { return nil }

// capturingHooks records hook events for assertions.
type capturingHooks struct {
	mu         sync.Mutex
	partial    []string // tier names
	deleteFail []string
	promoFail  []string
	selfHeal   []string
	demoted    []string
}

var _ Hooks = (*capturingHooks)(nil)

func (h *capturingHooks) PromotionFailed(_, tierName string, _ error) {
	h.mu.Lock()
	h.promoFail = append(h.promoFail, tierName)
	h.mu.Unlock()
}

func (h *capturingHooks) PartialWrite(_, tierName string, _ error) {
	h.mu.Lock()
	h.partial = append(h.partial, tierName)
	h.mu.Unlock()
}

func (h *capturingHooks) DeleteFailed(_, tierName string, _ error) {
	h.mu.Lock()
	h.deleteFail = append(h.deleteFail, tierName)
	h.mu.Unlock()
}

func (h *capturingHooks) BreakerStateChanged(string, BreakerState, BreakerState) {}

func (h *capturingHooks) SelfHeal(tierName, _, _ string) {
	h.mu.Lock()
	h.selfHeal = append(h.selfHeal, tierName)
	h.mu.Unlock()
}

func (h *capturingHooks) DemotionMoved(key string) {
	h.mu.Lock()
	h.demoted = append(h.demoted, key)
	h.mu.Unlock()
}

func (h *capturingHooks) DemotionFailed(string, error) {}

type testStack struct {
	hot, cold *fakeTier
	warm      *fakeScanTier
	tracker   *fakeTracker
	hooks     *capturingHooks
	mem       Memory
}

func newTestStack(t *testing.T, mutate func(*Options)) *testStack {
	t.Helper()
	s := &testStack{
		hot:     newFakeTier("hot"),
		warm:    newFakeScanTier("warm"),
		cold:    newFakeTier("cold"),
		tracker: newFakeTracker(3),
		hooks:   &capturingHooks{},
	}
	opts := Options{
		Config: Config{
			Namespace: "t",
			// Background demotion off; runs are driven explicitly.
			DemotionInterval:     -1,
			SynchronousPromotion: true,
			PromotionThreshold:   3,
		},
		Hot:     s.hot,
		Warm:    s.warm,
		Cold:    s.cold,
		Tracker: s.tracker,
		Hooks:   s.hooks,
	}
	if mutate != nil {
		mutate(&opts)
	}
	mem, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.mem = mem
	return s
}

// ==============================
// Read path
// ==============================

func TestGetMiss(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, nil)
	defer s.mem.Close(ctx)

	v, ok, err := s.mem.Get(ctx, "nope")
	if err != nil || ok || v != nil {
		t.Fatalf("miss: v=%v ok=%v err=%v", v, ok, err)
	}
}

func TestGetWarmHitPromotesToHot(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, nil)
	defer s.mem.Close(ctx)

	if _, err := s.mem.Set(ctx, "profile:42", []byte(`{"name":"Ada"}`), SetOptions{
		PartitionKey: "42",
		Policy:       PolicyWarmOnly,
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if s.hot.has("t:profile:42") {
		t.Fatal("warm-only write reached hot")
	}

	got, ok, err := s.mem.Get(ctx, "profile:42")
	if err != nil || !ok || string(got) != `{"name":"Ada"}` {
		t.Fatalf("Get: got=%q ok=%v err=%v", got, ok, err)
	}

	// Default mode promotes on every lower-tier hit.
	if !s.hot.has("t:profile:42") {
		t.Fatal("warm hit was not promoted to hot")
	}

	// Second read is served by hot: warm sees no new Get.
	warmGets := s.warm.getCount()
	if _, ok, _ := s.mem.Get(ctx, "profile:42"); !ok {
		t.Fatal("second Get missed")
	}
	if s.warm.getCount() != warmGets {
		t.Fatal("second Get fell through to warm despite hot copy")
	}
}

func TestGetColdHitThresholdGatedWarmPromotion(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, func(o *Options) {
		o.Config.PromotionMode = PromoteByThreshold
	})
	defer s.mem.Close(ctx)

	if _, err := s.mem.Set(ctx, "archive:7", []byte("payload"), SetOptions{
		PartitionKey: "7",
		Policy:       PolicyColdOnly,
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Below the threshold nothing moves up.
	for i := 0; i < 2; i++ {
		if _, ok, err := s.mem.Get(ctx, "archive:7"); !ok || err != nil {
			t.Fatalf("Get %d: ok=%v err=%v", i, ok, err)
		}
	}
	if s.warm.has("t:archive:7") || s.hot.has("t:archive:7") {
		t.Fatal("promoted below threshold")
	}

	// Third access crosses threshold 3.
	if _, ok, _ := s.mem.Get(ctx, "archive:7"); !ok {
		t.Fatal("third Get missed")
	}
	if !s.warm.has("t:archive:7") {
		t.Fatal("cold hit at threshold was not promoted to warm")
	}
	if !s.hot.has("t:archive:7") {
		t.Fatal("cold hit at threshold was not promoted to hot")
	}
}

func TestGetPromotionFailureDoesNotAffectRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, nil)
	defer s.mem.Close(ctx)

	if _, err := s.mem.Set(ctx, "k", []byte("v"), SetOptions{
		PartitionKey: "p", Policy: PolicyWarmOnly,
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.hot.failSet = tier.Unavailable(errors.New("hot down"))

	got, ok, err := s.mem.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("read affected by promotion failure: got=%q ok=%v err=%v", got, ok, err)
	}
	s.hooks.mu.Lock()
	defer s.hooks.mu.Unlock()
	if len(s.hooks.promoFail) == 0 {
		t.Fatal("promotion failure not reported via hooks")
	}
}

func TestGetFailedTierFallsThrough(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, nil)
	defer s.mem.Close(ctx)

	if _, err := s.mem.Set(ctx, "k", []byte("v"), SetOptions{
		PartitionKey: "p", Policy: PolicyWarmOnly,
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.hot.failGet = tier.Unavailable(errors.New("hot down"))

	got, ok, err := s.mem.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("hot failure did not fall through: got=%q ok=%v err=%v", got, ok, err)
	}
}

func TestGetAllTiersUnavailable(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, func(o *Options) {
		o.Config.BreakerFailureThreshold = 2
	})
	defer s.mem.Close(ctx)

	down := tier.Unavailable(errors.New("down"))
	s.hot.failGet, s.warm.failGet, s.cold.failGet = down, down, down

	// Trip every breaker.
	for i := 0; i < 2; i++ {
		if _, _, err := s.mem.Get(ctx, "k"); err != nil {
			t.Fatalf("warmup Get %d: %v", i, err)
		}
	}

	_, ok, err := s.mem.Get(ctx, "k")
	if ok || !errors.Is(err, ErrAllTiersUnavailable) {
		t.Fatalf("expected ErrAllTiersUnavailable, got ok=%v err=%v", ok, err)
	}

	// No backend IO while every breaker is open.
	hotGets := s.hot.getCount()
	_, _, _ = s.mem.Get(ctx, "k")
	if s.hot.getCount() != hotGets {
		t.Fatal("open breaker still reached the backend")
	}
}

func TestGetSelfHealsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, nil)
	defer s.mem.Close(ctx)

	s.hot.m["t:bad"] = fakeEntry{v: []byte("not a record frame")}
	if _, err := s.mem.Set(ctx, "bad", []byte("good"), SetOptions{
		PartitionKey: "p", Policy: PolicyWarmOnly,
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// The corrupt hot copy is dropped and the read recovers from warm.
	got, ok, err := s.mem.Get(ctx, "bad")
	if err != nil || !ok || string(got) != "good" {
		t.Fatalf("Get: got=%q ok=%v err=%v", got, ok, err)
	}
	s.hooks.mu.Lock()
	healed := len(s.hooks.selfHeal)
	s.hooks.mu.Unlock()
	if healed == 0 {
		t.Fatal("self-heal not reported")
	}
}

// ==============================
// Write path
// ==============================

func TestSetWriteThroughHotWarm(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, nil)
	defer s.mem.Close(ctx)

	partial, err := s.mem.Set(ctx, "k", []byte("v"), SetOptions{
		PartitionKey: "p", Policy: PolicyWriteThroughHotWarm,
	})
	if err != nil || partial {
		t.Fatalf("Set: partial=%v err=%v", partial, err)
	}
	if !s.hot.has("t:k") || !s.warm.has("t:k") {
		t.Fatal("write-through did not reach both tiers")
	}
	if s.cold.has("t:k") {
		t.Fatal("hot/warm write-through reached cold")
	}
}

func TestSetPrimaryFailureFailsWrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, nil)
	defer s.mem.Close(ctx)

	// Hot is the primary leg of hot/warm write-through.
	s.hot.failSet = tier.Unavailable(errors.New("hot down"))
	_, err := s.mem.Set(ctx, "k", []byte("v"), SetOptions{
		PartitionKey: "p", Policy: PolicyWriteThroughHotWarm,
	})
	if err == nil {
		t.Fatal("primary failure did not fail the write")
	}
	if s.warm.has("t:k") {
		t.Fatal("secondary written after primary failure")
	}
}

func TestSetWarmFailureIsPartialNotFatal(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, nil)
	defer s.mem.Close(ctx)

	s.warm.failSet = tier.Unavailable(errors.New("warm down"))
	partial, err := s.mem.Set(ctx, "k", []byte("v"), SetOptions{
		PartitionKey: "p", Policy: PolicyWriteThroughHotWarm,
	})
	if err != nil {
		t.Fatalf("warm failure must not fail the write: %v", err)
	}
	if !partial {
		t.Fatal("warm failure did not flip the partial flag")
	}
	if !s.hot.has("t:k") {
		t.Fatal("hot copy missing")
	}
	s.hooks.mu.Lock()
	reported := len(s.hooks.partial) == 1 && s.hooks.partial[0] == "warm"
	s.hooks.mu.Unlock()
	if !reported {
		t.Fatalf("partial write hooks = %v", s.hooks.partial)
	}

	// The hot copy still answers reads.
	got, ok, err := s.mem.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get after partial write: got=%q ok=%v err=%v", got, ok, err)
	}
}

func TestSetDefaultPlacement(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, func(o *Options) {
		o.Config.LargeValueBytes = 64
	})
	defer s.mem.Close(ctx)

	// Short TTL => session data => hot only.
	if _, err := s.mem.Set(ctx, "sess", []byte("v"), SetOptions{
		TTL: time.Minute, PartitionKey: "p",
	}); err != nil {
		t.Fatalf("Set sess: %v", err)
	}
	if !s.hot.has("t:sess") || s.warm.has("t:sess") || s.cold.has("t:sess") {
		t.Fatal("short-TTL write not placed hot-only")
	}

	// Large value => cold only.
	if _, err := s.mem.Set(ctx, "blob", make([]byte, 128), SetOptions{
		PartitionKey: "p",
	}); err != nil {
		t.Fatalf("Set blob: %v", err)
	}
	if !s.cold.has("t:blob") || s.hot.has("t:blob") || s.warm.has("t:blob") {
		t.Fatal("large value not placed cold-only")
	}

	// Plain structured data => hot + warm.
	if _, err := s.mem.Set(ctx, "profile", []byte("v"), SetOptions{
		PartitionKey: "p",
	}); err != nil {
		t.Fatalf("Set profile: %v", err)
	}
	if !s.hot.has("t:profile") || !s.warm.has("t:profile") || s.cold.has("t:profile") {
		t.Fatal("default write not placed hot+warm")
	}
}

func TestSetPIINeverReachesCold(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, nil)
	defer s.mem.Close(ctx)

	// Explicit cold-only placement of PII is rejected outright.
	if _, err := s.mem.Set(ctx, "ssn", []byte("123-45-6789"), SetOptions{
		PartitionKey: "p", PII: true, Policy: PolicyColdOnly,
	}); !errors.Is(err, ErrPIIRestricted) {
		t.Fatalf("expected ErrPIIRestricted, got %v", err)
	}

	// Write-through-all silently skips the cold leg and reports partial.
	partial, err := s.mem.Set(ctx, "ssn", []byte("123-45-6789"), SetOptions{
		PartitionKey: "p", PII: true, Policy: PolicyWriteThroughAll,
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !partial {
		t.Fatal("skipped cold leg not reported as partial")
	}
	if s.cold.has("t:ssn") {
		t.Fatal("PII landed in cold")
	}
	if !s.hot.has("t:ssn") || !s.warm.has("t:ssn") {
		t.Fatal("PII write missing from hot/warm")
	}

	// Default placement for a large PII value must not fall into cold-only.
	if _, err := s.mem.Set(ctx, "dump", make([]byte, 2<<20), SetOptions{
		PartitionKey: "p", PII: true,
	}); err != nil {
		t.Fatalf("Set large PII: %v", err)
	}
	if s.cold.has("t:dump") {
		t.Fatal("large PII defaulted into cold")
	}
	if !s.warm.has("t:dump") {
		t.Fatal("large PII missing from warm")
	}
}

func TestSetInvalidTTLRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, nil)
	defer s.mem.Close(ctx)

	if _, err := s.mem.Set(ctx, "k", []byte("v"), SetOptions{
		TTL: -time.Second, PartitionKey: "p", Policy: PolicyHotOnly,
	}); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
}

// ==============================
// Delete path
// ==============================

func TestDeleteRemovesAllCopies(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, nil)
	defer s.mem.Close(ctx)

	if _, err := s.mem.Set(ctx, "k", []byte("v"), SetOptions{
		PartitionKey: "p", Policy: PolicyWriteThroughAll,
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.mem.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.hot.has("t:k") || s.warm.has("t:k") || s.cold.has("t:k") {
		t.Fatal("copies survived delete")
	}
	if _, ok, _ := s.mem.Get(ctx, "k"); ok {
		t.Fatal("Get found the key after delete")
	}
}

func TestDeleteAbsentKeySucceeds(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, nil)
	defer s.mem.Close(ctx)

	if err := s.mem.Delete(ctx, "ghost"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
}

func TestDeleteRetriesTransientFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, nil)
	defer s.mem.Close(ctx)

	if _, err := s.mem.Set(ctx, "k", []byte("v"), SetOptions{
		PartitionKey: "p", Policy: PolicyWarmOnly,
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.warm.failDeleteN = 1 // first attempt fails, retry succeeds

	if err := s.mem.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete with one flaky attempt: %v", err)
	}
	if s.warm.has("t:k") {
		t.Fatal("warm copy survived")
	}
}

func TestDeletePartialNamesFailingTiers(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, nil)
	defer s.mem.Close(ctx)

	if _, err := s.mem.Set(ctx, "k", []byte("v"), SetOptions{
		PartitionKey: "p", Policy: PolicyWriteThroughHotWarm,
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.warm.failDelete = tier.Unavailable(errors.New("warm down"))

	err := s.mem.Delete(ctx, "k")
	var pde *PartialDeleteError
	if !errors.As(err, &pde) {
		t.Fatalf("expected *PartialDeleteError, got %v", err)
	}
	if got := pde.Tiers(); len(got) != 1 || got[0] != "warm" {
		t.Fatalf("failing tiers = %v, want [warm]", got)
	}
	// Healthy tiers were still cleared.
	if s.hot.has("t:k") {
		t.Fatal("hot copy survived a partial delete")
	}
}

func TestDeleteBypassesOpenBreaker(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, func(o *Options) {
		o.Config.BreakerFailureThreshold = 2
	})
	defer s.mem.Close(ctx)

	if _, err := s.mem.Set(ctx, "k", []byte("v"), SetOptions{
		PartitionKey: "p", Policy: PolicyWarmOnly,
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Trip the warm breaker with failed reads.
	s.warm.failGet = tier.Unavailable(errors.New("warm down"))
	for i := 0; i < 2; i++ {
		_, _, _ = s.mem.Get(ctx, "k")
	}

	// Erasure still reaches the backend.
	if err := s.mem.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete through open breaker: %v", err)
	}
	if s.warm.has("t:k") {
		t.Fatal("warm copy survived")
	}
}

// ==============================
// Demotion
// ==============================

func TestDemotionMovesAgedEntries(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	s := newTestStack(t, func(o *Options) {
		o.Clock = clk.Now
		o.Config.DemotionAge = 24 * time.Hour
	})
	defer s.mem.Close(ctx)

	if _, err := s.mem.Set(ctx, "old", []byte("aged"), SetOptions{
		PartitionKey: "p", Policy: PolicyWarmOnly,
	}); err != nil {
		t.Fatalf("Set old: %v", err)
	}
	clk.Advance(48 * time.Hour)
	if _, err := s.mem.Set(ctx, "fresh", []byte("new"), SetOptions{
		PartitionKey: "p", Policy: PolicyWarmOnly,
	}); err != nil {
		t.Fatalf("Set fresh: %v", err)
	}

	dr, ok := s.mem.(DemotionRunner)
	if !ok {
		t.Fatal("Memory does not expose DemotionRunner")
	}
	moved, err := dr.RunDemotionOnce(ctx)
	if err != nil || moved != 1 {
		t.Fatalf("RunDemotionOnce: moved=%d err=%v", moved, err)
	}
	if s.warm.has("t:old") || !s.cold.has("t:old") {
		t.Fatal("aged entry did not move warm→cold")
	}
	if !s.warm.has("t:fresh") || s.cold.has("t:fresh") {
		t.Fatal("fresh entry was disturbed")
	}

	// Demoted entries remain readable through the orchestrator.
	got, ok2, err := s.mem.Get(ctx, "old")
	if err != nil || !ok2 || string(got) != "aged" {
		t.Fatalf("Get after demotion: got=%q ok=%v err=%v", got, ok2, err)
	}
}

func TestDemotionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	s := newTestStack(t, func(o *Options) {
		o.Clock = clk.Now
		o.Config.DemotionAge = 24 * time.Hour
	})
	defer s.mem.Close(ctx)

	if _, err := s.mem.Set(ctx, "old", []byte("aged"), SetOptions{
		PartitionKey: "p", Policy: PolicyWarmOnly,
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clk.Advance(48 * time.Hour)

	dr := s.mem.(DemotionRunner)
	if moved, err := dr.RunDemotionOnce(ctx); err != nil || moved != 1 {
		t.Fatalf("first run: moved=%d err=%v", moved, err)
	}
	if moved, err := dr.RunDemotionOnce(ctx); err != nil || moved != 0 {
		t.Fatalf("second run not idempotent: moved=%d err=%v", moved, err)
	}
}

func TestDemotionSkipsPII(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	s := newTestStack(t, func(o *Options) {
		o.Clock = clk.Now
		o.Config.DemotionAge = 24 * time.Hour
	})
	defer s.mem.Close(ctx)

	if _, err := s.mem.Set(ctx, "person", []byte("pii"), SetOptions{
		PartitionKey: "p", PII: true, Policy: PolicyWarmOnly,
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clk.Advance(48 * time.Hour)

	dr := s.mem.(DemotionRunner)
	moved, err := dr.RunDemotionOnce(ctx)
	if err != nil || moved != 0 {
		t.Fatalf("RunDemotionOnce: moved=%d err=%v", moved, err)
	}
	if !s.warm.has("t:person") {
		t.Fatal("PII entry left warm")
	}
	if s.cold.has("t:person") {
		t.Fatal("PII entry reached cold")
	}
}

func TestDemotionColdFailureKeepsWarmCopy(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	s := newTestStack(t, func(o *Options) {
		o.Clock = clk.Now
		o.Config.DemotionAge = 24 * time.Hour
	})
	defer s.mem.Close(ctx)

	if _, err := s.mem.Set(ctx, "old", []byte("aged"), SetOptions{
		PartitionKey: "p", Policy: PolicyWarmOnly,
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clk.Advance(48 * time.Hour)
	s.cold.failSet = tier.Unavailable(errors.New("cold down"))

	dr := s.mem.(DemotionRunner)
	moved, err := dr.RunDemotionOnce(ctx)
	if err != nil || moved != 0 {
		t.Fatalf("RunDemotionOnce: moved=%d err=%v", moved, err)
	}
	if !s.warm.has("t:old") {
		t.Fatal("entry lost: warm copy deleted despite failed cold write")
	}

	// The next run picks it up once cold recovers.
	s.cold.failSet = nil
	if moved, err := dr.RunDemotionOnce(ctx); err != nil || moved != 1 {
		t.Fatalf("recovery run: moved=%d err=%v", moved, err)
	}
}

// ==============================
// Construction and namespace
// ==============================

func TestNewRequiresATier(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("New accepted zero tiers")
	}
}

func TestNamespaceIsolatesKeys(t *testing.T) {
	ctx := context.Background()
	hot := newFakeTier("hot")

	a, err := New(Options{Config: Config{Namespace: "a", DemotionInterval: -1}, Hot: hot})
	if err != nil {
		t.Fatalf("New a: %v", err)
	}
	defer a.Close(ctx)
	b, err := New(Options{Config: Config{Namespace: "b", DemotionInterval: -1}, Hot: hot})
	if err != nil {
		t.Fatalf("New b: %v", err)
	}
	defer b.Close(ctx)

	if _, err := a.Set(ctx, "k", []byte("va"), SetOptions{Policy: PolicyHotOnly, TTL: time.Minute}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatal("namespace b read namespace a's key")
	}
	if got, ok, _ := a.Get(ctx, "k"); !ok || string(got) != "va" {
		t.Fatalf("namespace a lost its key: got=%q ok=%v", got, ok)
	}
}
