// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/holidaypeak/agentmem"
//	"github.com/holidaypeak/agentmem/hooks/async"
//	"github.com/holidaypeak/agentmem/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery: 10, // sample logs: ~every 10th self-heal
//	    DemotionEvery: 50, // demotion runs are chatty
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	mem, _ := agentmem.New(agentmem.Options{
//	    Config: cfg,
//	    Hot:    hot,
//	    Warm:   warm,
//	    Hooks:  hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"

	"github.com/holidaypeak/agentmem"
)

type Hooks struct {
	inner agentmem.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ agentmem.Hooks = (*Hooks)(nil)

func New(inner agentmem.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) PromotionFailed(k, t string, err error) {
	h.try(func() { h.inner.PromotionFailed(k, t, err) })
}
func (h *Hooks) PartialWrite(k, t string, err error) {
	h.try(func() { h.inner.PartialWrite(k, t, err) })
}
func (h *Hooks) DeleteFailed(k, t string, err error) {
	h.try(func() { h.inner.DeleteFailed(k, t, err) })
}
func (h *Hooks) BreakerStateChanged(t string, from, to agentmem.BreakerState) {
	h.try(func() { h.inner.BreakerStateChanged(t, from, to) })
}
func (h *Hooks) SelfHeal(t, k, r string) { h.try(func() { h.inner.SelfHeal(t, k, r) }) }
func (h *Hooks) DemotionMoved(k string)  { h.try(func() { h.inner.DemotionMoved(k) }) }
func (h *Hooks) DemotionFailed(k string, err error) {
	h.try(func() { h.inner.DemotionFailed(k, err) })
}
