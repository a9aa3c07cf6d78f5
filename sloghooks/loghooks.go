package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/holidaypeak/agentmem"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery  uint64
	PromotionEvery uint64
	DemotionEvery  uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr  atomic.Uint64
	promotionCtr atomic.Uint64
	demotionCtr  atomic.Uint64
}

var _ agentmem.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) PromotionFailed(key, tierName string, err error) {
	if h.l == nil || !sample(h.opts.PromotionEvery, &h.promotionCtr) {
		return
	}
	h.l.Debug("agentmem.promotion_failed",
		"key", h.redact(key),
		"tier", tierName,
		"err", err)
}

func (h *Hooks) PartialWrite(key, tierName string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("agentmem.partial_write",
		"key", h.redact(key),
		"tier", tierName,
		"err", err)
}

func (h *Hooks) DeleteFailed(key, tierName string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("agentmem.delete_failed",
		"key", h.redact(key),
		"tier", tierName,
		"err", err)
}

func (h *Hooks) BreakerStateChanged(tierName string, from, to agentmem.BreakerState) {
	if h.l == nil {
		return
	}
	h.l.Warn("agentmem.breaker_state_changed",
		"tier", tierName,
		"from", from.String(),
		"to", to.String())
}

func (h *Hooks) SelfHeal(tierName, key, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("agentmem.self_heal",
		"tier", tierName,
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) DemotionMoved(key string) {
	if h.l == nil || !sample(h.opts.DemotionEvery, &h.demotionCtr) {
		return
	}
	h.l.Debug("agentmem.demotion_moved",
		"key", h.redact(key))
}

func (h *Hooks) DemotionFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("agentmem.demotion_failed",
		"key", h.redact(key),
		"err", err)
}
