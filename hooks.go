package agentmem

// Hooks are lightweight callbacks for high-signal events. Implementations
// MUST be cheap and non-blocking; the orchestrator calls them on hot paths.
// Wrap with hooks/async to decouple slow sinks.
type Hooks interface {
	// A best-effort promotion write failed. Never surfaced to the reader.
	PromotionFailed(key, tierName string, err error)

	// A write-through secondary tier failed (the write itself succeeded
	// with partial=true). Monitoring must record these.
	PartialWrite(key, tierName string, err error)

	// A tier failed to confirm a delete after retries.
	DeleteFailed(key, tierName string, err error)

	// A tier's breaker changed state.
	BreakerStateChanged(tierName string, from, to BreakerState)

	// A corrupt stored record was deleted on read.
	// reason is "corrupt" or "decode".
	SelfHeal(tierName, key, reason string)

	// A demotion run moved an entry from warm to cold.
	DemotionMoved(key string)

	// A demotion step failed; the entry stays recoverable in warm and the
	// next run retries it.
	DemotionFailed(key string, err error)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) PromotionFailed(string, string, error)                {}
func (NopHooks) PartialWrite(string, string, error)                   {}
func (NopHooks) DeleteFailed(string, string, error)                   {}
func (NopHooks) BreakerStateChanged(string, BreakerState, BreakerState) {}
func (NopHooks) SelfHeal(string, string, string)                      {}
func (NopHooks) DemotionMoved(string)                                 {}
func (NopHooks) DemotionFailed(string, error)                         {}
