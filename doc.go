// Package agentmem is a tiered key-value memory subsystem for agent and
// session state.
//
// State lives across three storage tiers with different latency, cost and
// durability characteristics: a low-latency TTL-bound hot tier, a
// partition-keyed warm tier, and a high-latency large-object cold tier.
// The orchestrator is the only component application code calls: reads
// cascade hot→warm→cold and promote hits upward, writes fan out under a
// closed policy enum with explicit partial-failure signaling, and deletes
// are confirmed by every tier before they count as done. Per-tier circuit
// breakers shield callers from cascading backend failures, and a periodic
// background scan demotes aged warm entries into cold storage.
//
// Assemble the standard backend stack (redis hot, sqlite warm, bolt cold)
// with Open, or wire custom tiers through New:
//
//	mem, err := agentmem.New(agentmem.Options{
//	    Config:  cfg,
//	    Hot:     hotredis.New(...),
//	    Warm:    warmsqlite.Open(...),
//	    Cold:    coldbolt.Open(...),
//	    Tracker: tracker,
//	    Logger:  zapadapter.ZapLogger{L: logger},
//	})
package agentmem
