package agentmem

import "fmt"

// WritePolicy selects which tiers a Set touches. Write legs run in
// hot→warm→cold order and the first selected tier is the primary: a
// primary failure fails the write, while a secondary failure only flips
// the partial flag.
//
// A closed enum, matched exhaustively: unknown values are rejected at the
// call site instead of silently ignored.
type WritePolicy int

const (
	// PolicyDefault lets placement rules pick: PII and profile-like data
	// write through hot+warm, short-lived data goes hot-only, oversized
	// non-PII payloads go cold-only.
	PolicyDefault WritePolicy = iota
	PolicyHotOnly
	PolicyWarmOnly
	PolicyColdOnly
	PolicyWriteThroughHotWarm
	PolicyWriteThroughAll
)

func (p WritePolicy) String() string {
	switch p {
	case PolicyDefault:
		return "default"
	case PolicyHotOnly:
		return "hot-only"
	case PolicyWarmOnly:
		return "warm-only"
	case PolicyColdOnly:
		return "cold-only"
	case PolicyWriteThroughHotWarm:
		return "write-through-hot-warm"
	case PolicyWriteThroughAll:
		return "write-through-all"
	default:
		return fmt.Sprintf("write-policy(%d)", int(p))
	}
}

// PromotionMode controls Warm→Hot (and Cold→Hot) promotion on read hits.
// Cold→Warm promotion is always gated by the access tracker threshold.
type PromotionMode int

const (
	// PromoteAlways copies every warm/cold hit up to the hot tier.
	PromoteAlways PromotionMode = iota
	// PromoteByThreshold copies up only once the key's access count
	// crosses the tracker threshold within its window.
	PromoteByThreshold
)
