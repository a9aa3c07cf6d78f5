package agentmem

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/holidaypeak/agentmem/tier"
)

// Tier-level taxonomy, re-exported for callers that only import agentmem.
var (
	ErrInvalidTTL  = tier.ErrInvalidTTL
	ErrUnavailable = tier.ErrUnavailable
	ErrThrottled   = tier.ErrThrottled
)

var (
	// ErrCircuitOpen is returned when a tier's breaker is open: the call
	// failed fast and no backend IO was attempted.
	ErrCircuitOpen = errors.New("agentmem: circuit open")

	// ErrAllTiersUnavailable is returned by Get when every configured
	// tier's breaker was open, distinct from a genuine miss.
	ErrAllTiersUnavailable = errors.New("agentmem: all tiers unavailable")

	// ErrPIIRestricted is returned for writes that would place PII in the
	// cold tier as the only copy. Encryption is the caller's concern;
	// unencrypted PII never lands in cold storage.
	ErrPIIRestricted = errors.New("agentmem: pii not allowed in cold tier")
)

// PartialDeleteError reports which tiers failed to confirm a delete.
// The caller can retry just the named tiers; tiers absent from Failed
// confirmed deletion (or confirmed the key was already gone).
type PartialDeleteError struct {
	Key    string
	Failed map[string]error // tier name -> error
}

func (e *PartialDeleteError) Error() string {
	names := e.tiers()
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", n, e.Failed[n]))
	}
	return fmt.Sprintf("agentmem: delete %q incomplete: %s", e.Key, strings.Join(parts, "; "))
}

func (e *PartialDeleteError) Unwrap() []error {
	names := e.tiers()
	errs := make([]error, 0, len(names))
	for _, n := range names {
		errs = append(errs, e.Failed[n])
	}
	return errs
}

// Tiers returns the names of the tiers that failed, sorted.
func (e *PartialDeleteError) Tiers() []string { return e.tiers() }

func (e *PartialDeleteError) tiers() []string {
	names := make([]string, 0, len(e.Failed))
	for n := range e.Failed {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
