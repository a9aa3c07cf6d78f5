package codec

import "fmt"

// LimitCodec wraps another codec with a decode-time size guard. Payloads
// come back from tiers that may be shared with other workloads, so an
// oversized entry is rejected before the inner codec allocates for it.
// Encode is forwarded to Inner unchanged; MaxDecode <= 0 disables the
// guard.
type LimitCodec[V any] struct {
	// Inner is the wrapped codec. Must be set.
	Inner interface {
		Encode(V) ([]byte, error)
		Decode([]byte) (V, error)
	}
	// MaxDecode caps the accepted payload length in bytes.
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
