package agentmem

import (
	"context"

	"github.com/holidaypeak/agentmem/codec"
)

// Typed marries the byte-oriented orchestrator with a codec so callers can
// store structured values. Tiers still only ever see opaque bytes.
type Typed[V any] struct {
	mem   Memory
	codec codec.Codec[V]
}

// NewTyped wraps mem with c. The wrapper does not own mem; close the
// underlying Memory when done.
func NewTyped[V any](mem Memory, c codec.Codec[V]) Typed[V] {
	return Typed[V]{mem: mem, codec: c}
}

func (t Typed[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, ok, err := t.mem.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := t.codec.Decode(raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (t Typed[V]) Set(ctx context.Context, key string, value V, opts SetOptions) (bool, error) {
	raw, err := t.codec.Encode(value)
	if err != nil {
		return false, err
	}
	return t.mem.Set(ctx, key, raw, opts)
}

func (t Typed[V]) Delete(ctx context.Context, key string) error {
	return t.mem.Delete(ctx, key)
}
