package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR stores values in CBOR (RFC 8949): binary-compact like msgpack but
// with an optional deterministic mode. The zero value is NOT ready to use;
// construct with NewCBOR or MustCBOR.
//
// Deterministic encoding yields byte-for-byte stable payloads, which keeps
// rewrites of an unchanged value identical across tiers (useful when
// payloads are hashed or diffed). Time values encode as RFC3339Nano.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR builds the encode/decode modes once, up front.
//   - deterministic: Core Deterministic Encoding (RFC 8949).
//   - otherwise: preferred unsorted options (smaller/faster defaults).
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	var eo cbor.EncOptions
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	} else {
		eo = cbor.PreferredUnsortedEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := (cbor.DecOptions{}).DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR is like NewCBOR but panics on error. For package-level
// variables in tests; handle the error in production wiring.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	c, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
