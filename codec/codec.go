// Package codec provides value codecs for the typed view of the memory
// store. A codec turns a caller's value into the opaque payload bytes the
// orchestrator frames and places across tiers; tiers never interpret the
// payload, so the codec choice is invisible to placement, promotion and
// demotion.
package codec

// Codec encodes/decodes values V to and from payload bytes.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
