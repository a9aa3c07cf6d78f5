package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack stores values in MessagePack: the compact choice for entries
// whose stored size matters, since payload length feeds the large-value
// placement cutoff. Field names follow `msgpack` struct tags, which differ
// from `json` tags; tag both if a value may move between codecs.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	return msgpack.Marshal(v)
}
func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
