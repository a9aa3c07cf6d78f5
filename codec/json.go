package codec

import "encoding/json"

// JSONCodec stores values as JSON: the default for profile-like structured
// state. Human-readable in tier dumps and tolerant of fields added across
// versions.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSONCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
