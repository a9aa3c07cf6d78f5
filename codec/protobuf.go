package codec

import "google.golang.org/protobuf/proto"

// Protobuf stores generated proto messages in their wire form, for callers
// whose state types already live in .proto schemas. Decode needs a fresh
// concrete message to unmarshal into, which proto.Message alone cannot
// allocate, so the constructor is supplied explicitly.
type Protobuf[T proto.Message] struct {
	new func() T
}

// NewProtobuf builds a codec for T, e.g.
//
//	NewProtobuf(func() *pb.Profile { return &pb.Profile{} })
func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}
func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
