// Package record frames stored entries with the metadata the orchestrator
// needs back from any tier: the PII flag, the creation timestamp and the
// partition key. Tiers store the framed bytes verbatim; a frame that fails
// validation is deleted on read (self-heal) and treated as a miss.
package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const version byte = 1

const (
	flagPII byte = 1 << 0
)

var (
	ErrCorrupt = errors.New("record: corrupt entry")
	magic4     = [...]byte{'A', 'M', 'E', 'M'}
)

// Record is a stored entry plus its placement metadata.
type Record struct {
	PII          bool
	CreatedAt    time.Time
	PartitionKey string
	Payload      []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames r as:
//
//	magic(4) | ver(1) | flags(1) | created(u64 be, unix sec) |
//	pklen(u16 be) | partitionKey | vlen(u32 be) | payload
func Encode(r Record) []byte {
	if len(r.PartitionKey) > 0xFFFF {
		panic("record: partition key too long")
	}

	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 2 + len(r.PartitionKey) + 4 + len(r.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var flags byte
	if r.PII {
		flags |= flagPII
	}
	buf.WriteByte(flags)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(r.CreatedAt.Unix()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(r.PartitionKey)))
	buf.Write(u2[:])
	buf.WriteString(r.PartitionKey)

	binary.BigEndian.PutUint32(u4[:], uint32(len(r.Payload)))
	buf.Write(u4[:])
	buf.Write(r.Payload)

	return buf.Bytes()
}

// Decode parses a frame produced by Encode. The returned Payload aliases b.
// Trailing bytes after the payload are rejected as corruption.
func Decode(b []byte) (Record, error) {
	const hdr = 4 + 1 + 1 + 8 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return Record{}, ErrCorrupt
	}

	flags := b[5]
	off := 6

	created := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	pklen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if pklen > len(b)-off {
		return Record{}, ErrCorrupt
	}
	pk := b[off : off+pklen]
	off += pklen

	if off+4 > len(b) {
		return Record{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // overflow-safe; no trailing bytes
		return Record{}, ErrCorrupt
	}

	return Record{
		PII:          flags&flagPII != 0,
		CreatedAt:    time.Unix(created, 0).UTC(),
		PartitionKey: string(pk),
		Payload:      b[off : off+vlen],
	}, nil
}
