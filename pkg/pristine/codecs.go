package pristine

import (
	"encoding/binary"
	"fmt"
)

// Uint64Codec encodes a uint64 (or any type whose underlying type is
// uint64, via the generic constraint) as 8 big-endian bytes, so that
// unsigned numeric keys sort in numeric order — required for `changes`,
// `states`'s log positions, and the log-ordered `revchanges`/`tags`
// tables (spec §3.3).
func Uint64Codec[T ~uint64]() Codec[T] {
	return Codec[T]{
		Encode: func(v T) []byte {
			b := make([]byte, 8)
			binary.BigEndian.PutUint64(b, uint64(v))
			return b
		},
		Decode: func(b []byte) (T, error) {
			if len(b) != 8 {
				return 0, fmt.Errorf("pristine: uint64 key: want 8 bytes, got %d", len(b))
			}
			return T(binary.BigEndian.Uint64(b)), nil
		},
	}
}

// FixedCodec builds a Codec for a fixed-size byte-array type (e.g.
// ids.Hash, ids.Merkle) given its width in bytes.
func FixedCodec[T ~[32]byte]() Codec[T] {
	return Codec[T]{
		Encode: func(v T) []byte {
			b := make([]byte, len(v))
			copy(b, v[:])
			return b
		},
		Decode: func(b []byte) (T, error) {
			var v T
			if len(b) != len(v) {
				return v, fmt.Errorf("pristine: fixed key: want %d bytes, got %d", len(v), len(b))
			}
			copy(v[:], b)
			return v, nil
		},
	}
}

// StringCodec stores a Go string as UTF-8 bytes with no length prefix; only
// safe to use as the last component of a key, or as a whole-key codec.
var StringCodec = Codec[string]{
	Encode: func(s string) []byte { return []byte(s) },
	Decode: func(b []byte) (string, error) { return string(b), nil },
}
