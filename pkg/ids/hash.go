// Package ids defines the identifier types shared by every component of the
// repair-graph engine: content hashes, channel-state merkles, the compact
// internal node identifiers the pristine assigns on registration, remote
// nonces, and the byte-range positions that address a change's content.
//
// None of these types touch storage — Hash and Merkle are opaque 32-byte
// digests. The hashing itself lives in merkle.go: HashBytes, which
// pkg/change and pkg/tag apply to canonical encodings, and Merkle.Combine,
// which folds applied hashes into the rolling channel-state hash.
package ids

import (
	"encoding/base32"
	"fmt"
)

// hashSize is the digest width in bytes for both Hash and Merkle: 256 bits,
// per spec §3.1.
const hashSize = 32

var base32Enc = base32.StdEncoding.WithPadding(base32.NoPadding)

// Hash is a content identifier over a change's canonical bytes. The zero
// value is NONE: "no change".
type Hash [hashSize]byte

// NoHash is the zero Hash, meaning "no change" wherever a Hash field is
// optional (e.g. a change with no predecessor).
var NoHash Hash

// IsZero reports whether h is the NONE hash.
func (h Hash) IsZero() bool { return h == NoHash }

// String renders h in its stable base32 textual form.
func (h Hash) String() string { return base32Enc.EncodeToString(h[:]) }

// ParseHash decodes the base32 textual form produced by Hash.String.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := base32Enc.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("ids: parsing hash %q: %w", s, err)
	}
	if len(b) != hashSize {
		return h, fmt.Errorf("ids: hash %q decodes to %d bytes, want %d", s, len(b), hashSize)
	}
	copy(h[:], b)
	return h, nil
}

// Merkle is a channel state: the cumulative, order-sensitive-up-to-commutation
// rolling hash of every change applied to a channel.
type Merkle [hashSize]byte

// NoMerkle is the empty-channel state (the initial Merkle of a channel with
// no changes applied).
var NoMerkle Merkle

// IsZero reports whether m is the empty-channel state.
func (m Merkle) IsZero() bool { return m == NoMerkle }

// String renders m in its stable base32 textual form.
func (m Merkle) String() string { return base32Enc.EncodeToString(m[:]) }

// ParseMerkle decodes the base32 textual form produced by Merkle.String.
func ParseMerkle(s string) (Merkle, error) {
	var m Merkle
	b, err := base32Enc.DecodeString(s)
	if err != nil {
		return m, fmt.Errorf("ids: parsing merkle %q: %w", s, err)
	}
	if len(b) != hashSize {
		return m, fmt.Errorf("ids: merkle %q decodes to %d bytes, want %d", s, len(b), hashSize)
	}
	copy(m[:], b)
	return m, nil
}

// Combine folds the next applied change's hash into the rolling channel
// state, producing the new Merkle. It is the one place the "rolling hash"
// in spec §3.1 is actually computed; pkg/graph calls it once per applied
// Change (never per Tag — tags do not enter the Merkle, spec §4.4).
func (m Merkle) Combine(h Hash) Merkle {
	return merkleCombine(m, h)
}

// NodeId is the compact internal identifier the pristine assigns the first
// time a change or tag is registered (spec §3.1, §3.5). It is never
// serialized over the wire; RemoteId and Hash are the only identifiers
// remotes exchange.
type NodeId uint64

// RootNodeId is the reserved identifier used as the "introduced_by" value
// of a PSEUDO edge, which carries no change-introduction identity
// (spec §3.2).
const RootNodeId NodeId = 0

// RemoteId is a nonce identifying a cached remote view (spec §3.1, §3.4).
type RemoteId uint64

// ChangePosition is an offset into a change's byte-addressable content
// range.
type ChangePosition uint64

// Vertex identifies a contiguous byte range [Start, End) introduced by the
// change registered under NodeId Change.
type Vertex struct {
	Change NodeId
	Start  ChangePosition
	End    ChangePosition
}

// Position is a reference to a byte position within a change, parameterized
// by how the change itself is identified: Hash for external (wire/on-disk)
// references, NodeId once the change has been registered in a pristine.
type Position[T Hash | NodeId] struct {
	Change T
	Pos    ChangePosition
}

// Inode is a stable identifier for a filesystem path, decoupled from
// whichever change first introduced that path (spec §3.1).
type Inode NodeId
