// Package graph implements the repair graph: the directed multigraph of
// content vertices and flagged edges that realizes the patch calculus for
// one channel (spec §3.2, §4.2), plus the per-channel and pristine-wide
// tables that index it (spec §3.3, §3.4).
//
// Grounded on pkg/storage/types.go's Node/Edge property-graph types from
// the teacher (the strongly-typed ID wrapper pattern is kept; the fields
// are not — this graph has no properties or labels, only flagged edges
// between byte-range vertices) and on original_source's description of the
// flag bitset.
package graph

import (
	"fmt"

	"github.com/castingclouds/atomic-go/pkg/ids"
)

// EdgeFlags is the bitset carried by every edge. Spec §3.2 fixes the flag
// set to exactly these five bits.
type EdgeFlags uint8

const (
	// FlagBlock marks an edge whose target is a retained anti-tombstone
	// context block rather than live content.
	FlagBlock EdgeFlags = 1 << iota
	// FlagFolder distinguishes a structural (tree) edge from a content
	// edge. Folder and content edges never mix on the same edge.
	FlagFolder
	// FlagDeleted marks a deleted vertex retained for context (combined
	// with FlagBlock per spec §3.2's "DELETED | BLOCK" note).
	FlagDeleted
	// FlagParent marks the reverse mirror of a non-PARENT edge. Every
	// non-PARENT edge has exactly one PARENT counterpart and vice versa.
	FlagParent
	// FlagPseudo marks a reconnection edge synthesized by a repair
	// procedure; it carries no change-introduction identity.
	FlagPseudo
)

// String renders a human-readable flag combination, e.g. "FOLDER|PSEUDO".
func (f EdgeFlags) String() string {
	if f == 0 {
		return "-"
	}
	names := []struct {
		bit  EdgeFlags
		name string
	}{
		{FlagBlock, "BLOCK"},
		{FlagFolder, "FOLDER"},
		{FlagDeleted, "DELETED"},
		{FlagParent, "PARENT"},
		{FlagPseudo, "PSEUDO"},
	}
	out := ""
	for _, n := range names {
		if f&n.bit != 0 {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	return out
}

// Has reports whether every bit in mask is set in f.
func (f EdgeFlags) Has(mask EdgeFlags) bool { return f&mask == mask }

// Edge is one directed edge of the repair graph, stored as the value half
// of the `graph` multimap (key: source Vertex, per spec §3.3).
type Edge struct {
	// Dest is the edge's destination vertex.
	Dest ids.Vertex
	// Flags carries the bitset of spec §3.2.
	Flags EdgeFlags
	// IntroducedBy is the NodeId of the change that introduced this edge,
	// or ids.RootNodeId for PSEUDO edges (spec §3.2).
	IntroducedBy ids.NodeId
}

// encode serializes an Edge as Flags(1) || Dest.Change(8) || Dest.Start(8)
// || Dest.End(8) || IntroducedBy(8), in that order, so that lexicographic
// byte order sorts edges the way spec §4.2 requires: "primarily by source
// vertex [the table key], then by flag, then by destination."
func (e Edge) encode() []byte {
	b := make([]byte, 1+8+8+8+8)
	b[0] = byte(e.Flags)
	putU64(b[1:9], uint64(e.Dest.Change))
	putU64(b[9:17], uint64(e.Dest.Start))
	putU64(b[17:25], uint64(e.Dest.End))
	putU64(b[25:33], uint64(e.IntroducedBy))
	return b
}

func decodeEdge(b []byte) (Edge, error) {
	if len(b) != 33 {
		return Edge{}, fmt.Errorf("graph: edge encodes to 33 bytes, got %d", len(b))
	}
	return Edge{
		Flags: EdgeFlags(b[0]),
		Dest: ids.Vertex{
			Change: ids.NodeId(getU64(b[1:9])),
			Start:  ids.ChangePosition(getU64(b[9:17])),
			End:    ids.ChangePosition(getU64(b[17:25])),
		},
		IntroducedBy: ids.NodeId(getU64(b[25:33])),
	}, nil
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v)
		v >>= 8
	}
}

func getU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// vertexKey encodes a Vertex as a fixed 24-byte big-endian key:
// Change(8) || Start(8) || End(8).
func vertexKey(v ids.Vertex) []byte {
	b := make([]byte, 24)
	putU64(b[0:8], uint64(v.Change))
	putU64(b[8:16], uint64(v.Start))
	putU64(b[16:24], uint64(v.End))
	return b
}

func decodeVertexKey(b []byte) (ids.Vertex, error) {
	if len(b) != 24 {
		return ids.Vertex{}, fmt.Errorf("graph: vertex key must be 24 bytes, got %d", len(b))
	}
	return ids.Vertex{
		Change: ids.NodeId(getU64(b[0:8])),
		Start:  ids.ChangePosition(getU64(b[8:16])),
		End:    ids.ChangePosition(getU64(b[16:24])),
	}, nil
}
