package change

import (
	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
)

// HashPosition is a byte position within a change addressed by Hash rather
// than NodeId — the form every atom uses before its referenced changes are
// registered in a pristine (spec §4.3's atoms are defined over
// Position<Change> where Change is a Hash on the wire).
type HashPosition = ids.Position[ids.Hash]

// HashVertex is a byte range addressed by Hash, the wire/change-file form
// of ids.Vertex (which is NodeId-addressed, valid only inside one
// pristine).
type HashVertex struct {
	Change ids.Hash
	Start  ids.ChangePosition
	End    ids.ChangePosition
}

// AtomKind distinguishes the two atom shapes spec §4.3 names.
type AtomKind uint8

const (
	AtomNewVertex AtomKind = iota
	AtomEdgeMap
)

// Atom is a tagged union of NewVertex and EdgeMap, kept as a flat struct
// (rather than an interface) so canonical encoding stays a single
// straightforward switch instead of a type registry.
type Atom struct {
	Kind     AtomKind
	Vertex   NewVertex // valid iff Kind == AtomNewVertex
	EdgeMap  EdgeMap   // valid iff Kind == AtomEdgeMap
}

// NewVertex inserts a vertex with its up/down context (spec §4.3).
type NewVertex struct {
	UpContext   []HashPosition
	DownContext []HashPosition
	Flag        graph.EdgeFlags
	Start       ids.ChangePosition
	End         ids.ChangePosition
	Inode       HashPosition
}

// EdgeMap adds or removes directed edges touching one inode (spec §4.3).
type EdgeMap struct {
	Edges []NewEdge
	Inode HashPosition
}

// NewEdge records one edge modification. previous/flag let application be
// inverted: applying the reverse of a NewEdge (swap previous and flag)
// undoes it exactly (spec §4.3 "so application is invertible").
type NewEdge struct {
	Previous     graph.EdgeFlags
	Flag         graph.EdgeFlags
	From         HashPosition
	To           HashVertex
	IntroducedBy ids.Hash
}

// Reverse returns the NewEdge that undoes e, attributing the reversal to
// introducedBy (the change performing the undo).
func (e NewEdge) Reverse(introducedBy ids.Hash) NewEdge {
	return NewEdge{
		Previous:     e.Flag,
		Flag:         e.Previous,
		From:         e.From,
		To:           e.To,
		IntroducedBy: introducedBy,
	}
}
