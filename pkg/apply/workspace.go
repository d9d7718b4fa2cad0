package apply

import (
	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
)

// pendingEdge is one half-described graph mutation collected while walking
// a change's atoms. Inserts and deletes are kept in separate slices so
// applyChangeToChannel can run the two-phase mutation spec §4.4 requires:
// every insert (and every non-DELETED edge) lands before any deletion, so a
// vertex a later atom references is always already registered.
type pendingEdge struct {
	from, to     ids.Vertex
	flags        graph.EdgeFlags
	introducedBy ids.NodeId
}

// workspace is the scratch bookkeeping threaded through a single
// applyChangeToChannel call, the Go analogue of the original's Workspace
// struct. Unlike the original it carries no interval-splitting state
// (up_context/down_context mid-vertex resolution): this port's ids.Vertex
// model addresses whole byte ranges only, so context resolution here is a
// find_block lookup rather than a split (see vertex.go).
type workspace struct {
	// root is this channel's designated root vertex: the sentinel ancestor
	// every top-level vertex ultimately descends from (spec §3.2).
	root ids.Vertex

	inserts []pendingEdge
	deletes []pendingEdge

	// newVertices records every vertex registered while processing this
	// change's atoms, in order. Context resolution does not read it: a
	// HashPosition naming the change being applied itself is resolved
	// through the Internal and Vertices tables like any other.
	newVertices []ids.Vertex

	// missing collects positions that a context referenced but that
	// find_block could not resolve (spec §4.4 "Missing-context
	// collection"). A non-empty missing list after processing every atom
	// means the change is invalid against the channel's current graph.
	missing []ids.Position[ids.NodeId]

	// touched accumulates every vertex this change's atoms mention, an
	// input to the post-mutation repair passes (repair.go) which only need
	// to re-examine vertices actually touched by this application rather
	// than the whole graph.
	touched map[ids.Vertex]bool
}

func newWorkspace(root ids.Vertex) *workspace {
	return &workspace{root: root, touched: map[ids.Vertex]bool{}}
}

func (w *workspace) touch(v ids.Vertex) { w.touched[v] = true }

func (w *workspace) addInsert(from, to ids.Vertex, flags graph.EdgeFlags, introducedBy ids.NodeId) {
	w.inserts = append(w.inserts, pendingEdge{from: from, to: to, flags: flags, introducedBy: introducedBy})
	w.touch(from)
	w.touch(to)
}

func (w *workspace) addDelete(from, to ids.Vertex, flags graph.EdgeFlags, introducedBy ids.NodeId) {
	w.deletes = append(w.deletes, pendingEdge{from: from, to: to, flags: flags, introducedBy: introducedBy})
	w.touch(from)
	w.touch(to)
}

func (w *workspace) addMissing(pos ids.Position[ids.NodeId]) {
	w.missing = append(w.missing, pos)
}
