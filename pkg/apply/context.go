package apply

import (
	"github.com/castingclouds/atomic-go/pkg/change"
	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

// writeCtx bundles the pristine-wide tables, the target channel, and the
// write transaction every apply helper in this package needs. Grouping
// these avoids threading three parameters through every call in
// register.go/vertex.go/edge.go/repair.go.
type writeCtx struct {
	w      *pristine.WriteTxn
	tables *graph.Tables
	ch     *graph.Channel
}

// resolveHashPosition turns a Hash-addressed position (as it appears in a
// change's atoms) into a channel vertex, looking up the referenced hash's
// NodeId and then locating the containing block. It returns ws.root's
// vertex unchanged when pos.Change is the zero hash, matching the
// convention that a zero change-reference means "the channel root" (spec
// §3.2).
func resolveHashPosition(txn *writeCtx, ws *workspace, pos change.HashPosition, byEnd bool) (ids.Vertex, error) {
	if pos.Change.IsZero() {
		return ws.root, nil
	}
	nodeID, ok, err := nodeIDOf(txn, pos.Change)
	if err != nil {
		return ids.Vertex{}, err
	}
	if !ok {
		ws.addMissing(ids.Position[ids.NodeId]{Pos: pos.Pos})
		return ids.Vertex{}, &DependencyMissingError{Hash: pos.Change}
	}
	nodePos := ids.Position[ids.NodeId]{Change: nodeID, Pos: pos.Pos}
	var v ids.Vertex
	if byEnd {
		v, err = txn.ch.FindBlockEnd(&txn.w.Txn, nodePos)
	} else {
		v, err = txn.ch.FindBlock(&txn.w.Txn, nodePos)
	}
	if err != nil {
		if _, isBlockErr := err.(*graph.BlockError); isBlockErr {
			ws.addMissing(nodePos)
		}
		return ids.Vertex{}, err
	}
	return v, nil
}

// resolveHashVertex turns a fully Hash-addressed vertex reference (the
// explicit end of a NewEdge, spec §4.3 atom shapes) into the graph's
// NodeId-addressed ids.Vertex, registering the referenced hash's position
// only by lookup — a HashVertex always names an already-registered change,
// never the change currently being applied's own unregistered positions.
func resolveHashVertex(txn *writeCtx, hv change.HashVertex) (ids.Vertex, error) {
	if hv.Change.IsZero() {
		return ids.Vertex{}, nil
	}
	nodeID, ok, err := nodeIDOf(txn, hv.Change)
	if err != nil {
		return ids.Vertex{}, err
	}
	if !ok {
		return ids.Vertex{}, &DependencyMissingError{Hash: hv.Change}
	}
	return ids.Vertex{Change: nodeID, Start: hv.Start, End: hv.End}, nil
}
