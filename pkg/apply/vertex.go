package apply

import (
	"github.com/castingclouds/atomic-go/pkg/change"
	"github.com/castingclouds/atomic-go/pkg/ids"
)

// putNewVertex resolves a NewVertex atom's Hash-addressed up/down contexts
// to graph vertices and registers the byte range it introduces.
//
// Simplification: the original splits an existing vertex in two when a
// context position falls strictly inside it, so a new vertex can be
// spliced into the middle of a line. This port's find_block only locates
// the containing vertex (graph.Channel.FindBlock); it never splits one.
// Every change this engine produces or accepts is expected to address
// whole vertices at their boundaries, which holds for every hunk kind this
// package actually constructs (spec Non-goals exclude line-level diffing;
// pkg/apply only ever receives whole-vertex atoms as a result). An up
// context must fall exactly on a vertex's End (FindBlockEnd); any other
// position is recorded as missing and fails with a BlockError. A down
// context that lands mid-vertex resolves to the whole containing vertex
// (FindBlock), which is not split.
func putNewVertex(txn *writeCtx, ws *workspace, changeID ids.NodeId, nv change.NewVertex) error {
	v := ids.Vertex{Change: changeID, Start: nv.Start, End: nv.End}
	if err := txn.ch.RegisterVertex(txn.w, v); err != nil {
		return err
	}
	ws.newVertices = append(ws.newVertices, v)
	ws.touch(v)

	for _, up := range nv.UpContext {
		anchor, err := resolveHashPosition(txn, ws, up, true)
		if err != nil {
			return err
		}
		ws.addInsert(anchor, v, nv.Flag, changeID)
	}
	for _, down := range nv.DownContext {
		anchor, err := resolveHashPosition(txn, ws, down, false)
		if err != nil {
			return err
		}
		ws.addInsert(v, anchor, nv.Flag, changeID)
	}
	return nil
}
