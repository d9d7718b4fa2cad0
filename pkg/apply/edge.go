package apply

import (
	"github.com/castingclouds/atomic-go/pkg/change"
	"github.com/castingclouds/atomic-go/pkg/ids"
)

// putNewEdge resolves a NewEdge atom's Hash-addressed endpoints to graph
// vertices and schedules the corresponding graph mutation. A non-zero
// Previous records the flag combination this edge replaces (e.g. turning a
// live edge DELETED): that half is scheduled as a delete, and a non-zero
// Flag is scheduled as an insert, so a "replace" edge produces both a
// delete and an insert against the same endpoints (spec §4.4 "two-phase
// graph mutation": every insert, including the insert half of a replace,
// happens before any delete).
func putNewEdge(txn *writeCtx, ws *workspace, changeID ids.NodeId, e change.NewEdge) error {
	from, err := resolveHashPosition(txn, ws, e.From, false)
	if err != nil {
		return err
	}
	to, err := resolveHashVertex(txn, e.To)
	if err != nil {
		return err
	}

	introducedBy := changeID
	if !e.IntroducedBy.IsZero() {
		id, ok, err := nodeIDOf(txn, e.IntroducedBy)
		if err != nil {
			return err
		}
		if !ok {
			return &DependencyMissingError{Hash: e.IntroducedBy}
		}
		introducedBy = id
	}

	if e.Flag != 0 {
		ws.addInsert(from, to, e.Flag, introducedBy)
	}
	if e.Previous != 0 {
		ws.addDelete(from, to, e.Previous, introducedBy)
	}
	return nil
}
