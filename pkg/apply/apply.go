package apply

import (
	"errors"

	"github.com/castingclouds/atomic-go/pkg/change"
	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

// ApplyNodeRec applies root and every dependency it transitively needs
// that is not already on the channel, via an explicit two-push DFS stack
// rather than language recursion (spec §4.4 "Recursive apply"): a hash is
// pushed once to discover its dependencies, then pushed again — after all
// of its dependencies have had their turn — to actually apply it. A
// visited set keeps a hash shared by two dependents from being expanded
// twice.
func ApplyNodeRec(w *pristine.WriteTxn, tables *graph.Tables, ch *graph.Channel, store ChangeStore, root ids.Hash) error {
	txn := &writeCtx{w: w, tables: tables, ch: ch}

	type frame struct {
		hash  ids.Hash
		apply bool
	}
	stack := []frame{{hash: root}}
	visited := map[ids.Hash]bool{}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.apply {
			if _, _, err := applyNodeByHash(txn, store, top.hash); err != nil {
				return err
			}
			continue
		}

		if visited[top.hash] {
			continue
		}
		visited[top.hash] = true

		onChannel, err := isAppliedToChannel(txn, top.hash)
		if err != nil {
			return err
		}
		if onChannel {
			continue
		}

		resolved, err := resolveNode(store, top.hash)
		if err != nil {
			return err
		}
		stack = append(stack, frame{hash: top.hash, apply: true})
		for _, dep := range resolved.dependencies {
			stack = append(stack, frame{hash: dep})
		}
	}
	return nil
}

// ApplyNodeWS applies a single hash (a change or a tag, spec §4.4's
// "recursive apply" distinguishes by node_type, defaulting to Change when
// unregistered) to the channel, assuming every dependency is already
// present. This is the non-recursive half of ApplyNodeRec, exported
// separately for callers that apply one node whose dependencies are
// already on the channel (cmd/atomic's `tag create` applies a freshly
// created tag this way).
//
// It returns (position, new_merkle): the channel's apply counter before
// the call, and the resulting channel state (spec §4.4 step 7).
func ApplyNodeWS(w *pristine.WriteTxn, tables *graph.Tables, ch *graph.Channel, store ChangeStore, hash ids.Hash) (uint64, ids.Merkle, error) {
	txn := &writeCtx{w: w, tables: tables, ch: ch}
	return applyNodeByHash(txn, store, hash)
}

func applyNodeByHash(txn *writeCtx, store ChangeStore, hash ids.Hash) (uint64, ids.Merkle, error) {
	c, err := store.GetChange(hash)
	if err == nil {
		return applyChangeToChannel(txn, hash, c)
	}
	if !errors.Is(err, ErrNoSuchChange) {
		return 0, ids.NoMerkle, err
	}

	tag, err := store.GetTag(hash)
	if err != nil {
		if errors.Is(err, ErrNoSuchTag) {
			return 0, ids.NoMerkle, &ErrNotFound{Hash: hash}
		}
		return 0, ids.NoMerkle, err
	}
	return applyTagToChannel(txn, hash, tag)
}

// applyChangeToChannel is ApplyNodeWS's change path, operating on an
// already-resolved *change.Change (spec §4.4 steps 1-7).
func applyChangeToChannel(txn *writeCtx, hash ids.Hash, c *change.Change) (uint64, ids.Merkle, error) {
	onChannel, err := isAppliedToChannel(txn, hash)
	if err != nil {
		return 0, ids.NoMerkle, err
	}
	if onChannel {
		return 0, ids.NoMerkle, &ChangeAlreadyOnChannelError{Hash: hash}
	}

	for _, dep := range c.Hashed.Dependencies {
		depID, ok, err := txn.tables.Internal.Get(&txn.w.Txn, dep)
		if err != nil {
			return 0, ids.NoMerkle, err
		}
		if !ok {
			return 0, ids.NoMerkle, &DependencyMissingError{Hash: dep}
		}
		applied, err := txn.ch.HasNode(&txn.w.Txn, depID)
		if err != nil {
			return 0, ids.NoMerkle, err
		}
		if !applied {
			return 0, ids.NoMerkle, &DependencyMissingError{Hash: dep}
		}
	}

	changeID, err := registerNode(txn, hash, graph.NodeTypeChange, c.Hashed.Dependencies)
	if err != nil {
		return 0, ids.NoMerkle, err
	}

	ws := newWorkspace(channelRoot(txn.ch))

	for _, hunk := range c.Hashed.Changes {
		for _, atom := range hunk.Atoms {
			switch atom.Kind {
			case change.AtomNewVertex:
				if err := putNewVertex(txn, ws, changeID, atom.Vertex); err != nil {
					return 0, ids.NoMerkle, err
				}
			case change.AtomEdgeMap:
				for _, e := range atom.EdgeMap.Edges {
					if err := putNewEdge(txn, ws, changeID, e); err != nil {
						return 0, ids.NoMerkle, err
					}
				}
			}
		}
	}

	if len(ws.missing) > 0 {
		return 0, ids.NoMerkle, &InvalidChangeError{Reason: "change references positions absent from the channel's graph"}
	}

	// Two-phase mutation (spec §4.4): every insert lands before any
	// delete, so a vertex a later atom references is always already
	// wired in, regardless of the order hunks happened to list them.
	for _, pe := range ws.inserts {
		if err := txn.ch.PutGraphWithRev(txn.w, pe.from, pe.to, pe.flags, pe.introducedBy); err != nil {
			return 0, ids.NoMerkle, err
		}
	}
	for _, pe := range ws.deletes {
		if err := txn.ch.DelGraphWithRev(txn.w, pe.from, pe.to, pe.flags, pe.introducedBy); err != nil {
			return 0, ids.NoMerkle, err
		}
	}

	if err := cleanObsoletePseudoEdges(txn, ws); err != nil {
		return 0, ids.NoMerkle, err
	}
	if err := repairZombies(txn, ws); err != nil {
		return 0, ids.NoMerkle, err
	}
	if err := repairCyclicPaths(txn, ws); err != nil {
		return 0, ids.NoMerkle, err
	}

	current, err := txn.ch.CurrentState(&txn.w.Txn)
	if err != nil {
		return 0, ids.NoMerkle, err
	}
	newState := current.Combine(hash)
	position, err := txn.ch.RecordApplied(txn.w, changeID, hash, newState, true)
	if err != nil {
		return 0, ids.NoMerkle, err
	}
	return position, newState, nil
}

// applyTagToChannel is ApplyNodeWS's tag path, operating on an
// already-resolved *TagRecord (spec §4.4 step 6, §4.5 "Virtual changes").
//
// A tag is recorded into `changes`/`revchanges` exactly like a Change (so
// ChangeAlreadyOnChannel/TagAlreadyOnChannel detection and dependency
// resolution both work uniformly by NodeId) but, per spec, never perturbs
// the Merkle and never opens a new `states` row — RecordApplied is called
// with recordState=false for this reason. The `tags` row it additionally
// writes shares that same apply-counter position (spec §4.4 step 6:
// "writes (position, state) into the channel's tags table").
func applyTagToChannel(txn *writeCtx, hash ids.Hash, tag *TagRecord) (uint64, ids.Merkle, error) {
	onChannel, err := isAppliedToChannel(txn, hash)
	if err != nil {
		return 0, ids.NoMerkle, err
	}
	if onChannel {
		return 0, ids.NoMerkle, &TagAlreadyOnChannelError{Hash: hash}
	}

	current, err := txn.ch.CurrentState(&txn.w.Txn)
	if err != nil {
		return 0, ids.NoMerkle, err
	}
	if current != tag.State {
		return 0, ids.NoMerkle, &TagStateMismatchError{TagHash: hash, ExpectedState: tag.State, ActualState: current}
	}

	tagID, err := registerNode(txn, hash, graph.NodeTypeTag, tag.ConsolidatedChanges)
	if err != nil {
		return 0, ids.NoMerkle, err
	}
	position, err := txn.ch.RecordApplied(txn.w, tagID, hash, current, false)
	if err != nil {
		return 0, ids.NoMerkle, err
	}
	if err := txn.ch.RecordTag(txn.w, position, current); err != nil {
		return 0, ids.NoMerkle, err
	}
	return position, current, nil
}

func isAppliedToChannel(txn *writeCtx, hash ids.Hash) (bool, error) {
	id, ok, err := txn.tables.Internal.Get(&txn.w.Txn, hash)
	if err != nil || !ok {
		return false, err
	}
	return txn.ch.HasNode(&txn.w.Txn, id)
}

// channelRoot is the sentinel vertex every top-level vertex in a channel
// ultimately descends from (spec §3.2): NodeId 0 (ids.RootNodeId), the
// degenerate zero-length range [0, 0).
func channelRoot(ch *graph.Channel) ids.Vertex {
	_ = ch
	return ids.Vertex{Change: ids.RootNodeId, Start: 0, End: 0}
}
