package remote

import (
	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

// PositionedNode pairs a Node with the changelist position the remote (or
// our cache of it) reported it at.
type PositionedNode struct {
	Position uint64
	Node     Node
}

// PushDelta is what update_changelist_pushpull computes before a push:
// what we have that the remote doesn't (ToUpload), entries the remote
// used to have and we still do but it has since unrecorded
// (RemoteUnrecs, surfaced so the push can warn about resurrecting them),
// and entries the remote has that we've never seen (UnknownChanges,
// surfaced so a push can abort rather than silently diverging further).
//
// Grounded on original_source/atomic-remote/src/lib.rs's PushDelta and
// its to_remote_push/remote_unrecs helpers. Unlike the original, ToUpload
// here is never narrowed to a specific set of touched inodes/paths — the
// original's per-path push filter depends on its file-tree/inode
// machinery, which is out of scope for this port (spec Non-goals exclude
// a filesystem layer); a caller wanting partial pushes filters ToUpload
// itself before uploading.
type PushDelta struct {
	ToUpload       []Node
	RemoteUnrecs   []PositionedNode
	UnknownChanges []Node
}

// PullDelta is the pull-side analogue: everything the remote has, from
// the dichotomy point on, that isn't already applied to our channel.
type PullDelta struct {
	ToDownload []Node
}

// ComputePushDelta compares our cache's recollection of the remote
// (positions [dichotomy, cachedCount)) against theirsGeDichotomy — a
// fresh read of the remote's actual changelist from dichotomy onward —
// and our local channel's own log, producing the three PushDelta sets.
func ComputePushDelta(txn *pristine.Txn, tables *graph.Tables, ch *graph.Channel, cache *Cache, dichotomy uint64, theirsGeDichotomy []PositionedNode) (*PushDelta, error) {
	oursGeDichotomy, err := cachedRange(txn, cache, dichotomy)
	if err != nil {
		return nil, err
	}

	theirsSet := make(map[Node]bool, len(theirsGeDichotomy))
	for _, pn := range theirsGeDichotomy {
		theirsSet[pn.Node] = true
	}

	remoteUnrecs, err := computeRemoteUnrecs(txn, tables, ch, oursGeDichotomy, theirsSet)
	if err != nil {
		return nil, err
	}
	remoteUnrecsByHash := make(map[ids.Hash]bool, len(remoteUnrecs))
	for _, pn := range remoteUnrecs {
		remoteUnrecsByHash[pn.Node.Hash] = true
	}

	// Positions below dichotomy are the trusted prefix of our cached view
	// of the remote (the dichotomy search already confirmed the remote
	// still agrees with it); theirsGeDichotomy is the freshly re-fetched
	// tail. Together their states are everything we know the remote
	// already has.
	knownStates, err := cachedPrefixStates(txn, cache, dichotomy)
	if err != nil {
		return nil, err
	}
	for _, pn := range theirsGeDichotomy {
		knownStates[pn.Node.State] = true
	}

	toUpload, err := uploadSet(txn, tables, ch, knownStates, remoteUnrecsByHash, theirsSet)
	if err != nil {
		return nil, err
	}

	var unknown []Node
	for _, pn := range theirsGeDichotomy {
		known, err := nodeOnChannel(txn, tables, ch, pn.Node.Hash)
		if err != nil {
			return nil, err
		}
		if !known {
			unknown = append(unknown, pn.Node)
		}
	}

	return &PushDelta{ToUpload: toUpload, RemoteUnrecs: remoteUnrecs, UnknownChanges: unknown}, nil
}

// ComputePullDelta is the symmetric pull-side computation: every node the
// remote reports from the dichotomy point on that our channel hasn't
// already applied. "Already applied" is judged by hash alone
// (get_revchanges in the original) rather than full Node identity: the
// same change's recorded rolling state can legitimately differ between
// the two sides mid-convergence, depending on what else is interleaved
// on each channel, so comparing hash+state would misclassify an
// already-applied change as new.
func ComputePullDelta(txn *pristine.Txn, tables *graph.Tables, ch *graph.Channel, theirsGeDichotomy []PositionedNode) (*PullDelta, error) {
	var toDownload []Node
	for _, pn := range theirsGeDichotomy {
		known, err := nodeOnChannel(txn, tables, ch, pn.Node.Hash)
		if err != nil {
			return nil, err
		}
		if !known {
			toDownload = append(toDownload, pn.Node)
		}
	}
	return &PullDelta{ToDownload: toDownload}, nil
}

func cachedRange(txn *pristine.Txn, cache *Cache, from uint64) ([]PositionedNode, error) {
	count, err := cache.Count(txn)
	if err != nil {
		return nil, err
	}
	var out []PositionedNode
	for pos := from; pos < count; pos++ {
		n, ok, err := cache.At(txn, pos)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, PositionedNode{Position: pos, Node: n})
		}
	}
	return out, nil
}

// cachedPrefixStates collects the rolling states cached for the remote at
// positions [0, upTo) — the part of our cached view the dichotomy search
// left untouched, so still trusted as "the remote has this".
func cachedPrefixStates(txn *pristine.Txn, cache *Cache, upTo uint64) (map[ids.Merkle]bool, error) {
	out := map[ids.Merkle]bool{}
	for pos := uint64(0); pos < upTo; pos++ {
		n, ok, err := cache.At(txn, pos)
		if err != nil {
			return nil, err
		}
		if ok {
			out[n.State] = true
		}
	}
	return out, nil
}

// computeRemoteUnrecs reports every node we previously cached as being on
// the remote that the remote no longer reports, but that is still present
// on our own channel — the case where an unrecord happened upstream
// between our last sync and now (spec §4.6, grounded on remote_unrecs).
func computeRemoteUnrecs(txn *pristine.Txn, tables *graph.Tables, ch *graph.Channel, oursGeDichotomy []PositionedNode, theirsSet map[Node]bool) ([]PositionedNode, error) {
	var out []PositionedNode
	for _, pn := range oursGeDichotomy {
		if theirsSet[pn.Node] {
			continue
		}
		onChannel, err := nodeOnChannel(txn, tables, ch, pn.Node.Hash)
		if err != nil {
			return nil, err
		}
		if onChannel {
			out = append(out, pn)
		}
	}
	return out, nil
}

// uploadSet walks our local channel's log newest-first, exactly mirroring
// original_source/atomic-remote/src/lib.rs:451-465's to_remote_push loop:
// stop the first time we reach a change the remote already has recorded
// (its rolling state is in knownStates) unless we know the remote has
// since unrecorded that very change (remoteUnrecsByHash) — everything
// older than that point is assumed already uploaded. Changes the remote
// just re-reported at/after the dichotomy point (theirsSet) are excluded
// regardless, since uploading them again would be a no-op. The walk
// accumulates newest-first and is reversed at the end so ToUpload comes
// back oldest-first, matching the original's `.rev().collect()`.
func uploadSet(txn *pristine.Txn, tables *graph.Tables, ch *graph.Channel, knownStates map[ids.Merkle]bool, remoteUnrecsByHash map[ids.Hash]bool, theirsSet map[Node]bool) ([]Node, error) {
	n, err := ch.ApplyCounter(txn)
	if err != nil {
		return nil, err
	}

	var newestFirst []Node
	for pos := n; pos > 0; pos-- {
		entry, ok, err := ch.LogAt(txn, pos-1)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		nt, _, err := tables.NodeType.Get(txn, entry.Node)
		if err != nil {
			return nil, err
		}
		node := Node{Hash: entry.Hash, NodeType: nt, State: entry.Merkle}

		if !remoteUnrecsByHash[entry.Hash] && knownStates[entry.Merkle] {
			break
		}
		if !theirsSet[node] {
			newestFirst = append(newestFirst, node)
		}
	}

	out := make([]Node, len(newestFirst))
	for i, n := range newestFirst {
		out[len(newestFirst)-1-i] = n
	}
	return out, nil
}

func nodeOnChannel(txn *pristine.Txn, tables *graph.Tables, ch *graph.Channel, hash ids.Hash) (bool, error) {
	id, ok, err := tables.Internal.Get(txn, hash)
	if err != nil || !ok {
		return false, err
	}
	return ch.HasNode(txn, id)
}
