package remote

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

func openTestFixture(t *testing.T) (*pristine.Pristine, *graph.Tables, *graph.Channel, *Cache) {
	t.Helper()
	p, err := pristine.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, p.Close()) })
	gt := graph.NewTables()
	ch := graph.Open("main", gt)
	cache := NewCache(NewTables(), ids.RemoteId(1))
	return p, gt, ch, cache
}

// applyChange registers a leaf change node directly against the channel,
// mirroring what pkg/apply's applyChangeToChannel does for the bookkeeping
// tables this package reads (NodeType/Internal/RevChanges), without
// pulling in a full change/hunk graph irrelevant to this package's tests.
func applyChange(t *testing.T, txn *pristine.WriteTxn, tables *graph.Tables, ch *graph.Channel, node ids.NodeId, hash ids.Hash) ids.Merkle {
	t.Helper()
	require.NoError(t, tables.Internal.Put(txn, hash, node))
	require.NoError(t, tables.External.Put(txn, node, hash))
	current, err := ch.CurrentState(&txn.Txn)
	require.NoError(t, err)
	newState := current.Combine(hash)
	_, err = ch.RecordApplied(txn, node, hash, newState, true)
	require.NoError(t, err)
	return newState
}

func TestDichotomyPointReturnsZeroWhenCacheEmpty(t *testing.T) {
	p, _, _, cache := openTestFixture(t)
	require.NoError(t, p.View(func(txn *pristine.Txn) error {
		point, err := DichotomyPoint(txn, cache, func(uint64) (Node, bool, error) { return Node{}, false, nil })
		require.NoError(t, err)
		require.Equal(t, uint64(0), point)
		return nil
	}))
}

func TestDichotomyPointAgreesOnUnchangedCache(t *testing.T) {
	p, _, _, cache := openTestFixture(t)
	h1 := ids.HashBytes([]byte("r1"))
	h2 := ids.HashBytes([]byte("r2"))
	n1 := ChangeNode(h1, ids.NoMerkle.Combine(h1))
	n2 := ChangeNode(h2, ids.NoMerkle.Combine(h1).Combine(h2))

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		return cache.Update(txn, 0, []Node{n1, n2})
	}))

	remoteStillThere := map[uint64]Node{0: n1, 1: n2}
	require.NoError(t, p.View(func(txn *pristine.Txn) error {
		point, err := DichotomyPoint(txn, cache, func(pos uint64) (Node, bool, error) {
			n, ok := remoteStillThere[pos]
			return n, ok, nil
		})
		require.NoError(t, err)
		require.Equal(t, uint64(2), point, "remote unchanged: the whole cached range is trusted")
		return nil
	}))
}

func TestDichotomyPointNarrowsToLastAgreement(t *testing.T) {
	p, _, _, cache := openTestFixture(t)
	h1 := ids.HashBytes([]byte("r1"))
	h2 := ids.HashBytes([]byte("r2"))
	h3 := ids.HashBytes([]byte("r3"))
	n1 := ChangeNode(h1, ids.NoMerkle.Combine(h1))
	n2 := ChangeNode(h2, ids.NoMerkle.Combine(h1).Combine(h2))
	n3 := ChangeNode(h3, ids.NoMerkle.Combine(h1).Combine(h2).Combine(h3))

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		return cache.Update(txn, 0, []Node{n1, n2, n3})
	}))

	// The remote has unrecorded position 2 (n3) since we last looked;
	// positions 0 and 1 are still exactly as cached.
	remoteNow := map[uint64]Node{0: n1, 1: n2}
	require.NoError(t, p.View(func(txn *pristine.Txn) error {
		point, err := DichotomyPoint(txn, cache, func(pos uint64) (Node, bool, error) {
			n, ok := remoteNow[pos]
			return n, ok, nil
		})
		require.NoError(t, err)
		require.Equal(t, uint64(2), point)
		return nil
	}))
}

func TestComputePushDeltaIdentifiesUploadAndUnknown(t *testing.T) {
	p, tables, ch, cache := openTestFixture(t)
	hLocalOnly := ids.HashBytes([]byte("local-only"))
	hShared := ids.HashBytes([]byte("shared"))
	hRemoteOnly := ids.HashBytes([]byte("remote-only"))

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		applyChange(t, txn, tables, ch, ids.NodeId(1), hShared)
		applyChange(t, txn, tables, ch, ids.NodeId(2), hLocalOnly)
		return nil
	}))

	sharedState := ids.NoMerkle.Combine(hShared)
	theirs := []PositionedNode{
		{Position: 0, Node: ChangeNode(hShared, sharedState)},
		{Position: 1, Node: ChangeNode(hRemoteOnly, sharedState.Combine(hRemoteOnly))},
	}

	require.NoError(t, p.View(func(txn *pristine.Txn) error {
		delta, err := ComputePushDelta(txn, tables, ch, cache, 0, theirs)
		require.NoError(t, err)

		require.Len(t, delta.ToUpload, 1)
		require.Equal(t, hLocalOnly, delta.ToUpload[0].Hash)

		require.Len(t, delta.UnknownChanges, 1)
		require.Equal(t, hRemoteOnly, delta.UnknownChanges[0].Hash)

		require.Empty(t, delta.RemoteUnrecs, "nothing was cached as remote's before the dichotomy point in this test")
		return nil
	}))
}

func TestComputePushDeltaFlagsRemoteUnrecs(t *testing.T) {
	p, tables, ch, cache := openTestFixture(t)
	hStillLocal := ids.HashBytes([]byte("still-local"))

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		applyChange(t, txn, tables, ch, ids.NodeId(1), hStillLocal)
		return nil
	}))

	cachedState := ids.NoMerkle.Combine(hStillLocal)
	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		return cache.Update(txn, 0, []Node{ChangeNode(hStillLocal, cachedState)})
	}))

	// The remote no longer reports hStillLocal at all (it was unrecorded
	// upstream), but we still have it on our channel.
	require.NoError(t, p.View(func(txn *pristine.Txn) error {
		delta, err := ComputePushDelta(txn, tables, ch, cache, 0, nil)
		require.NoError(t, err)
		require.Len(t, delta.RemoteUnrecs, 1)
		require.Equal(t, hStillLocal, delta.RemoteUnrecs[0].Node.Hash)
		require.Empty(t, delta.UnknownChanges)
		return nil
	}))
}

// TestComputePushDeltaRespectsDichotomyBelowWhichNothingReuploads
// reproduces spec §8.4 S6: five changes (C1..C5) were already fully
// synced with the remote and are still mirrored in our cache, a sixth
// local-only change (C7) has since been applied, and the remote itself
// has unrecorded C5 and applied an unrelated C6 at the same position.
// With dichotomy=4 (positions 0..3 still trusted), only C5 and C7 should
// be uploaded — the trusted prefix must never be re-walked.
func TestComputePushDeltaRespectsDichotomyBelowWhichNothingReuploads(t *testing.T) {
	p, tables, ch, cache := openTestFixture(t)

	h1 := ids.HashBytes([]byte("c1"))
	h2 := ids.HashBytes([]byte("c2"))
	h3 := ids.HashBytes([]byte("c3"))
	h4 := ids.HashBytes([]byte("c4"))
	h5 := ids.HashBytes([]byte("c5"))
	h6 := ids.HashBytes([]byte("c6"))
	h7 := ids.HashBytes([]byte("c7"))

	var s1, s2, s3, s4, s5 ids.Merkle
	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		s1 = applyChange(t, txn, tables, ch, ids.NodeId(1), h1)
		s2 = applyChange(t, txn, tables, ch, ids.NodeId(2), h2)
		s3 = applyChange(t, txn, tables, ch, ids.NodeId(3), h3)
		s4 = applyChange(t, txn, tables, ch, ids.NodeId(4), h4)
		s5 = applyChange(t, txn, tables, ch, ids.NodeId(5), h5)
		return nil
	}))

	// The cache mirrors a prior sync where the remote had exactly C1..C5.
	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		return cache.Update(txn, 0, []Node{
			ChangeNode(h1, s1),
			ChangeNode(h2, s2),
			ChangeNode(h3, s3),
			ChangeNode(h4, s4),
			ChangeNode(h5, s5),
		})
	}))

	// Since that sync, we've applied C7 locally...
	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		applyChange(t, txn, tables, ch, ids.NodeId(6), h7)
		return nil
	}))

	// ...and the remote has unrecorded C5 and applied C6 in its place.
	theirs := []PositionedNode{
		{Position: 4, Node: ChangeNode(h6, s4.Combine(h6))},
	}

	require.NoError(t, p.View(func(txn *pristine.Txn) error {
		delta, err := ComputePushDelta(txn, tables, ch, cache, 4, theirs)
		require.NoError(t, err)

		require.Len(t, delta.ToUpload, 2)
		require.Equal(t, h5, delta.ToUpload[0].Hash, "C5 must reupload: the remote unrecorded it")
		require.Equal(t, h7, delta.ToUpload[1].Hash)
		for _, n := range delta.ToUpload {
			require.NotEqual(t, h1, n.Hash, "below the dichotomy, C1 is trusted synced and must not reupload")
			require.NotEqual(t, h2, n.Hash, "below the dichotomy, C2 is trusted synced and must not reupload")
			require.NotEqual(t, h3, n.Hash, "below the dichotomy, C3 is trusted synced and must not reupload")
			require.NotEqual(t, h4, n.Hash, "below the dichotomy, C4 is trusted synced and must not reupload")
		}

		require.Len(t, delta.RemoteUnrecs, 1)
		require.Equal(t, h5, delta.RemoteUnrecs[0].Node.Hash)

		require.Len(t, delta.UnknownChanges, 1)
		require.Equal(t, h6, delta.UnknownChanges[0].Hash)
		return nil
	}))
}

func TestComputePullDeltaSkipsAlreadyAppliedNodes(t *testing.T) {
	p, tables, ch, _ := openTestFixture(t)
	hKnown := ids.HashBytes([]byte("known"))
	hNew := ids.HashBytes([]byte("new"))

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		applyChange(t, txn, tables, ch, ids.NodeId(1), hKnown)
		return nil
	}))

	known := ids.NoMerkle.Combine(hKnown)
	theirs := []PositionedNode{
		{Position: 0, Node: ChangeNode(hKnown, known)},
		{Position: 1, Node: ChangeNode(hNew, known.Combine(hNew))},
	}

	require.NoError(t, p.View(func(txn *pristine.Txn) error {
		delta, err := ComputePullDelta(txn, tables, ch, theirs)
		require.NoError(t, err)
		require.Len(t, delta.ToDownload, 1)
		require.Equal(t, hNew, delta.ToDownload[0].Hash)
		return nil
	}))
}

func TestCacheUpdateAdvancesCount(t *testing.T) {
	p, _, _, cache := openTestFixture(t)
	h1 := ids.HashBytes([]byte("a"))

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		return cache.Update(txn, 0, []Node{ChangeNode(h1, ids.NoMerkle.Combine(h1))})
	}))

	require.NoError(t, p.View(func(txn *pristine.Txn) error {
		count, err := cache.Count(txn)
		require.NoError(t, err)
		require.Equal(t, uint64(1), count)

		n, ok, err := cache.At(txn, 0)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, h1, n.Hash)
		return nil
	}))
}
