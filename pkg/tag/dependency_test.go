package tag

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

func TestMinimizeReplacesCoveredDepsWithMostRecentTag(t *testing.T) {
	c1 := ids.HashBytes([]byte("c1"))
	c2 := ids.HashBytes([]byte("c2"))
	c3 := ids.HashBytes([]byte("c3"))
	uncovered := ids.HashBytes([]byte("uncovered"))

	older := New(ids.NoMerkle, "main", ids.NoHash, 0, []ids.Hash{c1, c2}, 0)
	older.Finalize()
	newer := New(ids.NoMerkle, "main", older.TagHash, 0, []ids.Hash{c1, c2, c3}, 1)
	newer.Finalize()

	// newer must be listed first: "the most recent covering tag wins".
	got := Minimize([]ids.Hash{c1, c2, c3, uncovered}, []*Tag{newer, older})

	require.Contains(t, got, newer.TagHash)
	require.Contains(t, got, uncovered)
	require.NotContains(t, got, c1)
	require.NotContains(t, got, c2)
	require.NotContains(t, got, c3)
	require.NotContains(t, got, older.TagHash)
	require.Len(t, got, 2) // one tag reference + the uncovered dependency
}

func TestMinimizeLeavesUncoveredDependenciesAlone(t *testing.T) {
	c1 := ids.HashBytes([]byte("c1"))
	other := ids.HashBytes([]byte("other"))
	tg := New(ids.NoMerkle, "main", ids.NoHash, 0, []ids.Hash{c1}, 0)
	tg.Finalize()

	got := Minimize([]ids.Hash{other}, []*Tag{tg})
	require.Equal(t, []ids.Hash{other}, got)
}

func TestExpandExpandsTagReferencesTransitively(t *testing.T) {
	c1 := ids.HashBytes([]byte("c1"))
	c2 := ids.HashBytes([]byte("c2"))
	c3 := ids.HashBytes([]byte("c3"))

	tg := New(ids.NoMerkle, "main", ids.NoHash, 0, []ids.Hash{c1, c2}, 0)
	tg.Finalize()

	deps := map[ids.Hash][]ids.Hash{
		c3:         {tg.TagHash},
		c1:         nil,
		c2:         nil,
		tg.TagHash: nil, // never consulted: Expand substitutes consolidated changes directly
	}
	getDeps := func(h ids.Hash) ([]ids.Hash, error) { return deps[h], nil }
	getTag := func(h ids.Hash) (*Tag, bool, error) {
		if h == tg.TagHash {
			return tg, true, nil
		}
		return nil, false, nil
	}

	// Spec §8.4 S5: the ancestor set of a change depending on tag T is
	// {consolidated changes, T} — the tag hash itself is a member, not
	// just a pass-through reference.
	got, err := Expand(c3, getDeps, getTag)
	require.NoError(t, err)
	require.Contains(t, got, c3)
	require.Contains(t, got, c1)
	require.Contains(t, got, c2)
	require.Contains(t, got, tg.TagHash)
	require.Len(t, got, 4)
}

// TestMinimizeForChannelShortensDependenciesAfterTagging exercises spec
// §8.4 S4 end to end: 25 changes applied, a tag consolidating all of
// them, and a new change's proposed dependency set ([C1..C25] — as if
// C26 touched something every earlier change also touched) collapsing to
// a single reference to the tag.
func TestMinimizeForChannelShortensDependenciesAfterTagging(t *testing.T) {
	p, tables, ch, store := openTestChannel(t)

	hashes := make([]ids.Hash, 25)
	for i := range hashes {
		hashes[i] = ids.HashBytes([]byte{byte(i)})
	}

	var tg *Tag
	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		for i, h := range hashes {
			applyChangeDirectly(t, txn, ch, ids.NodeId(i+1), h)
		}
		var err error
		tg, err = Create(txn, tables, store, ch, "consolidate", "alice", 1700000000)
		if err != nil {
			return err
		}
		state, err := ch.CurrentState(&txn.Txn)
		if err != nil {
			return err
		}
		applyTagDirectly(t, txn, tables, ch, ids.NodeId(len(hashes)+1), tg.TagHash, state)
		return nil
	}))

	require.NoError(t, p.View(func(txn *pristine.Txn) error {
		got, err := store.MinimizeForChannel(txn, tables, ch, hashes)
		require.NoError(t, err)
		require.Equal(t, []ids.Hash{tg.DependencyRef()}, got)
		return nil
	}))
}
