package tag

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

func openTestChannel(t *testing.T) (*pristine.Pristine, *graph.Tables, *graph.Channel, *Store) {
	t.Helper()
	p, err := pristine.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, p.Close()) })
	tables := graph.NewTables()
	ch := graph.Open("main", tables)
	store := NewStore(NewTables())
	return p, tables, ch, store
}

// applyChangeDirectly does the channel bookkeeping pkg/apply's
// RecordApplied call does for a plain Change (it registers nothing in the
// pristine-wide tables, which these tests do not read for changes),
// without pulling in pkg/apply (which would
// make this a circular import — pkg/apply depends on nothing tag-specific,
// so the dependency only runs one way).
func applyChangeDirectly(t *testing.T, txn *pristine.WriteTxn, ch *graph.Channel, node ids.NodeId, hash ids.Hash) ids.Merkle {
	t.Helper()
	current, err := ch.CurrentState(&txn.Txn)
	require.NoError(t, err)
	newState := current.Combine(hash)
	_, err = ch.RecordApplied(txn, node, hash, newState, true)
	require.NoError(t, err)
	return newState
}

func applyTagDirectly(t *testing.T, txn *pristine.WriteTxn, tables *graph.Tables, ch *graph.Channel, node ids.NodeId, hash ids.Hash, state ids.Merkle) {
	t.Helper()
	require.NoError(t, tables.NodeType.Put(txn, node, graph.NodeTypeTag))
	require.NoError(t, tables.Internal.Put(txn, hash, node))
	position, err := ch.RecordApplied(txn, node, hash, state, false)
	require.NoError(t, err)
	require.NoError(t, ch.RecordTag(txn, position, state))
}

func TestCreateConsolidatesSinceGenesis(t *testing.T) {
	p, tables, ch, store := openTestChannel(t)
	h1 := ids.HashBytes([]byte("c1"))
	h2 := ids.HashBytes([]byte("c2"))

	var tg *Tag
	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		applyChangeDirectly(t, txn, ch, ids.NodeId(1), h1)
		applyChangeDirectly(t, txn, ch, ids.NodeId(2), h2)

		var err error
		tg, err = Create(txn, tables, store, ch, "first release", "alice", 1700000000)
		return err
	}))

	require.True(t, tg.IsInitial())
	require.Equal(t, uint64(2), tg.DependencyCountBefore)
	require.Equal(t, uint64(2), tg.ConsolidatedChangeCount)
	require.Equal(t, []ids.Hash{h1, h2}, tg.ConsolidatedChanges)
	require.Equal(t, "main", tg.Channel)
	require.Equal(t, "first release", tg.Message)
	require.Equal(t, "alice", tg.CreatedBy)
	require.False(t, tg.TagHash.IsZero())

	require.NoError(t, p.View(func(txn *pristine.Txn) error {
		stored, err := store.Get(txn, tg.TagHash)
		require.NoError(t, err)
		require.Equal(t, tg, stored)

		last, ok, err := ch.LastTag(txn)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, tg.TagHash, last)
		return nil
	}))
}

func TestCreateAfterPreviousTagOnlyConsolidatesNewChanges(t *testing.T) {
	p, tables, ch, store := openTestChannel(t)
	h1 := ids.HashBytes([]byte("c1"))
	h2 := ids.HashBytes([]byte("c2"))
	h3 := ids.HashBytes([]byte("c3"))

	var first, second *Tag
	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		applyChangeDirectly(t, txn, ch, ids.NodeId(1), h1)
		s2 := applyChangeDirectly(t, txn, ch, ids.NodeId(2), h2)

		var err error
		first, err = Create(txn, tables, store, ch, "v1", "alice", 1700000000)
		if err != nil {
			return err
		}
		applyTagDirectly(t, txn, tables, ch, ids.NodeId(3), first.TagHash, s2)

		applyChangeDirectly(t, txn, ch, ids.NodeId(4), h3)

		second, err = Create(txn, tables, store, ch, "v2", "bob", 1700001000)
		return err
	}))

	require.False(t, second.IsInitial())
	require.Equal(t, first.TagHash, second.PreviousConsolidation)
	require.Equal(t, []ids.Hash{h3}, second.ConsolidatedChanges)
	// dependency_count_before counts the channel's total apply-counter
	// position, which includes the first tag's own slot.
	require.Equal(t, uint64(4), second.DependencyCountBefore)
}

func TestMaterializeRejectsStaleShortForm(t *testing.T) {
	p, tables, ch, store := openTestChannel(t)
	h1 := ids.HashBytes([]byte("c1"))

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		applyChangeDirectly(t, txn, ch, ids.NodeId(1), h1)

		short := Short{State: ids.NoMerkle /* stale: channel has since moved */, Channel: "main"}
		_, err := Materialize(txn, tables, store, ch, short, 1700000000)
		var mismatch *StateMismatchError
		require.ErrorAs(t, err, &mismatch)
		return nil
	}))
}

func TestMaterializeRegeneratesFullFormFromCurrentState(t *testing.T) {
	p, tables, ch, store := openTestChannel(t)
	h1 := ids.HashBytes([]byte("c1"))

	var full *Tag
	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		s1 := applyChangeDirectly(t, txn, ch, ids.NodeId(1), h1)

		short := Short{
			State:     s1,
			Channel:   "main",
			Version:   "1.0.0",
			Message:   "cut from client",
			CreatedBy: "carol",
			Metadata:  map[string]string{"source": "cli"},
		}
		var err error
		full, err = Materialize(txn, tables, store, ch, short, 1700002000)
		return err
	}))

	require.Equal(t, "1.0.0", full.Version)
	require.Equal(t, []ids.Hash{h1}, full.ConsolidatedChanges)
	require.Equal(t, "cli", full.Metadata["source"])
}
