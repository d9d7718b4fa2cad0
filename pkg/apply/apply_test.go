package apply

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castingclouds/atomic-go/pkg/change"
	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

// mapStore is the simplest possible ChangeStore: an in-memory map, used by
// every test in this file instead of pkg/repo's on-disk store.
type mapStore struct {
	changes map[ids.Hash]*change.Change
	tags    map[ids.Hash]*TagRecord
}

func newMapStore() *mapStore {
	return &mapStore{changes: map[ids.Hash]*change.Change{}, tags: map[ids.Hash]*TagRecord{}}
}

func (s *mapStore) GetChange(h ids.Hash) (*change.Change, error) {
	if c, ok := s.changes[h]; ok {
		return c, nil
	}
	return nil, ErrNoSuchChange
}

func (s *mapStore) GetTag(h ids.Hash) (*TagRecord, error) {
	if t, ok := s.tags[h]; ok {
		return t, nil
	}
	return nil, ErrNoSuchTag
}

// leafChange builds a trivial single-atom change: one new vertex hung off
// the channel root, with the given message (to vary its hash) and
// dependencies.
func leafChange(message string, deps []ids.Hash) *change.Change {
	hunk := change.Hunk{
		Kind: change.HunkFileAdd,
		Atoms: []change.Atom{{
			Kind: change.AtomNewVertex,
			Vertex: change.NewVertex{
				UpContext: []change.HashPosition{{Change: ids.NoHash, Pos: 0}},
				Flag:      graph.FlagFolder,
				Start:     0,
				End:       10,
			},
		}},
	}
	return change.New(change.Header{Message: message}, deps, nil, nil, []change.Hunk{hunk}, nil, nil)
}

func openTestPristine(t *testing.T) (*pristine.Pristine, *graph.Tables, *graph.Channel) {
	t.Helper()
	p, err := pristine.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, p.Close()) })
	tables := graph.NewTables()
	ch := graph.Open("main", tables)
	return p, tables, ch
}

func TestApplyChangeToChannelRecordsPositionAndMerkle(t *testing.T) {
	p, tables, ch := openTestPristine(t)
	store := newMapStore()
	c1 := leafChange("c1", nil)
	h1 := c1.Hash()
	store.changes[h1] = c1

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		position, state, err := ApplyNodeWS(txn, tables, ch, store, h1)
		require.NoError(t, err)
		require.Equal(t, uint64(0), position)
		require.Equal(t, ids.NoMerkle.Combine(h1), state)
		return nil
	}))

	require.NoError(t, p.View(func(txn *pristine.Txn) error {
		current, err := ch.CurrentState(txn)
		require.NoError(t, err)
		require.Equal(t, ids.NoMerkle.Combine(h1), current)
		return nil
	}))
}

func TestApplyChangeToChannelRejectsDuplicateApplication(t *testing.T) {
	p, tables, ch := openTestPristine(t)
	store := newMapStore()
	c1 := leafChange("c1", nil)
	h1 := c1.Hash()
	store.changes[h1] = c1

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		_, _, err := ApplyNodeWS(txn, tables, ch, store, h1)
		return err
	}))

	require.Error(t, p.Update(func(txn *pristine.WriteTxn) error {
		_, _, err := ApplyNodeWS(txn, tables, ch, store, h1)
		return err
	}))

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		_, _, err := ApplyNodeWS(txn, tables, ch, store, h1)
		var dup *ChangeAlreadyOnChannelError
		require.ErrorAs(t, err, &dup)
		return nil
	}))
}

func TestApplyChangeToChannelRejectsMissingDependency(t *testing.T) {
	p, tables, ch := openTestPristine(t)
	store := newMapStore()
	unknown := ids.HashBytes([]byte("never-applied"))
	c := leafChange("depends on nothing we have", []ids.Hash{unknown})
	h := c.Hash()
	store.changes[h] = c

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		_, _, err := ApplyNodeWS(txn, tables, ch, store, h)
		var missing *DependencyMissingError
		require.ErrorAs(t, err, &missing)
		require.Equal(t, unknown, missing.Hash)
		return nil
	}))
}

func TestApplyNodeRecAppliesDependenciesBeforeDependents(t *testing.T) {
	p, tables, ch := openTestPristine(t)
	store := newMapStore()
	c1 := leafChange("c1", nil)
	h1 := c1.Hash()
	c2 := leafChange("c2", []ids.Hash{h1})
	h2 := c2.Hash()
	store.changes[h1] = c1
	store.changes[h2] = c2

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		return ApplyNodeRec(txn, tables, ch, store, h2)
	}))

	require.NoError(t, p.View(func(txn *pristine.Txn) error {
		id1, ok, err := tables.Internal.Get(txn, h1)
		require.NoError(t, err)
		require.True(t, ok)
		id2, ok, err := tables.Internal.Get(txn, h2)
		require.NoError(t, err)
		require.True(t, ok)

		pos1, ok, err := ch.PositionOf(txn, id1)
		require.NoError(t, err)
		require.True(t, ok)
		pos2, ok, err := ch.PositionOf(txn, id2)
		require.NoError(t, err)
		require.True(t, ok)
		require.Less(t, pos1, pos2, "a dependency must occupy an earlier position than its dependent")

		current, err := ch.CurrentState(txn)
		require.NoError(t, err)
		require.Equal(t, ids.NoMerkle.Combine(h1).Combine(h2), current)
		return nil
	}))
}

func TestApplyNodeRecIsIdempotentWhenAlreadyOnChannel(t *testing.T) {
	p, tables, ch := openTestPristine(t)
	store := newMapStore()
	c1 := leafChange("c1", nil)
	h1 := c1.Hash()
	store.changes[h1] = c1

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		return ApplyNodeRec(txn, tables, ch, store, h1)
	}))
	// A second recursive apply of the same root must not re-visit and
	// re-fail on a hash already applied (the discover phase's onChannel
	// check short-circuits before re-reaching the apply phase).
	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		return ApplyNodeRec(txn, tables, ch, store, h1)
	}))
}

func TestApplyTagToChannelDoesNotPerturbMerkle(t *testing.T) {
	p, tables, ch := openTestPristine(t)
	store := newMapStore()
	c1 := leafChange("c1", nil)
	h1 := c1.Hash()
	store.changes[h1] = c1

	var stateAfterChange ids.Merkle
	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		var err error
		_, stateAfterChange, err = ApplyNodeWS(txn, tables, ch, store, h1)
		return err
	}))

	tagHash := ids.HashBytes([]byte("tag-1"))
	store.tags[tagHash] = &TagRecord{State: stateAfterChange, ConsolidatedChanges: []ids.Hash{h1}}

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		position, state, err := ApplyNodeWS(txn, tables, ch, store, tagHash)
		require.NoError(t, err)
		require.Equal(t, uint64(1), position)
		require.Equal(t, stateAfterChange, state, "applying a tag must leave the Merkle exactly as it was")
		return nil
	}))

	require.NoError(t, p.View(func(txn *pristine.Txn) error {
		current, err := ch.CurrentState(txn)
		require.NoError(t, err)
		require.Equal(t, stateAfterChange, current)
		return nil
	}))

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		_, _, err := ApplyNodeWS(txn, tables, ch, store, tagHash)
		var dup *TagAlreadyOnChannelError
		require.ErrorAs(t, err, &dup)
		return nil
	}))
}

func TestApplyTagToChannelRejectsStateMismatch(t *testing.T) {
	p, tables, ch := openTestPristine(t)
	store := newMapStore()
	c1 := leafChange("c1", nil)
	h1 := c1.Hash()
	store.changes[h1] = c1

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		_, _, err := ApplyNodeWS(txn, tables, ch, store, h1)
		return err
	}))

	tagHash := ids.HashBytes([]byte("stale-tag"))
	store.tags[tagHash] = &TagRecord{State: ids.NoMerkle, ConsolidatedChanges: []ids.Hash{h1}}

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		_, _, err := ApplyNodeWS(txn, tables, ch, store, tagHash)
		var mismatch *TagStateMismatchError
		require.ErrorAs(t, err, &mismatch)
		return nil
	}))
}

func TestApplyNodeWSReturnsNotFoundForUnknownHash(t *testing.T) {
	p, tables, ch := openTestPristine(t)
	store := newMapStore()
	unknown := ids.HashBytes([]byte("ghost"))

	require.NoError(t, p.Update(func(txn *pristine.WriteTxn) error {
		_, _, err := ApplyNodeWS(txn, tables, ch, store, unknown)
		var notFound *ErrNotFound
		require.ErrorAs(t, err, &notFound)
		require.False(t, errors.Is(err, ErrNoSuchChange))
		return nil
	}))
}
