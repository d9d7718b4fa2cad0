package pristine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Pristine {
	t.Helper()
	p, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, p.Close()) })
	return p
}

func TestTableGetMissingIsNotAnError(t *testing.T) {
	p := openTestStore(t)
	tbl := Table[uint64, string]{Prefix: 0x01, Key: Uint64Codec[uint64](), Value: StringCodec}

	err := p.View(func(txn *Txn) error {
		_, ok, err := tbl.Get(txn, 42)
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestTablePutGetDel(t *testing.T) {
	p := openTestStore(t)
	tbl := Table[uint64, string]{Prefix: 0x01, Key: Uint64Codec[uint64](), Value: StringCodec}

	require.NoError(t, p.Update(func(txn *WriteTxn) error {
		return tbl.Put(txn, 7, "seven")
	}))

	require.NoError(t, p.View(func(txn *Txn) error {
		v, ok, err := tbl.Get(txn, 7)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "seven", v)
		return nil
	}))

	require.NoError(t, p.Update(func(txn *WriteTxn) error {
		return tbl.Del(txn, 7)
	}))

	require.NoError(t, p.View(func(txn *Txn) error {
		_, ok, err := tbl.Get(txn, 7)
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
}

func TestMultiTablePutUniqueRejectsDuplicate(t *testing.T) {
	p := openTestStore(t)
	mt := MultiTable[uint64, string]{Prefix: 0x02, Key: Uint64Codec[uint64](), Value: StringCodec}

	require.NoError(t, p.Update(func(txn *WriteTxn) error {
		return mt.PutUnique(txn, 1, "a")
	}))

	err := p.Update(func(txn *WriteTxn) error {
		return mt.PutUnique(txn, 1, "a")
	})
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestMultiTableOrderedIteration(t *testing.T) {
	p := openTestStore(t)
	mt := MultiTable[uint64, string]{Prefix: 0x03, Key: Uint64Codec[uint64](), Value: StringCodec}

	require.NoError(t, p.Update(func(txn *WriteTxn) error {
		for _, v := range []string{"c", "a", "b"} {
			if err := mt.Put(txn, 5, v); err != nil {
				return err
			}
		}
		return nil
	}))

	var forward []string
	require.NoError(t, p.View(func(txn *Txn) error {
		vs, err := mt.All(txn, 5)
		forward = vs
		return err
	}))
	require.Equal(t, []string{"a", "b", "c"}, forward)

	var backward []string
	require.NoError(t, p.View(func(txn *Txn) error {
		return mt.RevIter(txn, 5, func(v string) (bool, error) {
			backward = append(backward, v)
			return true, nil
		})
	}))
	require.Equal(t, []string{"c", "b", "a"}, backward)
}

func TestMultiTableDelRemovesOnlyThatPair(t *testing.T) {
	p := openTestStore(t)
	mt := MultiTable[uint64, string]{Prefix: 0x04, Key: Uint64Codec[uint64](), Value: StringCodec}

	require.NoError(t, p.Update(func(txn *WriteTxn) error {
		require.NoError(t, mt.Put(txn, 1, "x"))
		require.NoError(t, mt.Put(txn, 1, "y"))
		return nil
	}))
	require.NoError(t, p.Update(func(txn *WriteTxn) error {
		return mt.Del(txn, 1, "x")
	}))

	var remaining []string
	require.NoError(t, p.View(func(txn *Txn) error {
		vs, err := mt.All(txn, 1)
		remaining = vs
		return err
	}))
	require.Equal(t, []string{"y"}, remaining)
}

func TestViewSnapshotIsolatedFromConcurrentUpdate(t *testing.T) {
	p := openTestStore(t)
	tbl := Table[uint64, string]{Prefix: 0x05, Key: Uint64Codec[uint64](), Value: StringCodec}

	require.NoError(t, p.Update(func(txn *WriteTxn) error {
		return tbl.Put(txn, 1, "before")
	}))

	err := p.View(func(txn *Txn) error {
		// Mutate after the read snapshot was taken; the snapshot must
		// still observe the pre-mutation value (spec §5).
		require.NoError(t, p.Update(func(wtxn *WriteTxn) error {
			return tbl.Put(wtxn, 1, "after")
		}))

		v, ok, err := tbl.Get(txn, 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "before", v)
		return nil
	})
	require.NoError(t, err)
}
