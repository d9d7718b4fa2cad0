package remote

import (
	"errors"

	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

// Pristine-wide prefixes for this package's tables, allocated above
// pkg/tag's 0x20/0x21, leaving 0x22-0x2f unused (spec §3.4 names the remote cache but leaves its
// exact key layout to the implementation).
const (
	prefixRemoteLog  byte = 0x30 // (RemoteId, position) -> Node
	prefixRemoteMeta byte = 0x31 // RemoteId -> cached entry count
)

// remoteKey prefixes an inner key with a RemoteId, the pristine-wide
// sibling of pkg/graph's chanKey.
type remoteKey[T any] struct {
	Remote ids.RemoteId
	Key    T
}

func remoteKeyCodec[T any](inner pristine.Codec[T]) pristine.Codec[remoteKey[T]] {
	return pristine.Codec[remoteKey[T]]{
		Encode: func(rk remoteKey[T]) []byte {
			b := make([]byte, 8)
			for i := 0; i < 8; i++ {
				b[7-i] = byte(rk.Remote >> (8 * i))
			}
			return append(b, inner.Encode(rk.Key)...)
		},
		Decode: func(b []byte) (remoteKey[T], error) {
			var zero remoteKey[T]
			if len(b) < 8 {
				return zero, errShortRemoteKey
			}
			var id uint64
			for i := 0; i < 8; i++ {
				id = id<<8 | uint64(b[i])
			}
			key, err := inner.Decode(b[8:])
			if err != nil {
				return zero, err
			}
			return remoteKey[T]{Remote: ids.RemoteId(id), Key: key}, nil
		},
	}
}

var errShortRemoteKey = errors.New("remote: key truncated")

var nodeCodec = pristine.Codec[Node]{
	Encode: encodeNode,
	Decode: decodeNode,
}

func encodeNode(n Node) []byte {
	b := make([]byte, 0, 65)
	b = append(b, n.Hash[:]...)
	b = append(b, byte(n.NodeType))
	b = append(b, n.State[:]...)
	return b
}

func decodeNode(b []byte) (Node, error) {
	var n Node
	if len(b) != 32+1+32 {
		return n, errors.New("remote: node record truncated")
	}
	copy(n.Hash[:], b[0:32])
	n.NodeType = graph.NodeType(b[32])
	copy(n.State[:], b[33:65])
	return n, nil
}

// Tables bundles the cached-remote-view tables. One Tables value is shared
// by every Cache opened against the same Pristine, the remote.Tables
// analogue of graph.Tables.
type Tables struct {
	// Log is the cached changelist we last downloaded or computed for a
	// given remote: position -> Node (spec §4.6 "cached remote view").
	Log pristine.Table[remoteKey[uint64], Node]
	// Count tracks how many entries Log holds for a remote, i.e. one past
	// the highest cached position.
	Count pristine.Table[ids.RemoteId, uint64]
}

func NewTables() *Tables {
	u64Remote := remoteKeyCodec(pristine.Uint64Codec[uint64]())
	return &Tables{
		Log:   pristine.Table[remoteKey[uint64], Node]{Prefix: prefixRemoteLog, Key: u64Remote, Value: nodeCodec},
		Count: pristine.Table[ids.RemoteId, uint64]{Prefix: prefixRemoteMeta, Key: remoteIDCodec, Value: pristine.Uint64Codec[uint64]()},
	}
}

var remoteIDCodec = pristine.Codec[ids.RemoteId]{
	Encode: func(r ids.RemoteId) []byte {
		b := make([]byte, 8)
		for i := 0; i < 8; i++ {
			b[7-i] = byte(r >> (8 * i))
		}
		return b
	},
	Decode: func(b []byte) (ids.RemoteId, error) {
		if len(b) != 8 {
			return 0, errors.New("remote: remote id truncated")
		}
		var v uint64
		for i := 0; i < 8; i++ {
			v = v<<8 | uint64(b[i])
		}
		return ids.RemoteId(v), nil
	},
}

// Cache is a thin handle bundling Tables with the RemoteId it reads and
// writes against.
type Cache struct {
	Tables *Tables
	Remote ids.RemoteId
}

func NewCache(tables *Tables, remote ids.RemoteId) *Cache {
	return &Cache{Tables: tables, Remote: remote}
}

// Count returns how many entries are cached for this remote.
func (c *Cache) Count(txn *pristine.Txn) (uint64, error) {
	n, _, err := c.Tables.Count.Get(txn, c.Remote)
	return n, err
}

// At returns the cached Node at position, if any.
func (c *Cache) At(txn *pristine.Txn, position uint64) (Node, bool, error) {
	return c.Tables.Log.Get(txn, remoteKey[uint64]{Remote: c.Remote, Key: position})
}

// Update persists entries starting at fromPosition and advances the
// cached count to fromPosition+len(entries) (spec §4.6 "cache-update
// rule": the cache always reflects the longest prefix of the remote's
// changelist we've actually fetched, never a sparse or out-of-order one).
func (c *Cache) Update(txn *pristine.WriteTxn, fromPosition uint64, entries []Node) error {
	for i, n := range entries {
		if err := c.Tables.Log.Put(txn, remoteKey[uint64]{Remote: c.Remote, Key: fromPosition + uint64(i)}, n); err != nil {
			return err
		}
	}
	return c.Tables.Count.Put(txn, c.Remote, fromPosition+uint64(len(entries)))
}
