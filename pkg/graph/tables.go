package graph

import (
	"encoding/binary"
	"fmt"

	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

// Pristine-wide and per-channel table prefixes. Channel-scoped tables
// additionally embed the channel name (length-prefixed) ahead of their own
// key, via chanKey below, so that every channel shares the same badger
// keyspace without colliding (spec §3.3 names these tables per channel;
// spec §3.4 names the pristine-wide ones).
const (
	prefixChannelGraph        byte = 0x01 // per-channel: graph
	prefixChannelChanges      byte = 0x02 // per-channel: changes
	prefixChannelRevChanges   byte = 0x03 // per-channel: revchanges
	prefixChannelStates       byte = 0x04 // per-channel: states
	prefixChannelTags         byte = 0x05 // per-channel: tags
	prefixChannelMeta         byte = 0x06 // per-channel: id, last_modified, apply_counter
	prefixChannelVertices     byte = 0x07 // per-channel: vertex range index

	prefixInternal       byte = 0x10 // pristine-wide: Hash -> NodeId
	prefixExternal       byte = 0x11 // pristine-wide: NodeId -> Hash
	prefixNodeType       byte = 0x12 // pristine-wide: NodeId -> NodeType
	prefixDep            byte = 0x13 // pristine-wide: NodeId -> NodeId
	prefixRevDep         byte = 0x14 // pristine-wide: NodeId -> NodeId
	prefixTouchedFiles   byte = 0x15 // pristine-wide: Inode -> NodeId
	prefixRevTouched     byte = 0x16 // pristine-wide: NodeId -> Inode
	prefixNodeCounter    byte = 0x17 // pristine-wide: single counter, next NodeId to allocate
)

// nodeCounterKey is the sole key under which the NodeCounter table stores
// its single running value.
const nodeCounterKey uint8 = 0

// chanKey prefixes an inner key with a length-framed channel name so that
// every per-channel table can share one MultiTable/Table prefix byte
// across all channels.
type chanKey[T any] struct {
	Channel string
	Key     T
}

func chanKeyCodec[T any](inner pristine.Codec[T]) pristine.Codec[chanKey[T]] {
	return pristine.Codec[chanKey[T]]{
		Encode: func(ck chanKey[T]) []byte {
			name := []byte(ck.Channel)
			b := make([]byte, 2+len(name))
			binary.BigEndian.PutUint16(b, uint16(len(name)))
			copy(b[2:], name)
			return append(b, inner.Encode(ck.Key)...)
		},
		Decode: func(b []byte) (chanKey[T], error) {
			var zero chanKey[T]
			if len(b) < 2 {
				return zero, fmt.Errorf("graph: channel key truncated")
			}
			n := int(binary.BigEndian.Uint16(b))
			if len(b) < 2+n {
				return zero, fmt.Errorf("graph: channel key truncated")
			}
			inner, err := inner.Decode(b[2+n:])
			if err != nil {
				return zero, err
			}
			return chanKey[T]{Channel: string(b[2 : 2+n]), Key: inner}, nil
		},
	}
}

var vertexCodec = pristine.Codec[ids.Vertex]{
	Encode: vertexKey,
	Decode: decodeVertexKey,
}

var edgeCodec = pristine.Codec[Edge]{
	Encode: Edge.encode,
	Decode: decodeEdge,
}

// Tables bundles every table a channel and the pristine-wide registries
// need. One Tables value is shared by every Channel opened against the
// same Pristine.
type Tables struct {
	// Graph is the per-channel repair graph: Vertex -> {Edge} (spec §3.3
	// `graph`).
	Graph pristine.MultiTable[chanKey[ids.Vertex], Edge]

	// Vertices indexes, per channel, the byte ranges introduced by each
	// change: NodeId -> {Vertex}, ordered by (Start, End). This is not a
	// table spec §3.3 names explicitly, but find_block/find_block_end
	// (spec §4.2) need a way to locate "the vertex containing position p"
	// without a full graph scan; this is the B-tree range index that
	// requirement implies. Populated by Channel.RegisterVertex whenever
	// the apply engine processes a NewVertex atom.
	Vertices pristine.MultiTable[chanKey[ids.NodeId], ids.Vertex]

	// Changes maps a NodeId to its log position within one channel (spec
	// §3.3 `changes`): presence means "applied to this channel".
	Changes pristine.Table[chanKey[ids.NodeId], uint64]

	// RevChanges is the log-ordered inverse of Changes, iterable both ways
	// (spec §3.3 `revchanges`): position -> (NodeId, Hash, Merkle).
	RevChanges pristine.Table[chanKey[uint64], LogEntry]

	// States supports "has channel ever passed through state s?" (spec
	// §3.3 `states`): Merkle -> log position.
	States pristine.Table[chanKey[ids.Merkle], uint64]

	// Tags is sparse, one entry per tagged state (spec §3.3 `tags`):
	// log position -> Merkle.
	Tags pristine.Table[chanKey[uint64], ids.Merkle]

	// Meta holds the channel's RemoteId, last_modified timestamp, and
	// apply counter (spec §3.3 `id`, `last_modified`).
	Meta pristine.Table[chanKey[string], []byte]

	// Internal/External are the pristine-wide hash<->NodeId registration
	// tables (spec §3.4).
	Internal pristine.Table[ids.Hash, ids.NodeId]
	External pristine.Table[ids.NodeId, ids.Hash]

	// NodeType records whether a registered NodeId is a Change or a Tag
	// (spec §3.4 `node_type`).
	NodeType pristine.Table[ids.NodeId, NodeType]

	// Dep/RevDep are the dependency edges between NodeIds (spec §3.4).
	Dep    pristine.MultiTable[ids.NodeId, ids.NodeId]
	RevDep pristine.MultiTable[ids.NodeId, ids.NodeId]

	// TouchedFiles/RevTouched form the inode<->change bipartite index
	// (spec §3.4 `touched_files`/`rev_touched`).
	TouchedFiles pristine.MultiTable[ids.Inode, ids.NodeId]
	RevTouched   pristine.MultiTable[ids.NodeId, ids.Inode]

	// NodeCounter is the single running value pkg/apply's register_change
	// analogue draws the next NodeId from (spec §3.1 "the pristine assigns
	// the first time a change or tag is registered"). Not named as its own
	// table in spec §3.4 — Internal/External's own keyspace can't also
	// hand out fresh identifiers, so this is the minimal extra state that
	// implies.
	NodeCounter pristine.Table[uint8, uint64]
}

// NewTables constructs the fixed table set. It allocates no storage itself
// — tables are just typed views over the shared Pristine keyspace.
func NewTables() *Tables {
	vertexChan := chanKeyCodec(vertexCodec)
	nodeIDChan := chanKeyCodec(nodeIDCodec)
	u64Chan := chanKeyCodec(pristine.Uint64Codec[uint64]())
	merkleChan := chanKeyCodec(merkleCodec)
	stringChan := chanKeyCodec(pristine.StringCodec)

	return &Tables{
		Graph: pristine.MultiTable[chanKey[ids.Vertex], Edge]{
			Prefix: prefixChannelGraph, Key: vertexChan, Value: edgeCodec,
		},
		Vertices: pristine.MultiTable[chanKey[ids.NodeId], ids.Vertex]{
			Prefix: prefixChannelVertices, Key: nodeIDChan, Value: vertexCodec,
		},
		Changes: pristine.Table[chanKey[ids.NodeId], uint64]{
			Prefix: prefixChannelChanges, Key: nodeIDChan, Value: pristine.Uint64Codec[uint64](),
		},
		RevChanges: pristine.Table[chanKey[uint64], LogEntry]{
			Prefix: prefixChannelRevChanges, Key: u64Chan, Value: logEntryCodec,
		},
		States: pristine.Table[chanKey[ids.Merkle], uint64]{
			Prefix: prefixChannelStates, Key: merkleChan, Value: pristine.Uint64Codec[uint64](),
		},
		Tags: pristine.Table[chanKey[uint64], ids.Merkle]{
			Prefix: prefixChannelTags, Key: u64Chan, Value: merkleCodec,
		},
		Meta: pristine.Table[chanKey[string], []byte]{
			Prefix: prefixChannelMeta, Key: stringChan, Value: rawBytesCodec,
		},
		Internal: pristine.Table[ids.Hash, ids.NodeId]{
			Prefix: prefixInternal, Key: hashCodec, Value: nodeIDCodec,
		},
		External: pristine.Table[ids.NodeId, ids.Hash]{
			Prefix: prefixExternal, Key: nodeIDCodec, Value: hashCodec,
		},
		NodeType: pristine.Table[ids.NodeId, NodeType]{
			Prefix: prefixNodeType, Key: nodeIDCodec, Value: nodeTypeCodec,
		},
		Dep: pristine.MultiTable[ids.NodeId, ids.NodeId]{
			Prefix: prefixDep, Key: nodeIDCodec, Value: nodeIDCodec,
		},
		RevDep: pristine.MultiTable[ids.NodeId, ids.NodeId]{
			Prefix: prefixRevDep, Key: nodeIDCodec, Value: nodeIDCodec,
		},
		TouchedFiles: pristine.MultiTable[ids.Inode, ids.NodeId]{
			Prefix: prefixTouchedFiles, Key: inodeCodec, Value: nodeIDCodec,
		},
		RevTouched: pristine.MultiTable[ids.NodeId, ids.Inode]{
			Prefix: prefixRevTouched, Key: nodeIDCodec, Value: inodeCodec,
		},
		NodeCounter: pristine.Table[uint8, uint64]{
			Prefix: prefixNodeCounter, Key: uint8Codec, Value: pristine.Uint64Codec[uint64](),
		},
	}
}

// AllocateNodeId returns the next unused NodeId and persists the bumped
// counter. RootNodeId (0) is reserved (spec §3.2), so the counter starts
// at 1.
func (t *Tables) AllocateNodeId(txn *pristine.WriteTxn) (ids.NodeId, error) {
	n, ok, err := t.NodeCounter.Get(&txn.Txn, nodeCounterKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		n = uint64(ids.RootNodeId) + 1
	}
	if err := t.NodeCounter.Put(txn, nodeCounterKey, n+1); err != nil {
		return 0, err
	}
	return ids.NodeId(n), nil
}

// LogEntry is one entry of a channel's revchanges log: the NodeId applied
// at that position, together with its Hash and the resulting Merkle (spec
// §3.3: "yields (NodeId, (Hash, Merkle)) pairs in append order").
type LogEntry struct {
	Node   ids.NodeId
	Hash   ids.Hash
	Merkle ids.Merkle
}

var logEntryCodec = pristine.Codec[LogEntry]{
	Encode: func(e LogEntry) []byte {
		b := make([]byte, 8+32+32)
		binary.BigEndian.PutUint64(b[0:8], uint64(e.Node))
		copy(b[8:40], e.Hash[:])
		copy(b[40:72], e.Merkle[:])
		return b
	},
	Decode: func(b []byte) (LogEntry, error) {
		if len(b) != 72 {
			return LogEntry{}, fmt.Errorf("graph: log entry must be 72 bytes, got %d", len(b))
		}
		var e LogEntry
		e.Node = ids.NodeId(binary.BigEndian.Uint64(b[0:8]))
		copy(e.Hash[:], b[8:40])
		copy(e.Merkle[:], b[40:72])
		return e, nil
	},
}

var nodeIDCodec = pristine.Codec[ids.NodeId]{
	Encode: func(n ids.NodeId) []byte {
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(n))
		return b
	},
	Decode: func(b []byte) (ids.NodeId, error) {
		if len(b) != 8 {
			return 0, fmt.Errorf("graph: NodeId key must be 8 bytes, got %d", len(b))
		}
		return ids.NodeId(binary.BigEndian.Uint64(b)), nil
	},
}

var inodeCodec = pristine.Codec[ids.Inode]{
	Encode: func(n ids.Inode) []byte {
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(n))
		return b
	},
	Decode: func(b []byte) (ids.Inode, error) {
		if len(b) != 8 {
			return 0, fmt.Errorf("graph: Inode key must be 8 bytes, got %d", len(b))
		}
		return ids.Inode(binary.BigEndian.Uint64(b)), nil
	},
}

var uint8Codec = pristine.Codec[uint8]{
	Encode: func(v uint8) []byte { return []byte{v} },
	Decode: func(b []byte) (uint8, error) {
		if len(b) != 1 {
			return 0, fmt.Errorf("graph: uint8 key must be 1 byte, got %d", len(b))
		}
		return b[0], nil
	},
}

var hashCodec = pristine.FixedCodec[ids.Hash]()
var merkleCodec = pristine.FixedCodec[ids.Merkle]()

var rawBytesCodec = pristine.Codec[[]byte]{
	Encode: func(b []byte) []byte { return b },
	Decode: func(b []byte) ([]byte, error) { return append([]byte{}, b...), nil },
}

// NodeType distinguishes a Change from a Tag (spec §3.4 `node_type`); it
// governs apply behavior (spec §4.4) and dependency-type resolution during
// recursive apply.
type NodeType uint8

const (
	// NodeTypeChange is the zero value: "if unregistered, Change is
	// assumed" (spec §4.4 "Recursive apply").
	NodeTypeChange NodeType = 0
	NodeTypeTag    NodeType = 1
)

func (t NodeType) String() string {
	if t == NodeTypeTag {
		return "Tag"
	}
	return "Change"
}

var nodeTypeCodec = pristine.Codec[NodeType]{
	Encode: func(t NodeType) []byte { return []byte{byte(t)} },
	Decode: func(b []byte) (NodeType, error) {
		if len(b) != 1 {
			return 0, fmt.Errorf("graph: NodeType must be 1 byte, got %d", len(b))
		}
		return NodeType(b[0]), nil
	},
}
