package graph

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

const (
	metaKeyRemoteID     = "id"
	metaKeyLastModified = "last_modified"
	metaKeyApplyCounter = "apply_counter"

	// metaKeyLastTag is the channel-local pointer to the most recently
	// created consolidating tag's hash (spec §4.5 `previous_consolidation`):
	// not one of spec §3.3's named tables, but the minimal extra state
	// that "consolidates from the immediately preceding tag" implies —
	// without it, creating a new tag would need a full scan of `tags` to
	// find its predecessor.
	metaKeyLastTag = "last_tag_hash"
)

// Channel is a reference-counted handle onto one named branch's tables
// (spec §3.6: "Channel handles are reference-counted and protect their
// interior table roots with a read/write lock"). The read/write lock
// itself is pkg/pristine's single-writer-many-readers discipline applied
// at the Pristine level; Channel adds nothing beyond a name and a shared
// *Tables, which is enough in Go's transaction-scoped-call model (every
// mutation already runs inside exactly one pristine.WriteTxn).
type Channel struct {
	Name   string
	Tables *Tables
}

// Open returns a handle for the named channel against tbl. Channels are
// created implicitly on first write; Open never touches storage.
func Open(name string, tbl *Tables) *Channel {
	return &Channel{Name: name, Tables: tbl}
}

func (c *Channel) ck(v ids.Vertex) chanKey[ids.Vertex]   { return chanKey[ids.Vertex]{Channel: c.Name, Key: v} }
func (c *Channel) cn(n ids.NodeId) chanKey[ids.NodeId]   { return chanKey[ids.NodeId]{Channel: c.Name, Key: n} }
func (c *Channel) cu(p uint64) chanKey[uint64]           { return chanKey[uint64]{Channel: c.Name, Key: p} }
func (c *Channel) cm(m ids.Merkle) chanKey[ids.Merkle]   { return chanKey[ids.Merkle]{Channel: c.Name, Key: m} }
func (c *Channel) cs(k string) chanKey[string]           { return chanKey[string]{Channel: c.Name, Key: k} }

// ApplyCounter returns the channel's current log length: the position the
// *next* applied node will occupy (spec §4.4: "position is the channel's
// apply counter before the call").
func (c *Channel) ApplyCounter(txn *pristine.Txn) (uint64, error) {
	b, ok, err := c.Tables.Meta.Get(txn, c.cs(metaKeyApplyCounter))
	if err != nil || !ok {
		return 0, err
	}
	if len(b) != 8 {
		return 0, fmt.Errorf("graph: corrupt apply_counter for channel %q", c.Name)
	}
	return binary.BigEndian.Uint64(b), nil
}

// CurrentState returns the channel's current Merkle by folding every
// Change in revchanges order (spec §4.4: "The Merkle returned equals the
// rolling hash of all Changes in the new revchanges order; tags do not
// enter this hash"). Because Merkle.Combine is commutative this is safe
// to fold in log order without re-deriving the true application order.
func (c *Channel) CurrentState(txn *pristine.Txn) (ids.Merkle, error) {
	n, err := c.ApplyCounter(txn)
	if err != nil {
		return ids.NoMerkle, err
	}
	state := ids.NoMerkle
	for pos := uint64(0); pos < n; pos++ {
		entry, ok, err := c.Tables.RevChanges.Get(txn, c.cu(pos))
		if err != nil {
			return ids.NoMerkle, err
		}
		if !ok {
			continue
		}
		nt, _, err := c.Tables.NodeType.Get(txn, entry.Node)
		if err != nil {
			return ids.NoMerkle, err
		}
		if nt == NodeTypeTag {
			continue // tags occupy a revchanges row too, but never perturb the Merkle
		}
		state = state.Combine(entry.Hash)
	}
	return state, nil
}

// touchCounter bumps the apply counter by one and stamps last_modified.
// Every apply — Change or Tag — calls this exactly once (spec §4.4 step 6
// "Tags increment the apply counter but do not change the Merkle").
func (c *Channel) touchCounter(txn *pristine.WriteTxn) (position uint64, err error) {
	position, err = c.ApplyCounter(&txn.Txn)
	if err != nil {
		return 0, err
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, position+1)
	if err := c.Tables.Meta.Put(txn, c.cs(metaKeyApplyCounter), b); err != nil {
		return 0, err
	}
	stamp := make([]byte, 8)
	binary.BigEndian.PutUint64(stamp, uint64(time.Now().Unix()))
	if err := c.Tables.Meta.Put(txn, c.cs(metaKeyLastModified), stamp); err != nil {
		return 0, err
	}
	return position, nil
}

// RemoteID returns the RemoteId used to cache how this channel appears to
// other peers (spec §3.3 `id`), allocating and persisting one on first
// call.
func (c *Channel) RemoteID(txn *pristine.WriteTxn, next func() ids.RemoteId) (ids.RemoteId, error) {
	b, ok, err := c.Tables.Meta.Get(&txn.Txn, c.cs(metaKeyRemoteID))
	if err != nil {
		return 0, err
	}
	if ok && len(b) == 8 {
		return ids.RemoteId(binary.BigEndian.Uint64(b)), nil
	}
	id := next()
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(id))
	if err := c.Tables.Meta.Put(txn, c.cs(metaKeyRemoteID), out); err != nil {
		return 0, err
	}
	return id, nil
}

// HasNode reports whether node has been applied to this channel (spec §3.3
// `changes`: "presence means this node has been applied").
func (c *Channel) HasNode(txn *pristine.Txn, node ids.NodeId) (bool, error) {
	return c.Tables.Changes.Has(txn, c.cn(node))
}

// LastTag returns the hash of the most recently created consolidating tag
// on this channel, and false if none has been created yet (spec §4.5
// "previous_consolidation").
func (c *Channel) LastTag(txn *pristine.Txn) (ids.Hash, bool, error) {
	b, ok, err := c.Tables.Meta.Get(txn, c.cs(metaKeyLastTag))
	if err != nil || !ok || len(b) != 32 {
		return ids.NoHash, false, err
	}
	var h ids.Hash
	copy(h[:], b)
	return h, true, nil
}

// SetLastTag records hash as the channel's newest consolidating tag, so the
// next tag created knows its predecessor.
func (c *Channel) SetLastTag(txn *pristine.WriteTxn, hash ids.Hash) error {
	return c.Tables.Meta.Put(txn, c.cs(metaKeyLastTag), append([]byte{}, hash[:]...))
}

// PositionOf returns the apply-counter position at which node was applied
// to this channel (the inverse of LogAt), used by callers that only have a
// NodeId, such as locating a previous consolidating tag's log position by
// its registered NodeId.
func (c *Channel) PositionOf(txn *pristine.Txn, node ids.NodeId) (uint64, bool, error) {
	return c.Tables.Changes.Get(txn, c.cn(node))
}

// LogAt returns the revchanges entry at position — present for both
// Change and Tag nodes (spec §3.3 `revchanges`: one entry per applied
// node); callers that care about the distinction consult NodeType via
// entry.Node (a Tag's entry carries its own hash, not a channel state, in
// its Hash field — see CurrentState).
func (c *Channel) LogAt(txn *pristine.Txn, position uint64) (LogEntry, bool, error) {
	return c.Tables.RevChanges.Get(txn, c.cu(position))
}

// TagAt returns the Merkle recorded in the `tags` table at position, if a
// tag was applied there (spec §3.3 `tags`).
func (c *Channel) TagAt(txn *pristine.Txn, position uint64) (ids.Merkle, bool, error) {
	return c.Tables.Tags.Get(txn, c.cu(position))
}

// HasState reports whether the channel has ever passed through state s
// (spec §3.3 `states`), returning the log position it first reached it.
func (c *Channel) HasState(txn *pristine.Txn, s ids.Merkle) (uint64, bool, error) {
	return c.Tables.States.Get(txn, c.cm(s))
}

// RecordApplied writes the bookkeeping rows common to both Change and Tag
// application: `changes`, `revchanges`, and (for changes) `states`. Tags
// call this with recordState=false, skipping the states table (a tag does
// not create a new state — spec §4.4 step 6).
func (c *Channel) RecordApplied(txn *pristine.WriteTxn, node ids.NodeId, hash ids.Hash, newState ids.Merkle, recordState bool) (position uint64, err error) {
	position, err = c.touchCounter(txn)
	if err != nil {
		return 0, err
	}
	if err := c.Tables.Changes.Put(txn, c.cn(node), position); err != nil {
		return 0, err
	}
	entry := LogEntry{Node: node, Hash: hash, Merkle: newState}
	if err := c.Tables.RevChanges.Put(txn, c.cu(position), entry); err != nil {
		return 0, err
	}
	if recordState {
		if err := c.Tables.States.Put(txn, c.cm(newState), position); err != nil {
			return 0, err
		}
	}
	return position, nil
}

// RecordTag writes the sparse `tags` row (spec §3.3 `tags`: "log-position
// -> Merkle, one entry per tagged state") at an already-allocated apply
// position. It does not itself touch the apply counter: a Tag's apply
// consumes exactly one counter slot, allocated by the RecordApplied call
// that records its NodeId into `changes`/`revchanges` (spec §4.4 step 6
// "writes (position, state) into the channel's tags table" — the same
// position the surrounding apply already returned). Unrecord* siblings are
// intentionally absent: tags are never unrecorded, only changes are (spec
// §3.5).
func (c *Channel) RecordTag(txn *pristine.WriteTxn, position uint64, state ids.Merkle) error {
	return c.Tables.Tags.Put(txn, c.cu(position), state)
}

// Unrecord removes node from this single channel's `changes`/`revchanges`
// (spec §3.5: "Unrecording a change removes it from a single channel's
// changes/revchanges/graph and runs repair; it does not delete the change
// object itself"). The caller (pkg/apply) is responsible for the graph-edge
// removal and repair pass; Unrecord only retracts the bookkeeping rows.
func (c *Channel) Unrecord(txn *pristine.WriteTxn, node ids.NodeId) error {
	position, ok, err := c.Tables.Changes.Get(&txn.Txn, c.cn(node))
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := c.Tables.Changes.Del(txn, c.cn(node)); err != nil {
		return err
	}
	entry, ok, err := c.Tables.RevChanges.Get(&txn.Txn, c.cu(position))
	if err != nil {
		return err
	}
	if err := c.Tables.RevChanges.Del(txn, c.cu(position)); err != nil {
		return err
	}
	if ok {
		if err := c.Tables.States.Del(txn, c.cm(entry.Merkle)); err != nil {
			return err
		}
	}
	return nil
}
