package tag

import (
	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

// Create builds and persists a new consolidating tag at ch's current state
// (spec §4.5 "Consolidating tag"): consolidated_changes is the ordered log
// slice from the immediately preceding tag (or channel genesis) up to now.
//
// Create only writes to tag_metadata and updates the channel's "last tag"
// pointer — it does not itself apply the tag to the channel. The caller
// still runs the returned Tag's TagHash through pkg/apply.ApplyNodeWS like
// any other node, which is what writes the channel's own `tags` row and
// advances its apply counter (spec §4.5: "Creation stores the tag under
// its own hash in tag_metadata and inserts (position, state) into the
// channel's tags table" — the latter half is ApplyNodeWS's job, reusing
// applyTagToChannel's existing RecordTag call).
func Create(txn *pristine.WriteTxn, tables *graph.Tables, store *Store, ch *graph.Channel, message, createdBy string, timestamp int64) (*Tag, error) {
	t, err := buildTag(txn, tables, ch, ids.NoHash, false, message, createdBy, timestamp)
	if err != nil {
		return nil, err
	}
	return persist(txn, store, ch, t)
}

// CreateSince builds a tag consolidating from a specific earlier tag rather
// than the channel's immediate predecessor (spec §4.5's flexible
// consolidation strategies), grounded on Tag::new_with_since.
func CreateSince(txn *pristine.WriteTxn, tables *graph.Tables, store *Store, ch *graph.Channel, since ids.Hash, message, createdBy string, timestamp int64) (*Tag, error) {
	t, err := buildTag(txn, tables, ch, since, true, message, createdBy, timestamp)
	if err != nil {
		return nil, err
	}
	return persist(txn, store, ch, t)
}

// buildTag assembles an un-persisted, un-finalized Tag from the channel's
// current state; the caller sets any remaining fields (e.g. from a
// client-supplied short form) before calling Finalize and persist.
func buildTag(txn *pristine.WriteTxn, tables *graph.Tables, ch *graph.Channel, since ids.Hash, useSince bool, message, createdBy string, timestamp int64) (*Tag, error) {
	state, err := ch.CurrentState(&txn.Txn)
	if err != nil {
		return nil, err
	}

	var anchor ids.Hash
	if useSince {
		anchor = since
	} else {
		previous, hasPrevious, err := ch.LastTag(&txn.Txn)
		if err != nil {
			return nil, err
		}
		if hasPrevious {
			anchor = previous
		}
	}

	total, err := ch.ApplyCounter(&txn.Txn)
	if err != nil {
		return nil, err
	}

	var startPos uint64
	if !anchor.IsZero() {
		anchorNode, ok, err := tables.Internal.Get(&txn.Txn, anchor)
		if err != nil {
			return nil, err
		}
		if ok {
			pos, found, err := ch.PositionOf(&txn.Txn, anchorNode)
			if err != nil {
				return nil, err
			}
			if found {
				startPos = pos + 1
			}
		}
	}

	consolidated, err := changesSince(txn, tables, ch, startPos, total)
	if err != nil {
		return nil, err
	}

	var t *Tag
	if useSince {
		t = NewSince(state, ch.Name, since, total, consolidated, timestamp)
	} else {
		t = New(state, ch.Name, anchor, total, consolidated, timestamp)
	}
	t.Message = message
	t.CreatedBy = createdBy
	return t, nil
}

// persist finalizes t's hash over its complete content and writes it to
// store, recording it as the channel's newest consolidating tag.
func persist(txn *pristine.WriteTxn, store *Store, ch *graph.Channel, t *Tag) (*Tag, error) {
	t.Finalize()
	if err := store.Put(txn, t); err != nil {
		return nil, err
	}
	if err := ch.SetLastTag(txn, t.TagHash); err != nil {
		return nil, err
	}
	return t, nil
}

// changesSince collects the Hash of every Change recorded between
// [from, to), skipping Tag entries (a tag's revchanges row carries its own
// hash, not a consolidated change, in its Hash field).
func changesSince(txn *pristine.WriteTxn, tables *graph.Tables, ch *graph.Channel, from, to uint64) ([]ids.Hash, error) {
	var out []ids.Hash
	for pos := from; pos < to; pos++ {
		entry, ok, err := ch.LogAt(&txn.Txn, pos)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		nt, _, err := tables.NodeType.Get(&txn.Txn, entry.Node)
		if err != nil {
			return nil, err
		}
		if nt == graph.NodeTypeTag {
			continue
		}
		out = append(out, entry.Hash)
	}
	return out, nil
}
