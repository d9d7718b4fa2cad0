package tag

import (
	"fmt"

	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

// Short is the tag content a client can construct offline: the
// author-supplied parts of a tag, without the channel-derived bookkeeping
// (consolidated_changes, dependency_count_before, previous_consolidation)
// that only the server can compute authoritatively (spec §4.5: "Tag files
// on disk use a 'short' and 'full' form — clients upload the short form,
// and the server regenerates the full form from its own channel").
type Short struct {
	State     ids.Merkle
	Channel   string
	Version   string
	Message   string
	CreatedBy string
	Metadata  map[string]string
}

// StateMismatchError is returned by Materialize when a client's short form
// was built against a channel state the server no longer has as its tip —
// the short form is stale and must be rebuilt against the current state.
type StateMismatchError struct {
	Expected ids.Merkle
	Actual   ids.Merkle
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("tag: short form state %s does not match channel's current state %s", e.Expected, e.Actual)
}

// Materialize regenerates the full Tag from a client-supplied short form,
// recomputing PreviousConsolidation/DependencyCountBefore/
// ConsolidatedChanges from ch directly rather than trusting anything the
// client sent beyond State/Version/Message/CreatedBy/Metadata — "this
// makes the server authoritative about the tag's materialized bytes"
// (spec §4.5). Materialize rejects a short form whose State has drifted
// from the channel's current tip.
func Materialize(txn *pristine.WriteTxn, tables *graph.Tables, store *Store, ch *graph.Channel, short Short, timestamp int64) (*Tag, error) {
	current, err := ch.CurrentState(&txn.Txn)
	if err != nil {
		return nil, err
	}
	if short.State != current {
		return nil, &StateMismatchError{Expected: short.State, Actual: current}
	}

	t, err := buildTag(txn, tables, ch, ids.NoHash, false, short.Message, short.CreatedBy, timestamp)
	if err != nil {
		return nil, err
	}
	t.Version = short.Version
	for k, v := range short.Metadata {
		t.Metadata[k] = v
	}
	return persist(txn, store, ch, t)
}

// ToShort projects t down to the form a client would have sent, the
// inverse companion to Materialize.
func ToShort(t *Tag) Short {
	return Short{
		State:     t.State,
		Channel:   t.Channel,
		Version:   t.Version,
		Message:   t.Message,
		CreatedBy: t.CreatedBy,
		Metadata:  t.Metadata,
	}
}
