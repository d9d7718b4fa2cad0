// Package tag implements the consolidating-tag mechanism (spec §4.5): a
// dependency-shortening device that records, at a channel state, an
// equivalent reference point for new changes, together with a tag-aware
// dependency resolver that transparently expands tags during dependency
// traversal.
//
// Grounded on original_source/libatomic/src/pristine/tag.rs (field set,
// "no data deletion" contract, traverse_with_tag_expansion) and
// libatomic/src/apply.rs's get_change_or_tag for virtual-change synthesis
// (which pkg/apply implements directly against the Tag this package
// produces — see apply.TagRecord).
package tag

import (
	"github.com/castingclouds/atomic-go/pkg/ids"
)

// Tag is a consolidating tag (spec §4.5). Creating a tag never removes
// changes, never alters their dependency lists, and never changes their
// node types — it only adds rows (spec §4.5 "Non-destruction invariant").
type Tag struct {
	// TagHash is the hash of the tag's own canonical content (computed by
	// Hash, below) — distinct from ChangeFileHash, which is the hash of
	// the change-file form that actually gets applied to a channel and
	// referenced as a dependency.
	TagHash ids.Hash

	// ChangeFileHash is set once this tag has been materialized as a
	// change-file (spec §4.3 `tag` field on a Change); NoHash until then.
	ChangeFileHash ids.Hash

	// State is the channel Merkle this tag was created at (spec §4.4 step
	// 6: apply rejects a tag whose State differs from the channel's
	// current Merkle).
	State ids.Merkle

	Channel                 string
	ConsolidationTimestamp  int64
	PreviousConsolidation   ids.Hash // NoHash if this is the first tag on the channel
	DependencyCountBefore   uint64
	ConsolidatedChangeCount uint64
	ConsolidatesSince       ids.Hash // NoHash unless created via NewSince
	ConsolidatedChanges     []ids.Hash

	Version   string // semver string, empty if unset
	Message   string
	CreatedBy string
	Metadata  map[string]string
}

// IsInitial reports whether this is the first consolidating tag on its
// channel (spec: "previous_consolidation.is_none()").
func (t *Tag) IsInitial() bool { return t.PreviousConsolidation.IsZero() }

// EffectiveDependencyCount is always 1: a consolidating tag becomes the
// single dependency new changes need, regardless of how many changes it
// consolidates.
func (t *Tag) EffectiveDependencyCount() uint64 { return 1 }

// DependencyReduction is how many fewer direct dependencies a change
// depending on this tag needs versus depending on everything it
// consolidates directly.
func (t *Tag) DependencyReduction() uint64 {
	if t.DependencyCountBefore == 0 {
		return 0
	}
	return t.DependencyCountBefore - 1
}

// DependencyRef is the hash new changes should record as their dependency
// when referring to this tag (spec §4.5 "Tag-aware dependency
// minimization": "a single reference to the tag's change_file_hash (or
// tag_hash if unset)").
func (t *Tag) DependencyRef() ids.Hash {
	if !t.ChangeFileHash.IsZero() {
		return t.ChangeFileHash
	}
	return t.TagHash
}

// New builds a Tag consolidating the immediately preceding tag (or channel
// genesis, if previousConsolidation is NoHash). TagHash is left unset: it
// must be (re)computed via Finalize once every field a caller wants
// hashed — Message, CreatedBy, Version, Metadata — has been set, so that
// TagHash always reflects the tag's complete content (content-addressing
// would otherwise silently drop those fields from identity).
func New(state ids.Merkle, channel string, previousConsolidation ids.Hash, dependencyCountBefore uint64, consolidatedChanges []ids.Hash, timestamp int64) *Tag {
	return &Tag{
		State:                   state,
		Channel:                 channel,
		ConsolidationTimestamp:  timestamp,
		PreviousConsolidation:   previousConsolidation,
		DependencyCountBefore:   dependencyCountBefore,
		ConsolidatedChangeCount: uint64(len(consolidatedChanges)),
		ConsolidatedChanges:     consolidatedChanges,
		Metadata:                map[string]string{},
	}
}

// NewSince builds a Tag that consolidates from a specific earlier tag
// rather than the immediate predecessor (spec §4.5's flexible
// consolidation strategies, e.g. production hotfix workflows), grounded on
// Tag::new_with_since. As with New, call Finalize once every field is set.
func NewSince(state ids.Merkle, channel string, consolidatesSince ids.Hash, dependencyCountBefore uint64, consolidatedChanges []ids.Hash, timestamp int64) *Tag {
	return &Tag{
		State:                   state,
		Channel:                 channel,
		ConsolidationTimestamp:  timestamp,
		ConsolidatesSince:       consolidatesSince,
		DependencyCountBefore:   dependencyCountBefore,
		ConsolidatedChangeCount: uint64(len(consolidatedChanges)),
		ConsolidatedChanges:     consolidatedChanges,
		Metadata:                map[string]string{},
	}
}

// Finalize computes and sets TagHash over t's complete current content. It
// must be called exactly once, after every field the caller wants
// reflected in the tag's identity has been set, and before t is persisted
// or its DependencyRef is read.
func (t *Tag) Finalize() *Tag {
	t.TagHash = Hash(t)
	return t
}
