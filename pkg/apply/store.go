package apply

import (
	"errors"

	"github.com/castingclouds/atomic-go/pkg/change"
	"github.com/castingclouds/atomic-go/pkg/ids"
)

// TagRecord is the subset of a consolidating tag's metadata the apply
// engine needs in order to validate and virtualize it (spec §4.5): the
// state it was created at, and the changes it consolidates.
type TagRecord struct {
	State               ids.Merkle
	ConsolidatedChanges []ids.Hash
}

// ErrNoSuchChange is returned by ChangeStore.GetChange when hash has no
// change file.
var ErrNoSuchChange = errors.New("apply: no change file for hash")

// ErrNoSuchTag is returned by ChangeStore.GetTag when hash has no tag
// metadata.
var ErrNoSuchTag = errors.New("apply: no tag metadata for hash")

// ChangeStore loads change and tag data by hash, the Go analogue of the
// original's ChangeStore trait. pkg/repo implements it over the
// content-addressed on-disk change/tag file store; tests implement it over
// a plain map.
type ChangeStore interface {
	GetChange(h ids.Hash) (*change.Change, error)
	GetTag(h ids.Hash) (*TagRecord, error)
}

// ErrNotFound is returned by resolveNode when neither a change file nor
// tag metadata exists for the requested hash.
type ErrNotFound struct {
	Hash ids.Hash
}

func (e *ErrNotFound) Error() string { return "apply: no change or tag found for " + e.Hash.String() }

// resolvedNode is what get_change_or_tag resolves a hash to: either an
// actual change, or a virtual change synthesized from tag metadata (spec
// §4.5 "Virtual changes").
type resolvedNode struct {
	dependencies []ids.Hash
	change       *change.Change // nil for a virtual (tag) node
}

// resolveNode loads hash's dependency list regardless of whether it is a
// real change or a tag-only hash, synthesizing a virtual change with empty
// hunks and dependencies = tag.ConsolidatedChanges in the latter case (spec
// §4.5: "This lets a tag be referenced exactly like a regular
// dependency.").
func resolveNode(store ChangeStore, h ids.Hash) (resolvedNode, error) {
	c, err := store.GetChange(h)
	if err == nil {
		return resolvedNode{dependencies: c.Hashed.Dependencies, change: c}, nil
	}
	if !errors.Is(err, ErrNoSuchChange) {
		return resolvedNode{}, err
	}

	tag, err := store.GetTag(h)
	if err != nil {
		if errors.Is(err, ErrNoSuchTag) {
			return resolvedNode{}, &ErrNotFound{Hash: h}
		}
		return resolvedNode{}, err
	}
	return resolvedNode{dependencies: tag.ConsolidatedChanges}, nil
}
